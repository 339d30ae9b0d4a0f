package vector_store

import (
	"context"
	"fmt"

	"github.com/Malowking/agentchat/core/errors"
	"github.com/Malowking/agentchat/pkg/schema"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// pgSchema 向量表所在 schema
const pgSchema = "vectors"

// PgvectorStore PostgreSQL + pgvector 实现，每个知识库一张表
type PgvectorStore struct {
	pool *pgxpool.Pool
	dim  int
}

// NewPgvectorStore 连接并确保扩展与 schema 存在
func NewPgvectorStore(ctx context.Context, dsn string, dim int) (*PgvectorStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrVectorStoreInit, "failed to create postgres connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrapf(err, errors.ErrVectorStoreInit, "failed to ping postgres")
	}

	var extensionExists bool
	if err := pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&extensionExists); err != nil {
		pool.Close()
		return nil, errors.Wrapf(err, errors.ErrVectorStoreInit, "failed to check pgvector extension")
	}
	if !extensionExists {
		g.Log().Infof(ctx, "pgvector extension not found, attempting to create...")
		if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
			pool.Close()
			return nil, errors.Wrapf(err, errors.ErrVectorStoreInit, "failed to create pgvector extension")
		}
	}
	if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgSchema); err != nil {
		pool.Close()
		return nil, errors.Wrapf(err, errors.ErrVectorStoreInit, "failed to create vectors schema")
	}
	return &PgvectorStore{pool: pool, dim: dim}, nil
}

func (p *PgvectorStore) table(collection string) string {
	return pgSchema + "." + sanitizeTableName(collection)
}

func (p *PgvectorStore) EnsureCollection(ctx context.Context, collection string) error {
	for _, ddl := range pgTableDDL(p.table(collection), p.dim) {
		if _, err := p.pool.Exec(ctx, ddl); err != nil {
			return errors.Wrapf(err, errors.ErrVectorStoreInit, "failed to ensure table %s", p.table(collection))
		}
	}
	return nil
}

func (p *PgvectorStore) DropCollection(ctx context.Context, collection string) error {
	if _, err := p.pool.Exec(ctx, "DROP TABLE IF EXISTS "+p.table(collection)); err != nil {
		return errors.Wrapf(err, errors.ErrVectorDelete, "failed to drop table %s", p.table(collection))
	}
	g.Log().Infof(ctx, "Table '%s' deleted", p.table(collection))
	return nil
}

// Insert 单事务批量写入
func (p *PgvectorStore) Insert(ctx context.Context, collection string, chunks []*schema.Chunk, contentVectors, summaryVectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(contentVectors) {
		return errors.Newf(errors.ErrVectorInsert, "chunks and vectors length mismatch: %d vs %d", len(chunks), len(contentVectors))
	}
	if len(summaryVectors) == 0 {
		summaryVectors = contentVectors
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return errors.Wrapf(err, errors.ErrVectorInsert, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	insertSQL := fmt.Sprintf(`INSERT INTO %s (chunk_id, content, summary, file_id, file_name, knowledge_id, update_time, %s, %s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, p.table(collection), FieldEmbedding, FieldSummaryEmbedding)

	batch := &pgx.Batch{}
	for i, c := range chunks {
		batch.Queue(insertSQL, c.ChunkID, c.Content, c.Summary, c.FileID, c.FileName, c.KnowledgeID, c.UpdateTime,
			pgvector.NewVector(contentVectors[i]), pgvector.NewVector(summaryVectors[i]))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrapf(err, errors.ErrVectorInsert, "failed to insert into %s", p.table(collection))
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrapf(err, errors.ErrVectorInsert, "failed to commit transaction")
	}
	g.Log().Infof(ctx, "Inserted %d chunks into table '%s'", len(chunks), p.table(collection))
	return nil
}

// Search L2 距离检索，ivfflat.probes=10
func (p *PgvectorStore) Search(ctx context.Context, collection string, vector []float32, field string, topK int) ([]*schema.RetrievalResult, error) {
	col := vectorField(field)
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrVectorSearch, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL ivfflat.probes = %d", ivfNProbe)); err != nil {
		return nil, errors.Wrapf(err, errors.ErrVectorSearch, "failed to set probes")
	}
	rows, err := tx.Query(ctx,
		fmt.Sprintf("SELECT chunk_id, content, %s <-> $1 AS distance FROM %s ORDER BY distance LIMIT $2", col, p.table(collection)),
		pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrVectorSearch, "search %s failed", p.table(collection))
	}
	defer rows.Close()

	var out []*schema.RetrievalResult
	for rows.Next() {
		var (
			r        schema.RetrievalResult
			distance float64
		)
		if err := rows.Scan(&r.ChunkID, &r.Content, &distance); err != nil {
			return nil, errors.Wrapf(err, errors.ErrVectorSearch, "scan row")
		}
		r.Score = l2Similarity(distance)
		r.Index = len(out)
		r.Source = "pgvector"
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, errors.ErrVectorSearch, "iterate rows")
	}
	return out, nil
}

func (p *PgvectorStore) DeleteByFileID(ctx context.Context, collection, fileID string) error {
	tag, err := p.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE file_id = $1", p.table(collection)), fileID)
	if err != nil {
		return errors.Wrapf(err, errors.ErrVectorDelete, "failed to delete file %s", fileID)
	}
	g.Log().Infof(ctx, "Delete file %s from '%s', affected rows: %d", fileID, p.table(collection), tag.RowsAffected())
	return nil
}

func (p *PgvectorStore) DeleteByChunkIDs(ctx context.Context, collection string, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	if _, err := p.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE chunk_id = ANY($1)", p.table(collection)), chunkIDs); err != nil {
		return errors.Wrapf(err, errors.ErrVectorDelete, "failed to delete %d chunks", len(chunkIDs))
	}
	return nil
}

func (p *PgvectorStore) CountByFileID(ctx context.Context, collection, fileID string) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE file_id = $1", p.table(collection)), fileID).Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrVectorSearch, "count file %s", fileID)
	}
	return n, nil
}

func (p *PgvectorStore) Close(context.Context) error {
	p.pool.Close()
	return nil
}

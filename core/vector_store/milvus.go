package vector_store

import (
	"context"
	"fmt"
	"strings"

	"github.com/Malowking/agentchat/core/common"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/Malowking/agentchat/pkg/schema"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
)

// IVF_FLAT 参数
const (
	ivfNList  = 128
	ivfNProbe = 10
)

// MilvusStore Milvus 向量库实现
type MilvusStore struct {
	client     *milvusclient.Client
	database   string
	dim        int
	contentMax int
}

// NewMilvusStore 连接 Milvus，database 不存在时创建
func NewMilvusStore(ctx context.Context, address, database string, dim, contentMax int) (*MilvusStore, error) {
	if database == "" {
		database = "default"
	}
	g.Log().Infof(ctx, "Connecting to Milvus at: %s, database: %s", address, database)

	client, err := milvusclient.New(ctx, &milvusclient.ClientConfig{Address: address})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrVectorStoreInit, "failed to create milvus client (address: %s)", address)
	}
	if err := ensureDatabase(ctx, client, database); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	if err := client.UseDatabase(ctx, milvusclient.NewUseDatabaseOption(database)); err != nil {
		_ = client.Close(ctx)
		return nil, errors.Wrapf(err, errors.ErrVectorStoreInit, "failed to use database %s", database)
	}

	return &MilvusStore{client: client, database: database, dim: dim, contentMax: contentMax}, nil
}

func ensureDatabase(ctx context.Context, client *milvusclient.Client, database string) error {
	dbNames, err := client.ListDatabase(ctx, milvusclient.NewListDatabaseOption())
	if err != nil {
		return errors.Wrapf(err, errors.ErrVectorStoreInit, "failed to list databases")
	}
	for _, name := range dbNames {
		if strings.EqualFold(name, database) {
			return nil
		}
	}
	if err := client.CreateDatabase(ctx, milvusclient.NewCreateDatabaseOption(database)); err != nil {
		return errors.Wrapf(err, errors.ErrVectorStoreInit, "failed to create database %s", database)
	}
	g.Log().Infof(ctx, "Database '%s' created successfully", database)
	return nil
}

// EnsureCollection 创建集合并在两个向量字段上建立 IVF_FLAT 索引
func (m *MilvusStore) EnsureCollection(ctx context.Context, collection string) error {
	has, err := m.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(collection))
	if err != nil {
		return errors.Wrapf(err, errors.ErrVectorStoreInit, "failed to check collection %s", collection)
	}
	if !has {
		idx := index.NewIvfFlatIndex(entity.L2, ivfNList)
		opt := milvusclient.NewCreateCollectionOption(collection, milvusSchema(collection, m.dim, m.contentMax)).
			WithIndexOptions(
				milvusclient.NewCreateIndexOption(collection, FieldEmbedding, idx),
				milvusclient.NewCreateIndexOption(collection, FieldSummaryEmbedding, idx),
			)
		if err := m.client.CreateCollection(ctx, opt); err != nil {
			return errors.Wrapf(err, errors.ErrVectorStoreInit, "failed to create collection %s", collection)
		}
		g.Log().Infof(ctx, "Collection '%s' created with dimension %d", collection, m.dim)
	}

	task, err := m.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(collection))
	if err != nil {
		return errors.Wrapf(err, errors.ErrVectorStoreInit, "failed to load collection %s", collection)
	}
	return task.Await(ctx)
}

// DropCollection 删除集合
func (m *MilvusStore) DropCollection(ctx context.Context, collection string) error {
	has, err := m.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(collection))
	if err != nil {
		return errors.Wrapf(err, errors.ErrVectorDelete, "failed to check collection %s", collection)
	}
	if !has {
		return nil
	}
	if err := m.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(collection)); err != nil {
		return errors.Wrapf(err, errors.ErrVectorDelete, "failed to drop collection %s", collection)
	}
	g.Log().Infof(ctx, "Collection '%s' deleted", collection)
	return nil
}

// Insert 列式写入
func (m *MilvusStore) Insert(ctx context.Context, collection string, chunks []*schema.Chunk, contentVectors, summaryVectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(contentVectors) {
		return errors.Newf(errors.ErrVectorInsert, "chunks and vectors length mismatch: %d vs %d", len(chunks), len(contentVectors))
	}
	if len(summaryVectors) == 0 {
		summaryVectors = contentVectors
	}
	if len(summaryVectors) != len(chunks) {
		return errors.Newf(errors.ErrVectorInsert, "chunks and summary vectors length mismatch: %d vs %d", len(chunks), len(summaryVectors))
	}

	n := len(chunks)
	ids, contents, summaries := make([]string, n), make([]string, n), make([]string, n)
	fileIDs, fileNames, kids, times := make([]string, n), make([]string, n), make([]string, n), make([]string, n)
	for i, c := range chunks {
		ids[i] = c.ChunkID
		contents[i] = common.TruncateRunes(c.Content, m.contentMax/4)
		summaries[i] = common.TruncateRunes(c.Summary, m.contentMax/4)
		fileIDs[i] = c.FileID
		fileNames[i] = common.TruncateRunes(c.FileName, 128)
		kids[i] = c.KnowledgeID
		times[i] = c.UpdateTime
	}

	opt := milvusclient.NewColumnBasedInsertOption(collection,
		column.NewColumnVarChar("chunk_id", ids),
		column.NewColumnVarChar("content", contents),
		column.NewColumnVarChar("summary", summaries),
		column.NewColumnVarChar("file_id", fileIDs),
		column.NewColumnVarChar("file_name", fileNames),
		column.NewColumnVarChar("knowledge_id", kids),
		column.NewColumnVarChar("update_time", times),
		column.NewColumnFloatVector(FieldEmbedding, m.dim, contentVectors),
		column.NewColumnFloatVector(FieldSummaryEmbedding, m.dim, summaryVectors),
	)
	result, err := m.client.Insert(ctx, opt)
	if err != nil {
		return errors.Wrapf(err, errors.ErrVectorInsert, "failed to insert into %s", collection)
	}
	g.Log().Infof(ctx, "Inserted %d chunks into collection '%s'", result.InsertCount, collection)
	return nil
}

// Search L2 检索，nprobe=10
func (m *MilvusStore) Search(ctx context.Context, collection string, vector []float32, field string, topK int) ([]*schema.RetrievalResult, error) {
	opt := milvusclient.NewSearchOption(collection, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(vectorField(field)).
		WithOutputFields(outputFields...).
		WithAnnParam(index.NewIvfAnnParam(ivfNProbe)).
		WithConsistencyLevel(entity.ClStrong)

	results, err := m.client.Search(ctx, opt)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrVectorSearch, "search %s failed", collection)
	}
	if len(results) == 0 {
		return []*schema.RetrievalResult{}, nil
	}

	rs := results[0]
	chunkIDs := rs.GetColumn("chunk_id")
	// 召回文本统一使用 content，summary 字段仅用于匹配
	contents := rs.GetColumn("content")
	if chunkIDs == nil || contents == nil {
		return nil, errors.Newf(errors.ErrVectorSearch, "search %s returned no chunk columns", collection)
	}

	out := make([]*schema.RetrievalResult, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		id, err := chunkIDs.GetAsString(i)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrVectorSearch, "read chunk_id")
		}
		content, err := contents.GetAsString(i)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrVectorSearch, "read content")
		}
		out = append(out, &schema.RetrievalResult{
			ChunkID: id,
			Content: content,
			Score:   l2Similarity(float64(rs.Scores[i])),
			Index:   i,
			Source:  "milvus",
		})
	}
	return out, nil
}

// DeleteByFileID 删除文件的全部切片
func (m *MilvusStore) DeleteByFileID(ctx context.Context, collection, fileID string) error {
	return m.delete(ctx, collection, fmt.Sprintf(`file_id == "%s"`, common.SanitizeMilvusString(fileID)))
}

// DeleteByChunkIDs 按 chunk_id 批量删除
func (m *MilvusStore) DeleteByChunkIDs(ctx context.Context, collection string, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	return m.delete(ctx, collection, chunkIDExpr(chunkIDs))
}

func (m *MilvusStore) delete(ctx context.Context, collection, expr string) error {
	result, err := m.client.Delete(ctx, milvusclient.NewDeleteOption(collection).WithExpr(expr))
	if err != nil {
		return errors.Wrapf(err, errors.ErrVectorDelete, "delete from %s failed", collection)
	}
	g.Log().Infof(ctx, "Delete from '%s' where %s, affected rows: %d", collection, common.TruncateRunes(expr, 120), result.DeleteCount)
	return nil
}

// CountByFileID 统计文件切片数
func (m *MilvusStore) CountByFileID(ctx context.Context, collection, fileID string) (int, error) {
	rs, err := m.client.Query(ctx, milvusclient.NewQueryOption(collection).
		WithFilter(fmt.Sprintf(`file_id == "%s"`, common.SanitizeMilvusString(fileID))).
		WithOutputFields("count(*)").
		WithConsistencyLevel(entity.ClStrong))
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrVectorSearch, "count %s failed", collection)
	}
	col := rs.GetColumn("count(*)")
	if col == nil {
		return 0, nil
	}
	n, err := col.GetAsInt64(0)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrVectorSearch, "read count")
	}
	return int(n), nil
}

func (m *MilvusStore) Close(ctx context.Context) error {
	return m.client.Close(ctx)
}

// chunkIDExpr chunk_id in [...] 表达式
func chunkIDExpr(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = `"` + common.SanitizeMilvusString(id) + `"`
	}
	return "chunk_id in [" + strings.Join(quoted, ",") + "]"
}

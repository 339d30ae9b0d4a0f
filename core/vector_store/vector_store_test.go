package vector_store

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/Malowking/agentchat/core/config"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/Malowking/agentchat/pkg/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorField(t *testing.T) {
	assert.Equal(t, FieldSummaryEmbedding, vectorField(schema.FieldSummary))
	assert.Equal(t, FieldEmbedding, vectorField(schema.FieldContent))
	assert.Equal(t, FieldEmbedding, vectorField(""))
}

func TestL2Similarity(t *testing.T) {
	assert.Equal(t, 1.0, l2Similarity(0))
	assert.Equal(t, 0.5, l2Similarity(1))
	assert.Equal(t, 1.0, l2Similarity(-0.2))
	assert.Greater(t, l2Similarity(0.1), l2Similarity(0.9))
}

func TestChunkIDExpr(t *testing.T) {
	expr := chunkIDExpr([]string{"a_1", `b"2`})
	assert.True(t, strings.HasPrefix(expr, "chunk_id in ["))
	assert.Contains(t, expr, `"a_1"`)
	assert.NotContains(t, expr, `b"2`)
}

func TestSanitizeTableName(t *testing.T) {
	assert.Equal(t, "kb_demo_1", sanitizeTableName("KB-Demo.1"))
	assert.Equal(t, "history_abc", sanitizeTableName("history_abc"))
	assert.Equal(t, "kb", indexPrefix("vectors.kb"))
	assert.Equal(t, "kb", indexPrefix("kb"))
}

func TestPgTableDDL(t *testing.T) {
	ddl := pgTableDDL("vectors.kb_demo", 8)
	require.Len(t, ddl, 4)
	assert.Contains(t, ddl[0], "CREATE TABLE IF NOT EXISTS vectors.kb_demo")
	assert.Contains(t, ddl[0], "embedding vector(8)")
	assert.Contains(t, ddl[0], "embedding_summary vector(8)")
	assert.Contains(t, ddl[0], "chunk_id VARCHAR(128) NOT NULL UNIQUE")
	assert.Contains(t, ddl[1], "kb_demo_embedding_idx")
	assert.Contains(t, ddl[1], "vector_l2_ops")
	assert.Contains(t, ddl[2], "embedding_summary vector_l2_ops")
	assert.Contains(t, ddl[3], "(file_id)")
}

func TestMilvusSchema(t *testing.T) {
	s := milvusSchema("kb_demo", 16, 65535)
	assert.Equal(t, "kb_demo", s.CollectionName)
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"id", "chunk_id", "content", "summary", "file_id", "file_name", "knowledge_id", "update_time", FieldEmbedding, FieldSummaryEmbedding}, names)
}

func TestNewStoreUnsupportedMode(t *testing.T) {
	conf := (&config.RAGConfig{VectorMode: "faiss"}).WithDefaults()
	store, err := NewStore(context.Background(), conf)
	assert.Nil(t, store)
	assert.True(t, errors.HasCode(err, errors.ErrConfigInvalid))
}

// TestPgvectorStoreRoundTrip 需要本地 PostgreSQL + pgvector，设置 PGVECTOR_TEST_DSN 后运行
func TestPgvectorStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("PGVECTOR_TEST_DSN")
	if dsn == "" {
		t.Skip("PostgreSQL 未配置，跳过测试")
	}
	ctx := context.Background()
	store, err := NewPgvectorStore(ctx, dsn, 3)
	require.NoError(t, err)
	defer store.Close(ctx)

	coll := "kb_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	require.NoError(t, store.EnsureCollection(ctx, coll))
	defer store.DropCollection(ctx, coll)

	chunks := []*schema.Chunk{
		{ChunkID: "c1", Content: "苹果", FileID: "f1", FileName: "a.txt", KnowledgeID: coll, UpdateTime: schema.BeijingNow()},
		{ChunkID: "c2", Content: "香蕉", FileID: "f1", FileName: "a.txt", KnowledgeID: coll, UpdateTime: schema.BeijingNow()},
	}
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}}

	t.Run("插入向量", func(t *testing.T) {
		require.NoError(t, store.Insert(ctx, coll, chunks, vectors, nil))
		n, err := store.CountByFileID(ctx, coll, "f1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("检索排序", func(t *testing.T) {
		res, err := store.Search(ctx, coll, []float32{1, 0, 0}, schema.FieldContent, 2)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "c1", res[0].ChunkID)
		assert.Equal(t, 1.0, res[0].Score)
		assert.Greater(t, res[0].Score, res[1].Score)
	})

	t.Run("按chunk_id删除", func(t *testing.T) {
		require.NoError(t, store.DeleteByChunkIDs(ctx, coll, []string{"c2"}))
		n, err := store.CountByFileID(ctx, coll, "f1")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("按文件删除", func(t *testing.T) {
		require.NoError(t, store.DeleteByFileID(ctx, coll, "f1"))
		n, err := store.CountByFileID(ctx, coll, "f1")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("向量数量不匹配", func(t *testing.T) {
		err := store.Insert(ctx, coll, chunks, vectors[:1], nil)
		assert.True(t, errors.HasCode(err, errors.ErrVectorInsert))
	})
}

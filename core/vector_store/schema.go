package vector_store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Malowking/agentchat/pkg/schema"
	"github.com/milvus-io/milvus/client/v2/entity"
)

// 切片集合的输出字段
var outputFields = []string{"chunk_id", "content", "summary", "file_id", "file_name", "knowledge_id", "update_time"}

// milvusSchema 切片集合 schema：自增主键 + 文本字段 + 两个向量字段
func milvusSchema(collection string, dim, contentMax int) *entity.Schema {
	varchar := func(name string, maxLen int) *entity.Field {
		return entity.NewField().WithName(name).WithDataType(entity.FieldTypeVarChar).WithMaxLength(int64(maxLen))
	}
	return entity.NewSchema().
		WithName(collection).
		WithDescription("knowledge chunks").
		WithAutoID(true).
		WithField(entity.NewField().WithName("id").WithDataType(entity.FieldTypeInt64).WithIsPrimaryKey(true).WithIsAutoID(true)).
		WithField(varchar("chunk_id", schema.MaxChunkIDLength)).
		WithField(varchar("content", contentMax)).
		WithField(varchar("summary", contentMax)).
		WithField(varchar("file_id", 128)).
		WithField(varchar("file_name", 512)).
		WithField(varchar("knowledge_id", 128)).
		WithField(varchar("update_time", 64)).
		WithField(entity.NewField().WithName(FieldEmbedding).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dim))).
		WithField(entity.NewField().WithName(FieldSummaryEmbedding).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dim)))
}

// pgTableDDL pgvector 表结构，与 milvus 集合字段一致
func pgTableDDL(table string, dim int) []string {
	d := strconv.Itoa(dim)
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGSERIAL PRIMARY KEY,
    chunk_id VARCHAR(%d) NOT NULL UNIQUE,
    content TEXT NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    file_id VARCHAR(128) NOT NULL,
    file_name VARCHAR(512) NOT NULL,
    knowledge_id VARCHAR(128) NOT NULL,
    update_time VARCHAR(64) NOT NULL,
    %s vector(%s) NOT NULL,
    %s vector(%s) NOT NULL
)`, table, schema.MaxChunkIDLength, FieldEmbedding, d, FieldSummaryEmbedding, d),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING ivfflat (%s vector_l2_ops) WITH (lists = 128)", indexPrefix(table), table, FieldEmbedding),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_summary_idx ON %s USING ivfflat (%s vector_l2_ops) WITH (lists = 128)", indexPrefix(table), table, FieldSummaryEmbedding),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_file_id_idx ON %s (file_id)", indexPrefix(table), table),
	}
}

// sanitizeTableName 只保留字母、数字和下划线
func sanitizeTableName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.ToLower(b.String())
}

func indexPrefix(table string) string {
	if i := strings.LastIndex(table, "."); i >= 0 {
		return table[i+1:]
	}
	return table
}

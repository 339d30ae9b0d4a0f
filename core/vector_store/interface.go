package vector_store

import (
	"context"

	"github.com/Malowking/agentchat/pkg/schema"
)

// 向量字段
const (
	FieldEmbedding        = "embedding"
	FieldSummaryEmbedding = "embedding_summary"
)

// Store 稠密向量库，每个知识库一个集合
type Store interface {
	// EnsureCollection 幂等创建集合及索引
	EnsureCollection(ctx context.Context, collection string) error

	// DropCollection 删除集合，不存在时不报错
	DropCollection(ctx context.Context, collection string) error

	// Insert 写入切片；summaryVectors 为空时使用 contentVectors
	Insert(ctx context.Context, collection string, chunks []*schema.Chunk, contentVectors, summaryVectors [][]float32) error

	// Search 按 field (content|summary) 对应的向量字段检索，结果按分数降序
	Search(ctx context.Context, collection string, vector []float32, field string, topK int) ([]*schema.RetrievalResult, error)

	// DeleteByFileID 删除文件的全部切片
	DeleteByFileID(ctx context.Context, collection, fileID string) error

	// DeleteByChunkIDs 按 chunk_id 删除，用于补偿回滚
	DeleteByChunkIDs(ctx context.Context, collection string, chunkIDs []string) error

	// CountByFileID 文件在集合中的切片数
	CountByFileID(ctx context.Context, collection, fileID string) (int, error)

	Close(ctx context.Context) error
}

// vectorField 检索字段到向量字段的映射
func vectorField(field string) string {
	if field == schema.FieldSummary {
		return FieldSummaryEmbedding
	}
	return FieldEmbedding
}

// l2Similarity L2 距离转为 (0,1] 的相似度
func l2Similarity(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
}

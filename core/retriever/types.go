package retriever

import (
	"context"

	"github.com/Malowking/agentchat/core/common"
)

// NoRelevantDocuments 检索无结果时返回给模型的固定文本
const NoRelevantDocuments = "No relevant documents found."

// Rewriter *rewriter.Rewriter 实现
type Rewriter interface {
	Rewrite(ctx context.Context, query string) []string
}

// Reranker *common.Reranker 实现
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]common.RerankResult, error)
}

// Config 检索默认参数
type Config struct {
	TopK          int
	MinScore      float64
	SearchTopK    int // 单次后端检索召回数
	BackendTopN   int // 每个后端合并前保留数
	Concurrency   int
	EnableRewrite bool
}

// Request 检索请求
// Query 和 KnowledgeIDs 是必需的，指针字段为 nil 时使用 Config 中的默认值
type Request struct {
	Query        string
	KnowledgeIDs []string
	Field        string // content|summary，默认 content

	TopK          *int
	MinScore      *float64
	EnableRewrite *bool
}

// Copy 创建请求的副本
func (r *Request) Copy() *Request {
	return &Request{
		Query:         r.Query,
		KnowledgeIDs:  r.KnowledgeIDs,
		Field:         r.Field,
		TopK:          r.TopK,
		MinScore:      r.MinScore,
		EnableRewrite: r.EnableRewrite,
	}
}

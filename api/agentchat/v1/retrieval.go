package v1

import (
	pkgschema "github.com/Malowking/agentchat/pkg/schema"
	"github.com/gogf/gf/v2/frame/g"
)

type RetrievalReq struct {
	g.Meta        `path:"/v1/retrieval" method:"post" tags:"retriever" summary:"Hybrid retrieval with rerank"`
	Query         string   `json:"query" v:"required"`
	KnowledgeIds  []string `json:"knowledge_ids" v:"required"`
	Field         string   `json:"field" v:"in:content,summary" dc:"content (default) or summary"`
	TopK          *int     `json:"top_k"`
	MinScore      *float64 `json:"min_score"`
	EnableRewrite *bool    `json:"enable_rewrite"`
}

type RetrievalRes struct {
	Results []*pkgschema.RetrievalResult `json:"results"`
	Answer  string                       `json:"answer"`
}

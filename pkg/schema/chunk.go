package schema

import (
	"time"
)

// 检索字段
const (
	FieldContent = "content"
	FieldSummary = "summary"
)

// MaxChunkIDLength chunk_id 最大长度
const MaxChunkIDLength = 128

var beijing = time.FixedZone("CST", 8*3600)

// Chunk 可检索的最小文本单元
type Chunk struct {
	ChunkID     string `json:"chunk_id"`
	Content     string `json:"content"`
	Summary     string `json:"summary"`
	FileID      string `json:"file_id"`
	FileName    string `json:"file_name"`
	KnowledgeID string `json:"knowledge_id"`
	UpdateTime  string `json:"update_time"`
}

// RetrievalResult 检索结果，不落库
type RetrievalResult struct {
	Query   string  `json:"query"`
	ChunkID string  `json:"chunk_id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Index   int     `json:"index"`
	Source  string  `json:"source,omitempty"` // 召回后端
}

// BeijingNow ISO-8601 北京时间
func BeijingNow() string {
	return time.Now().In(beijing).Format(time.RFC3339)
}

// ChunkIDs 提取 chunk_id 列表
func ChunkIDs(chunks []*Chunk) []string {
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.ChunkID)
	}
	return ids
}

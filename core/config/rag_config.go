package config

import (
	"context"
	"time"

	"github.com/Malowking/agentchat/core/errors"
	"github.com/gogf/gf/v2/frame/g"
)

// 向量库模式
const (
	VectorModeMilvus   = "milvus"
	VectorModePgvector = "pgvector"
)

// RAGConfig rag.* 配置
type RAGConfig struct {
	ChunkSize   int
	OverlapSize int

	EnableElasticsearch bool
	EnableSummary       bool
	EnableRewrite       bool

	MinScore             float64
	TopK                 int
	SearchTopK           int // 每次单后端检索的召回数
	BackendTopN          int // 每个后端合并前保留的条数
	RetrievalConcurrency int
	SummaryConcurrency   int

	VectorMode     string
	VectorHost     string
	VectorPort     string
	VectorDatabase string
	VectorDim      int
	PgvectorDSN    string

	ElasticsearchHosts    []string
	ElasticsearchUser     string
	ElasticsearchPassword string
	Analyzer              string

	SofficePath string
}

// LoadRAGConfig 读取 rag.* 并补全默认值
func LoadRAGConfig(ctx context.Context) *RAGConfig {
	c := &RAGConfig{
		ChunkSize:   g.Cfg().MustGet(ctx, "rag.split.chunk_size", 500).Int(),
		OverlapSize: g.Cfg().MustGet(ctx, "rag.split.overlap_size", 100).Int(),

		EnableElasticsearch: g.Cfg().MustGet(ctx, "rag.enable_elasticsearch", false).Bool(),
		EnableSummary:       g.Cfg().MustGet(ctx, "rag.enable_summary", false).Bool(),
		EnableRewrite:       g.Cfg().MustGet(ctx, "rag.enable_rewrite", true).Bool(),

		MinScore:             g.Cfg().MustGet(ctx, "rag.retrival.min_score", 0.3).Float64(),
		TopK:                 g.Cfg().MustGet(ctx, "rag.retrival.top_k", 5).Int(),
		SearchTopK:           g.Cfg().MustGet(ctx, "rag.retrival.search_top_k", 10).Int(),
		BackendTopN:          g.Cfg().MustGet(ctx, "rag.retrival.backend_top_n", 5).Int(),
		RetrievalConcurrency: g.Cfg().MustGet(ctx, "rag.retrival.concurrency", 8).Int(),
		SummaryConcurrency:   g.Cfg().MustGet(ctx, "rag.summary.concurrency", 5).Int(),

		VectorMode:     g.Cfg().MustGet(ctx, "rag.vector_db.mode", VectorModeMilvus).String(),
		VectorHost:     g.Cfg().MustGet(ctx, "rag.vector_db.host", "").String(),
		VectorPort:     g.Cfg().MustGet(ctx, "rag.vector_db.port", "19530").String(),
		VectorDatabase: g.Cfg().MustGet(ctx, "rag.vector_db.database", "default").String(),
		VectorDim:      g.Cfg().MustGet(ctx, "rag.vector_db.dim", 1024).Int(),
		PgvectorDSN:    g.Cfg().MustGet(ctx, "rag.pgvector.dsn", "").String(),

		ElasticsearchHosts:    g.Cfg().MustGet(ctx, "rag.elasticsearch.hosts").Strings(),
		ElasticsearchUser:     g.Cfg().MustGet(ctx, "rag.elasticsearch.username", "").String(),
		ElasticsearchPassword: g.Cfg().MustGet(ctx, "rag.elasticsearch.password", "").String(),
		Analyzer:              g.Cfg().MustGet(ctx, "rag.elasticsearch.analyzer", "ik_smart").String(),

		SofficePath: g.Cfg().MustGet(ctx, "rag.office.soffice_path", "soffice").String(),
	}
	return c.WithDefaults()
}

// WithDefaults 补全零值字段
func (c *RAGConfig) WithDefaults() *RAGConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 500
	}
	if c.OverlapSize < 0 {
		c.OverlapSize = 0
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.SearchTopK <= 0 {
		c.SearchTopK = 10
	}
	if c.BackendTopN <= 0 {
		c.BackendTopN = 5
	}
	if c.RetrievalConcurrency <= 0 {
		c.RetrievalConcurrency = 8
	}
	if c.SummaryConcurrency <= 0 {
		c.SummaryConcurrency = 5
	}
	if c.VectorMode == "" {
		c.VectorMode = VectorModeMilvus
	}
	if c.VectorDim <= 0 {
		c.VectorDim = 1024
	}
	if c.Analyzer == "" {
		c.Analyzer = "ik_smart"
	}
	if c.SofficePath == "" {
		c.SofficePath = "soffice"
	}
	return c
}

// Validate overlap 必须小于 chunk_size
func (c *RAGConfig) Validate() error {
	if c.OverlapSize >= c.ChunkSize {
		return errors.Newf(errors.ErrConfigInvalid, "rag.split.overlap_size (%d) must be less than rag.split.chunk_size (%d)", c.OverlapSize, c.ChunkSize)
	}
	return nil
}

// ContentMaxLength 向量库 content 字段长度上限（按字节计，中文最多 4 字节）
func (c *RAGConfig) ContentMaxLength() int {
	n := (c.ChunkSize+c.OverlapSize)*4 + 512
	if n > 65535 {
		n = 65535
	}
	return n
}

func (c *RAGConfig) GetChunkSize() int      { return c.ChunkSize }
func (c *RAGConfig) GetOverlapSize() int    { return c.OverlapSize }
func (c *RAGConfig) GetMinScore() float64   { return c.MinScore }
func (c *RAGConfig) GetTopK() int           { return c.TopK }
func (c *RAGConfig) GetEnableRewrite() bool { return c.EnableRewrite }

// AgentConfig agent.* 配置
type AgentConfig struct {
	MaxSteps        int
	TurnTimeout     time.Duration
	HistoryTopK     int
	ToolConcurrency int
	MCPProbeTimeout time.Duration
}

// LoadAgentConfig 读取 agent.*
func LoadAgentConfig(ctx context.Context) *AgentConfig {
	c := &AgentConfig{
		MaxSteps:        g.Cfg().MustGet(ctx, "agent.max_steps", 12).Int(),
		TurnTimeout:     g.Cfg().MustGet(ctx, "agent.turn_timeout", "300s").Duration(),
		HistoryTopK:     g.Cfg().MustGet(ctx, "agent.history_top_k", 5).Int(),
		ToolConcurrency: g.Cfg().MustGet(ctx, "agent.tool_concurrency", 5).Int(),
		MCPProbeTimeout: g.Cfg().MustGet(ctx, "agent.mcp_probe_timeout", "10s").Duration(),
	}
	return c.WithDefaults()
}

// WithDefaults 补全零值字段
func (c *AgentConfig) WithDefaults() *AgentConfig {
	if c.MaxSteps <= 0 {
		c.MaxSteps = 12
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = 300 * time.Second
	}
	if c.HistoryTopK <= 0 {
		c.HistoryTopK = 5
	}
	if c.ToolConcurrency <= 0 {
		c.ToolConcurrency = 5
	}
	if c.MCPProbeTimeout <= 0 {
		c.MCPProbeTimeout = 10 * time.Second
	}
	return c
}

package config

import (
	"context"

	"github.com/gogf/gf/v2/frame/g"
)

// multi_models 下的模型槽位
const (
	ModelEmbedding    = "embedding"
	ModelRerank       = "rerank"
	ModelConversation = "conversation_model"
	ModelToolCall     = "tool_call_model"
	ModelReasoning    = "reasoning_model"
	ModelVision       = "vision_model"
)

// 模型提供方
const (
	ProviderOpenAI = "openai"
	ProviderQwen   = "qwen"
)

// ModelConfig 单个模型端点配置
type ModelConfig struct {
	ModelName string `json:"model_name"`
	APIKey    string `json:"api_key"`
	BaseURL   string `json:"base_url"`
	Provider  string `json:"provider"`
}

func (c *ModelConfig) GetAPIKey() string  { return c.APIKey }
func (c *ModelConfig) GetBaseURL() string { return c.BaseURL }
func (c *ModelConfig) GetModel() string   { return c.ModelName }

// GetProvider 未配置时按 openai 兼容协议处理
func (c *ModelConfig) GetProvider() string {
	if c.Provider == "" {
		return ProviderOpenAI
	}
	return c.Provider
}

// Configured 是否已配置可用端点
func (c *ModelConfig) Configured() bool {
	return c != nil && c.ModelName != "" && c.BaseURL != ""
}

// LoadModelConfig 读取 multi_models.<slot>
func LoadModelConfig(ctx context.Context, slot string) *ModelConfig {
	cfg := &ModelConfig{}
	if err := g.Cfg().MustGet(ctx, "multi_models."+slot).Scan(cfg); err != nil {
		g.Log().Warningf(ctx, "failed to scan multi_models.%s: %v", slot, err)
	}
	return cfg
}

// EmbeddingConfig embedding 端点以及批处理参数
type EmbeddingConfig struct {
	ModelConfig
	Dimensions  int     `json:"dimensions"`
	BatchSize   int     `json:"batch_size"`
	Concurrency int     `json:"concurrency"`
	RPS         float64 `json:"rps"`
}

func (c *EmbeddingConfig) GetBatchSize() int {
	if c.BatchSize <= 0 {
		return 10
	}
	return c.BatchSize
}

func (c *EmbeddingConfig) GetConcurrency() int {
	if c.Concurrency <= 0 {
		return 5
	}
	return c.Concurrency
}

// LoadEmbeddingConfig 读取 multi_models.embedding
func LoadEmbeddingConfig(ctx context.Context) *EmbeddingConfig {
	cfg := &EmbeddingConfig{}
	if err := g.Cfg().MustGet(ctx, "multi_models."+ModelEmbedding).Scan(cfg); err != nil {
		g.Log().Warningf(ctx, "failed to scan multi_models.embedding: %v", err)
	}
	return cfg
}

package config

import (
	"context"
	"strings"

	"github.com/Malowking/agentchat/core/errors"
	"github.com/gogf/gf/v2/frame/g"
)

// 启动时必须存在的模型端点
var requiredModels = []string{ModelEmbedding, ModelRerank, ModelConversation, ModelToolCall}

// ValidateConfiguration validates all required configuration items
func ValidateConfiguration(ctx context.Context) error {
	var missingConfigs []string
	var warnings []string

	// 验证模型配置
	for _, name := range requiredModels {
		prefix := "multi_models." + name
		for _, field := range []string{"model_name", "base_url"} {
			if g.Cfg().MustGet(ctx, prefix+"."+field, "").String() == "" {
				missingConfigs = append(missingConfigs, prefix+"."+field)
			}
		}
		if g.Cfg().MustGet(ctx, prefix+".api_key", "").String() == "" {
			warnings = append(warnings, prefix+".api_key is not set")
		}
	}
	if g.Cfg().MustGet(ctx, "multi_models."+ModelReasoning+".model_name", "").String() == "" {
		warnings = append(warnings, "multi_models.reasoning_model is not set, falling back to conversation_model")
	}

	// 验证向量库配置
	rag := LoadRAGConfig(ctx)
	switch rag.VectorMode {
	case VectorModeMilvus:
		if rag.VectorHost == "" {
			missingConfigs = append(missingConfigs, "rag.vector_db.host")
		}
	case VectorModePgvector:
		if rag.PgvectorDSN == "" {
			missingConfigs = append(missingConfigs, "rag.pgvector.dsn")
		}
	default:
		missingConfigs = append(missingConfigs, "rag.vector_db.mode (milvus|pgvector)")
	}
	if rag.EnableElasticsearch && len(rag.ElasticsearchHosts) == 0 {
		missingConfigs = append(missingConfigs, "rag.elasticsearch.hosts")
	}
	if err := rag.Validate(); err != nil {
		missingConfigs = append(missingConfigs, err.Error())
	}

	// 验证数据库配置
	for _, key := range []string{"database.default.host", "database.default.port", "database.default.name"} {
		if g.Cfg().MustGet(ctx, key, "").String() == "" {
			missingConfigs = append(missingConfigs, key)
		}
	}

	if g.Cfg().MustGet(ctx, "redis.address", "").String() == "" {
		warnings = append(warnings, "redis.address is not set, dialog turn locks are process-local")
	}

	// 输出警告信息
	if len(warnings) > 0 {
		g.Log().Warningf(ctx, "Configuration warnings:\n- %s", strings.Join(warnings, "\n- "))
	}

	// 检查是否有缺失的必需配置
	if len(missingConfigs) > 0 {
		return errors.Newf(errors.ErrConfigInvalid, "missing required configuration items:\n- %s\n\nPlease check manifest/config/config.yaml", strings.Join(missingConfigs, "\n- "))
	}

	g.Log().Info(ctx, "✓ All required configuration items are present")
	return nil
}

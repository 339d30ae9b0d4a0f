package vector_store

import (
	"context"
	"fmt"

	"github.com/Malowking/agentchat/core/config"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/gogf/gf/v2/frame/g"
)

// NewStore 按 rag.vector_db.mode 创建向量库
func NewStore(ctx context.Context, conf *config.RAGConfig) (Store, error) {
	g.Log().Infof(ctx, "Initializing vector store with mode: %s", conf.VectorMode)

	switch conf.VectorMode {
	case config.VectorModeMilvus, "":
		address := fmt.Sprintf("%s:%s", conf.VectorHost, conf.VectorPort)
		return NewMilvusStore(ctx, address, conf.VectorDatabase, conf.VectorDim, conf.ContentMaxLength())
	case config.VectorModePgvector:
		return NewPgvectorStore(ctx, conf.PgvectorDSN, conf.VectorDim)
	default:
		return nil, errors.Newf(errors.ErrConfigInvalid, "unsupported vector database mode: %s. Supported modes: milvus, pgvector", conf.VectorMode)
	}
}

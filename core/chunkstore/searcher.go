package chunkstore

import (
	"context"

	"github.com/Malowking/agentchat/core/errors"
	"github.com/Malowking/agentchat/core/fulltext"
	"github.com/Malowking/agentchat/core/vector_store"
	"github.com/Malowking/agentchat/pkg/schema"
)

// Searcher 单个检索后端
type Searcher interface {
	Name() string
	Search(ctx context.Context, knowledgeID, query, field string, topK int) ([]*schema.RetrievalResult, error)
}

type vectorSearcher struct {
	store    vector_store.Store
	embedder Embedder
}

func (s *vectorSearcher) Name() string { return "vector" }

func (s *vectorSearcher) Search(ctx context.Context, knowledgeID, query, field string, topK int) ([]*schema.RetrievalResult, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrEmbeddingFailed, "embed query")
	}
	results, err := s.store.Search(ctx, knowledgeID, vec, field, topK)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		r.Query = query
	}
	return results, nil
}

type fulltextSearcher struct {
	store fulltext.Store
}

func (s *fulltextSearcher) Name() string { return "fulltext" }

func (s *fulltextSearcher) Search(ctx context.Context, knowledgeID, query, field string, topK int) ([]*schema.RetrievalResult, error) {
	results, err := s.store.Search(ctx, knowledgeID, query, field, topK)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		r.Query = query
	}
	return results, nil
}

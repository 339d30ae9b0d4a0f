package agentchat

import (
	"context"

	v1 "github.com/Malowking/agentchat/api/agentchat/v1"
	"github.com/Malowking/agentchat/core/retriever"
	pkgschema "github.com/Malowking/agentchat/pkg/schema"
	"github.com/gogf/gf/v2/frame/g"
)

func (c *ControllerV1) Retrieval(ctx context.Context, req *v1.RetrievalReq) (res *v1.RetrievalRes, err error) {
	if _, err = userID(ctx); err != nil {
		return nil, err
	}
	g.Log().Infof(ctx, "Retrieval request received - Query: %s, KnowledgeIds: %v, Field: %s", req.Query, req.KnowledgeIds, req.Field)

	rreq := &retriever.Request{
		Query:         req.Query,
		KnowledgeIDs:  req.KnowledgeIds,
		Field:         req.Field,
		TopK:          req.TopK,
		MinScore:      req.MinScore,
		EnableRewrite: req.EnableRewrite,
	}
	var results []*pkgschema.RetrievalResult
	if req.Field == pkgschema.FieldSummary {
		results, err = c.retriever.RetrieveSummary(ctx, rreq)
	} else {
		results, err = c.retriever.Retrieve(ctx, rreq)
	}
	if err != nil {
		return nil, err
	}
	return &v1.RetrievalRes{Results: results, Answer: retriever.Join(results)}, nil
}

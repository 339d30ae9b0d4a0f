package agentchat

import (
	"context"
	"time"

	"github.com/Malowking/agentchat/core/errors"
	"github.com/Malowking/agentchat/core/retriever"
	"github.com/Malowking/agentchat/internal/dao"
	"github.com/Malowking/agentchat/internal/logic/chat"
	"github.com/Malowking/agentchat/internal/logic/knowledge"
	pkgschema "github.com/Malowking/agentchat/pkg/schema"
	"github.com/gogf/gf/v2/frame/g"
)

// CtxUserID 中间件写入的用户 ID
const CtxUserID = "user_id"

// Searcher *retriever.Retriever 实现
type Searcher interface {
	Retrieve(ctx context.Context, req *retriever.Request) ([]*pkgschema.RetrievalResult, error)
	RetrieveSummary(ctx context.Context, req *retriever.Request) ([]*pkgschema.RetrievalResult, error)
}

// UsageAggregator *dao.UsageDAO 实现
type UsageAggregator interface {
	Aggregate(ctx context.Context, userID string, from, to time.Time) ([]*dao.UsageStat, error)
}

type ControllerV1 struct {
	chat      *chat.Service
	knowledge *knowledge.Service
	retriever Searcher
	usage     UsageAggregator
}

func NewV1(chatSvc *chat.Service, kbSvc *knowledge.Service, r Searcher, usage UsageAggregator) *ControllerV1 {
	return &ControllerV1{chat: chatSvc, knowledge: kbSvc, retriever: r, usage: usage}
}

// userID 取自 X-User-Id 请求头
func userID(ctx context.Context) (string, error) {
	r := g.RequestFromCtx(ctx)
	if r == nil {
		return "", errors.New(errors.ErrPermissionDenied, "missing request")
	}
	id := r.GetCtxVar(CtxUserID).String()
	if id == "" {
		return "", errors.New(errors.ErrPermissionDenied, "X-User-Id header is required")
	}
	return id, nil
}

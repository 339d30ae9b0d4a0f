package agentchat

import (
	"context"

	v1 "github.com/Malowking/agentchat/api/agentchat/v1"
	"github.com/Malowking/agentchat/core/common"
	"github.com/Malowking/agentchat/internal/logic/chat"
	"github.com/gogf/gf/v2/frame/g"
)

func (c *ControllerV1) Completion(ctx context.Context, req *v1.CompletionReq) (res *v1.CompletionRes, err error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	g.Log().Infof(ctx, "Completion request received - User: %s, Agent: %s, Dialog: %s", uid, req.AgentId, req.DialogId)

	dialogID, reader, err := c.chat.Completion(ctx, &chat.CompletionReq{
		UserID:   uid,
		AgentID:  req.AgentId,
		DialogID: req.DialogId,
		Input:    req.Input,
	})
	if err != nil {
		return nil, err
	}

	r := g.RequestFromCtx(ctx)
	r.Response.Header().Set("X-Dialog-Id", dialogID)
	if err := common.PumpEvents(ctx, r.Response, reader); err != nil {
		g.Log().Infof(ctx, "Completion of dialog %s ended early: %v", dialogID, err)
	}
	return nil, nil
}

func (c *ControllerV1) DialogHistory(ctx context.Context, req *v1.DialogHistoryReq) (res *v1.DialogHistoryRes, err error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := c.chat.DialogHistory(ctx, uid, req.Id)
	if err != nil {
		return nil, err
	}
	return &v1.DialogHistoryRes{Entries: entries}, nil
}

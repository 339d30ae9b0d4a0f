package agentchat

import (
	"context"

	v1 "github.com/Malowking/agentchat/api/agentchat/v1"
)

func (c *ControllerV1) MCPProbe(ctx context.Context, req *v1.MCPProbeReq) (res *v1.MCPProbeRes, err error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	tools, err := c.chat.ProbeMCP(ctx, uid, req.Id)
	if err != nil {
		return nil, err
	}
	return &v1.MCPProbeRes{Tools: tools}, nil
}

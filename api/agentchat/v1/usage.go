package v1

import "github.com/gogf/gf/v2/frame/g"

type UsageReq struct {
	g.Meta `path:"/v1/usage" method:"get" tags:"usage" summary:"Token usage per model and agent"`
	From   string `json:"from" dc:"RFC3339 or 2006-01-02, defaults to 30 days ago"`
	To     string `json:"to" dc:"RFC3339 or 2006-01-02, defaults to now"`
}

type UsageStat struct {
	ModelName    string `json:"model_name"`
	AgentName    string `json:"agent_name"`
	Calls        int64  `json:"calls"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
}

type UsageRes struct {
	Stats []*UsageStat `json:"stats"`
}

package v1

import (
	pkgschema "github.com/Malowking/agentchat/pkg/schema"
	"github.com/gogf/gf/v2/frame/g"
)

// CompletionReq 一轮对话，响应为 SSE 事件流
type CompletionReq struct {
	g.Meta   `path:"/v1/completion" method:"post" tags:"chat" summary:"Chat completion (SSE)"`
	AgentId  string `json:"agent_id" v:"required" dc:"agent id"`
	DialogId string `json:"dialog_id" dc:"dialog id, empty to start a new dialog"`
	Input    string `json:"input" v:"required" dc:"user input"`
}

// CompletionRes 内容通过事件流返回，对话 ID 在响应头 X-Dialog-Id 中
type CompletionRes struct {
	g.Meta `mime:"text/event-stream"`
}

type DialogHistoryReq struct {
	g.Meta `path:"/v1/dialog/{id}/history" method:"get" tags:"chat" summary:"Replay dialog history"`
	Id     string `v:"required" dc:"dialog id"`
}

type DialogHistoryRes struct {
	Entries []*pkgschema.HistoryEntry `json:"entries"`
}

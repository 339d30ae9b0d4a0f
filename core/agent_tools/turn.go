package agent_tools

import (
	"context"

	"github.com/Malowking/agentchat/pkg/schema"
)

// TurnContext 单轮对话的上下文，工具调用时从 ctx 读取
type TurnContext struct {
	UserID       string
	AgentName    string
	DialogID     string
	UserInput    string
	KnowledgeIDs []string

	// Emit 把事件写回当前轮的事件流，可为空
	Emit func(ev *schema.Event)
}

type turnKey struct{}

// WithTurn 绑定 TurnContext 到 ctx
func WithTurn(ctx context.Context, turn *TurnContext) context.Context {
	return context.WithValue(ctx, turnKey{}, turn)
}

// TurnFrom 读取 TurnContext，未绑定时返回空值而不是 nil
func TurnFrom(ctx context.Context) *TurnContext {
	if turn, ok := ctx.Value(turnKey{}).(*TurnContext); ok && turn != nil {
		return turn
	}
	return &TurnContext{}
}

// EmitEvent 通过当前轮的 Emit 发送事件
func EmitEvent(ctx context.Context, ev *schema.Event) {
	if turn := TurnFrom(ctx); turn.Emit != nil {
		turn.Emit(ev)
	}
}

// UserConfigLoader 读取 (user, mcp_server) 的用户配置，不缓存
type UserConfigLoader interface {
	LoadUserConfig(ctx context.Context, userID, mcpServerID string) (map[string]any, error)
}

// UserConfigLoaderFunc 函数适配
type UserConfigLoaderFunc func(ctx context.Context, userID, mcpServerID string) (map[string]any, error)

func (f UserConfigLoaderFunc) LoadUserConfig(ctx context.Context, userID, mcpServerID string) (map[string]any, error) {
	return f(ctx, userID, mcpServerID)
}

// MergeUserConfig 把用户配置补入参数，模型已给出的同名参数保持不变
func MergeUserConfig(args map[string]any, userConf map[string]any) map[string]any {
	merged := make(map[string]any, len(args)+len(userConf))
	for k, v := range userConf {
		merged[k] = v
	}
	for k, v := range args {
		merged[k] = v
	}
	return merged
}

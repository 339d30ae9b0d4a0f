package agent_tools

import (
	"context"
	"sort"
	"sync"

	"github.com/Malowking/agentchat/core/agent_tools/mcp/client"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/samber/lo"
)

// MCPServer 智能体引用的一个 MCP 服务
type MCPServer struct {
	client.ServerConfig
	Tools       []string // 上次探测缓存的工具名，非空时只暴露这些工具
	AsToolName  string   // 非空时以子智能体的形式暴露为单个工具
	Description string
}

// SubAgentBuilder 把一个 MCP 服务的工具包装成子智能体工具
type SubAgentBuilder func(ctx context.Context, server MCPServer, tools []*MCPTool) (Tool, error)

// Registry 进程级工具注册表：本地工具 + MCP 服务
type Registry struct {
	mcp   MCPCaller
	users UserConfigLoader

	mu       sync.RWMutex
	local    map[string]Tool
	subAgent SubAgentBuilder
}

// NewRegistry mcp 可为 nil，此时忽略所有 MCP 服务
func NewRegistry(mcp MCPCaller, users UserConfigLoader) *Registry {
	return &Registry{
		mcp:   mcp,
		users: users,
		local: make(map[string]Tool),
	}
}

// Register 注册本地工具，同名覆盖
func (r *Registry) Register(ctx context.Context, tools ...Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		name := ToolName(ctx, t)
		if name == "" {
			continue
		}
		r.local[name] = t
	}
}

// SetSubAgentBuilder 由 agent 包注入
func (r *Registry) SetSubAgentBuilder(b SubAgentBuilder) {
	r.mu.Lock()
	r.subAgent = b
	r.mu.Unlock()
}

// Names 已注册的本地工具名
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := lo.Keys(r.local)
	sort.Strings(names)
	return names
}

// Local 按名称查找本地工具
func (r *Registry) Local(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.local[name]
	return t, ok
}

// Resolve 组装一个智能体可用的工具集：本地工具名必须全部存在；
// MCP 服务不可达时跳过并记日志
func (r *Registry) Resolve(ctx context.Context, toolNames []string, servers []MCPServer) ([]Tool, error) {
	r.mu.RLock()
	subAgent := r.subAgent
	r.mu.RUnlock()

	var tools []Tool
	for _, name := range lo.Uniq(toolNames) {
		t, ok := r.Local(name)
		if !ok {
			return nil, errors.Newf(errors.ErrToolNotFound, "tool %s is not registered", name)
		}
		tools = append(tools, t)
	}

	if r.mcp != nil {
		for _, server := range lo.UniqBy(servers, func(s MCPServer) string { return s.ServerID }) {
			asAgent := server.AsToolName != "" && subAgent != nil
			remote, err := LoadServerTools(ctx, r.mcp, server.ServerConfig, server.Tools, !asAgent, r.users)
			if err != nil {
				g.Log().Warningf(ctx, "skip mcp server %s: %v", server.Name, err)
				continue
			}
			if !asAgent {
				for _, t := range remote {
					tools = append(tools, t)
				}
				continue
			}
			wrapped, err := subAgent(ctx, server, remote)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrAgentResolve, "build sub-agent %s", server.AsToolName)
			}
			tools = append(tools, wrapped)
		}
	}

	// 同名工具只保留第一个
	return lo.UniqBy(tools, func(t Tool) string { return ToolName(ctx, t) }), nil
}

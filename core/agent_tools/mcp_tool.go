package agent_tools

import (
	"context"

	"github.com/Malowking/agentchat/core/agent_tools/mcp/client"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/gogf/gf/v2/frame/g"
)

// MCPCaller MultiServerClient 的调用面
type MCPCaller interface {
	ListTools(ctx context.Context, conf client.ServerConfig) ([]client.ToolDescriptor, error)
	CallTool(ctx context.Context, conf client.ServerConfig, name string, args map[string]any) (*client.CallResult, error)
}

// MCPTool 远端 MCP 工具
type MCPTool struct {
	caller MCPCaller
	server client.ServerConfig
	remote string // 远端工具名
	info   *schema.ToolInfo
	users  UserConfigLoader
}

// NewMCPTool exposedName 为模型看到的名称，可带服务前缀
func NewMCPTool(caller MCPCaller, server client.ServerConfig, desc client.ToolDescriptor, exposedName string, users UserConfigLoader) *MCPTool {
	if exposedName == "" {
		exposedName = desc.Name
	}
	info := &schema.ToolInfo{Name: exposedName, Desc: desc.Description}
	if params := ParamsFromJSONSchema(desc.InputSchema); len(params) > 0 {
		info.ParamsOneOf = schema.NewParamsOneOfByParams(params)
	}
	return &MCPTool{caller: caller, server: server, remote: desc.Name, info: info, users: users}
}

func (t *MCPTool) Info(context.Context) (*schema.ToolInfo, error) {
	return t.info, nil
}

// RemoteName 远端工具名
func (t *MCPTool) RemoteName() string { return t.remote }

// InvokableRun 每次调用前重新读取用户配置并补入参数
func (t *MCPTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	args, err := DecodeArgs(argumentsInJSON)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrToolFailed, "%s: 参数解析失败", t.info.Name)
	}

	if t.users != nil {
		turn := TurnFrom(ctx)
		userConf, err := t.users.LoadUserConfig(ctx, turn.UserID, t.server.ServerID)
		if err != nil {
			g.Log().Warningf(ctx, "load mcp user config failed: user %s, server %s: %v", turn.UserID, t.server.Name, err)
		} else if len(userConf) > 0 {
			args = MergeUserConfig(args, userConf)
		}
	}

	res, err := t.caller.CallTool(ctx, t.server, t.remote, args)
	if err != nil {
		return "", err
	}
	if res.IsError {
		return "", errors.Newf(errors.ErrToolFailed, "%s", res.Text)
	}
	return res.Text, nil
}

// LoadServerTools 列出服务工具并包装；allowed 非空时只保留其中的工具
func LoadServerTools(ctx context.Context, caller MCPCaller, server client.ServerConfig, allowed []string, prefix bool, users UserConfigLoader) ([]*MCPTool, error) {
	descs, err := caller.ListTools(ctx, server)
	if err != nil {
		return nil, err
	}
	allow := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		allow[name] = struct{}{}
	}

	tools := make([]*MCPTool, 0, len(descs))
	for _, d := range descs {
		if len(allow) > 0 {
			if _, ok := allow[d.Name]; !ok {
				continue
			}
		}
		name := d.Name
		if prefix {
			name = client.JoinToolName(server.Name, d.Name)
		}
		tools = append(tools, NewMCPTool(caller, server, d, name, users))
	}
	return tools, nil
}

// ParamsFromJSONSchema 把 MCP 的 inputSchema 转换为参数定义
func ParamsFromJSONSchema(js map[string]any) map[string]*schema.ParameterInfo {
	props, ok := js["properties"].(map[string]any)
	if !ok || len(props) == 0 {
		return nil
	}
	required := make(map[string]bool)
	if req, ok := js["required"].([]any); ok {
		for _, r := range req {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	}

	params := make(map[string]*schema.ParameterInfo, len(props))
	for name, raw := range props {
		def, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		p := paramFromDef(def)
		p.Required = required[name]
		params[name] = p
	}
	return params
}

func paramFromDef(def map[string]any) *schema.ParameterInfo {
	p := &schema.ParameterInfo{Type: schema.String}
	if typ, ok := def["type"].(string); ok {
		p.Type = schema.DataType(typ)
	}
	if desc, ok := def["description"].(string); ok {
		p.Desc = desc
	}
	if enum, ok := def["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				p.Enum = append(p.Enum, s)
			}
		}
	}
	switch p.Type {
	case schema.Array:
		if items, ok := def["items"].(map[string]any); ok {
			p.ElemInfo = paramFromDef(items)
		}
	case schema.Object:
		p.SubParams = ParamsFromJSONSchema(def)
	}
	return p
}

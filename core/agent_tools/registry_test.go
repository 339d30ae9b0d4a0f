package agent_tools

import (
	"context"
	stdErrors "errors"
	"sync"
	"testing"

	"github.com/Malowking/agentchat/core/agent_tools/mcp/client"
	"github.com/Malowking/agentchat/core/errors"
	pkgschema "github.com/Malowking/agentchat/pkg/schema"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMCP 记录每次调用的参数
type fakeMCP struct {
	tools   map[string][]client.ToolDescriptor // key = ServerID
	listErr error
	result  *client.CallResult

	mu    sync.Mutex
	calls []map[string]any
}

func (f *fakeMCP) ListTools(_ context.Context, conf client.ServerConfig) ([]client.ToolDescriptor, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.tools[conf.ServerID], nil
}

func (f *fakeMCP) CallTool(_ context.Context, _ client.ServerConfig, _ string, args map[string]any) (*client.CallResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()
	if f.result != nil {
		return f.result, nil
	}
	return &client.CallResult{Text: "ok"}, nil
}

var sendEmail = client.ToolDescriptor{
	Name:        "send_email",
	Description: "发送邮件",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to":      map[string]any{"type": "string", "description": "收件人"},
			"content": map[string]any{"type": "string"},
			"cc":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []any{"to"},
	},
}

func echoTool(name string) Tool {
	return NewLocalTool(name, name+" tool", map[string]*schema.ParameterInfo{
		"q": {Type: schema.String, Required: true},
	}, func(_ context.Context, args map[string]any) (string, error) {
		return name + ":" + StringArg(args, "q"), nil
	})
}

func TestMergeUserConfig(t *testing.T) {
	merged := MergeUserConfig(
		map[string]any{"to": "a@b.com", "app_id": "from-model"},
		map[string]any{"app_id": "secret-id", "app_secret": "secret"},
	)
	assert.Equal(t, "a@b.com", merged["to"])
	assert.Equal(t, "from-model", merged["app_id"])
	assert.Equal(t, "secret", merged["app_secret"])

	assert.Empty(t, MergeUserConfig(nil, nil))
}

func TestLocalTool(t *testing.T) {
	ctx := context.Background()
	tool := echoTool("echo")

	out, err := tool.InvokableRun(ctx, "```json\n{\"q\": \"hi\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "echo:hi", out)

	_, err = tool.InvokableRun(ctx, `{}`)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidParameter))

	_, err = tool.InvokableRun(ctx, `not json`)
	assert.True(t, errors.HasCode(err, errors.ErrToolFailed))
}

func TestMCPToolMergesUserConfigEachCall(t *testing.T) {
	mcp := &fakeMCP{}
	version := 0
	users := UserConfigLoaderFunc(func(_ context.Context, userID, serverID string) (map[string]any, error) {
		version++
		assert.Equal(t, "u1", userID)
		assert.Equal(t, "mcp-1", serverID)
		return map[string]any{"app_secret": version, "to": "ignored@x.com"}, nil
	})
	tool := NewMCPTool(mcp, client.ServerConfig{ServerID: "mcp-1", Name: "mail"}, sendEmail, "", users)
	ctx := WithTurn(context.Background(), &TurnContext{UserID: "u1"})

	for i := 0; i < 2; i++ {
		_, err := tool.InvokableRun(ctx, `{"to":"a@b.com"}`)
		require.NoError(t, err)
	}
	require.Len(t, mcp.calls, 2)
	assert.Equal(t, "a@b.com", mcp.calls[0]["to"])
	assert.Equal(t, 1, mcp.calls[0]["app_secret"])
	assert.Equal(t, 2, mcp.calls[1]["app_secret"])
}

func TestMCPToolRemoteError(t *testing.T) {
	mcp := &fakeMCP{result: &client.CallResult{Text: "quota exceeded", IsError: true}}
	tool := NewMCPTool(mcp, client.ServerConfig{ServerID: "mcp-1"}, sendEmail, "", nil)
	_, err := tool.InvokableRun(context.Background(), `{"to":"a"}`)
	assert.True(t, errors.HasCode(err, errors.ErrToolFailed))
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestParamsFromJSONSchema(t *testing.T) {
	params := ParamsFromJSONSchema(sendEmail.InputSchema)
	require.Len(t, params, 3)
	assert.True(t, params["to"].Required)
	assert.Equal(t, "收件人", params["to"].Desc)
	assert.False(t, params["content"].Required)
	assert.Equal(t, schema.Array, params["cc"].Type)
	require.NotNil(t, params["cc"].ElemInfo)
	assert.Equal(t, schema.String, params["cc"].ElemInfo.Type)

	assert.Nil(t, ParamsFromJSONSchema(nil))
}

func TestRegistryResolve(t *testing.T) {
	ctx := context.Background()
	mcp := &fakeMCP{tools: map[string][]client.ToolDescriptor{
		"mcp-1": {sendEmail, {Name: "list_inbox"}},
		"mcp-2": {{Name: "create_doc"}},
	}}
	r := NewRegistry(mcp, nil)
	r.Register(ctx, echoTool("weather"), echoTool("arxiv"))
	assert.Equal(t, []string{"arxiv", "weather"}, r.Names())

	t.Run("本地工具和直连MCP工具", func(t *testing.T) {
		tools, err := r.Resolve(ctx, []string{"weather", "weather"}, []MCPServer{
			{ServerConfig: client.ServerConfig{ServerID: "mcp-1", Name: "mail"}, Tools: []string{"send_email"}},
		})
		require.NoError(t, err)
		names := make([]string, 0, len(tools))
		for _, tool := range tools {
			names = append(names, ToolName(ctx, tool))
		}
		assert.Equal(t, []string{"weather", "mail__send_email"}, names)
	})

	t.Run("未注册的本地工具", func(t *testing.T) {
		_, err := r.Resolve(ctx, []string{"delivery"}, nil)
		assert.True(t, errors.HasCode(err, errors.ErrToolNotFound))
	})

	t.Run("子智能体", func(t *testing.T) {
		var got []*MCPTool
		r.SetSubAgentBuilder(func(_ context.Context, server MCPServer, tools []*MCPTool) (Tool, error) {
			got = tools
			return echoTool(server.AsToolName), nil
		})
		defer r.SetSubAgentBuilder(nil)

		tools, err := r.Resolve(ctx, nil, []MCPServer{
			{ServerConfig: client.ServerConfig{ServerID: "mcp-1", Name: "mail"}, AsToolName: "mail_skill"},
		})
		require.NoError(t, err)
		require.Len(t, tools, 1)
		assert.Equal(t, "mail_skill", ToolName(ctx, tools[0]))
		require.Len(t, got, 2)
		// 子智能体内部使用远端原名
		assert.Equal(t, "send_email", ToolName(ctx, got[0]))
	})

	t.Run("MCP服务不可达时跳过", func(t *testing.T) {
		broken := NewRegistry(&fakeMCP{listErr: stdErrors.New("dial tcp: refused")}, nil)
		broken.Register(ctx, echoTool("weather"))
		tools, err := broken.Resolve(ctx, []string{"weather"}, []MCPServer{
			{ServerConfig: client.ServerConfig{ServerID: "mcp-9", Name: "down"}},
		})
		require.NoError(t, err)
		assert.Len(t, tools, 1)
	})
}

func TestTurnContext(t *testing.T) {
	assert.NotNil(t, TurnFrom(context.Background()))

	var events int
	ctx := WithTurn(context.Background(), &TurnContext{UserID: "u", Emit: func(*pkgschema.Event) { events++ }})
	EmitEvent(ctx, nil)
	EmitEvent(context.Background(), nil)
	assert.Equal(t, 1, events)
}

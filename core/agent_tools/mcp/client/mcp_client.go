package client

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/Malowking/agentchat/core/errors"
	"github.com/bytedance/sonic"
	"github.com/gogf/gf/v2/frame/g"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/singleflight"
)

// 传输方式
const (
	TransportSSE            = "sse"
	TransportStdio          = "stdio"
	TransportStreamableHTTP = "streamable_http"
	TransportWebsocket      = "websocket"
)

// ServerConfig 一个 MCP 服务的连接参数
type ServerConfig struct {
	ServerID  string
	Name      string
	URL       string // stdio 模式下为启动命令
	Transport string
	Env       map[string]string
}

// ToolDescriptor 远端工具描述
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// CallResult 工具调用结果
type CallResult struct {
	Text    string
	IsError bool
}

type sessionEntry struct {
	conf    ServerConfig
	session *sdk.ClientSession
	cancel  context.CancelFunc
	refs    int
	broken  bool
}

// Dialer 根据配置创建传输层，测试时可替换
type Dialer func(ctx context.Context, conf ServerConfig) (sdk.Transport, error)

// MultiServerClient 进程级 MCP 客户端，每个服务一个会话，首次使用时连接并保持
type MultiServerClient struct {
	client *sdk.Client
	dial   Dialer

	connecting singleflight.Group
	mu         sync.Mutex
	sessions   map[string]*sessionEntry // key = ServerID
}

// NewMultiServerClient dial 为 nil 时按 Transport 选择 go-sdk 自带传输或 websocket
func NewMultiServerClient(dial Dialer) *MultiServerClient {
	if dial == nil {
		dial = DefaultDialer
	}
	return &MultiServerClient{
		client:   sdk.NewClient(&sdk.Implementation{Name: "agentchat", Version: "1.0.0"}, nil),
		dial:     dial,
		sessions: make(map[string]*sessionEntry),
	}
}

// DefaultDialer 四种传输方式
func DefaultDialer(_ context.Context, conf ServerConfig) (sdk.Transport, error) {
	httpClient := &http.Client{Timeout: 0}
	switch strings.ToLower(conf.Transport) {
	case TransportSSE, "":
		return &sdk.SSEClientTransport{Endpoint: conf.URL, HTTPClient: httpClient}, nil
	case TransportStreamableHTTP, "streamable-http", "http":
		return &sdk.StreamableClientTransport{Endpoint: conf.URL, HTTPClient: httpClient}, nil
	case TransportWebsocket, "ws":
		return &WebsocketTransport{URL: conf.URL}, nil
	case TransportStdio:
		fields := strings.Fields(conf.URL)
		if len(fields) == 0 {
			return nil, errors.Newf(errors.ErrMCPConnectFailed, "mcp %s: empty stdio command", conf.Name)
		}
		cmd := exec.Command(fields[0], fields[1:]...)
		cmd.Env = os.Environ()
		for k, v := range conf.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		return &sdk.CommandTransport{Command: cmd}, nil
	default:
		return nil, errors.Newf(errors.ErrMCPConnectFailed, "mcp %s: unsupported transport %s", conf.Name, conf.Transport)
	}
}

// acquire 取得会话并增加引用，必要时建立连接；同一服务的并发连接合并为一次
func (c *MultiServerClient) acquire(ctx context.Context, conf ServerConfig) (*sessionEntry, error) {
	for attempt := 0; attempt < 2; attempt++ {
		c.mu.Lock()
		if e, ok := c.sessions[conf.ServerID]; ok && !e.broken {
			e.refs++
			c.mu.Unlock()
			return e, nil
		}
		c.mu.Unlock()

		if _, err, _ := c.connecting.Do(conf.ServerID, func() (any, error) {
			return nil, c.connect(ctx, conf)
		}); err != nil {
			return nil, err
		}
	}
	return nil, errors.Newf(errors.ErrMCPConnectFailed, "MCP 服务 %s 会话不可用", conf.Name)
}

// connect 建立会话；会话生命周期独立于调用方 ctx，调用方 ctx 只约束握手阶段
func (c *MultiServerClient) connect(ctx context.Context, conf ServerConfig) error {
	c.mu.Lock()
	if e, ok := c.sessions[conf.ServerID]; ok && !e.broken {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	transport, err := c.dial(ctx, conf)
	if err != nil {
		return err
	}

	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)
	session, err := c.client.Connect(sessCtx, transport, nil)
	if !stop() {
		err = ctx.Err()
		if session != nil {
			_ = session.Close()
		}
	}
	if err != nil {
		cancel()
		return errors.Wrapf(err, errors.ErrMCPConnectFailed, "连接 MCP 服务 %s 失败", conf.Name)
	}
	g.Log().Infof(ctx, "MCP session connected: %s (%s)", conf.Name, conf.Transport)

	c.mu.Lock()
	c.sessions[conf.ServerID] = &sessionEntry{conf: conf, session: session, cancel: cancel}
	c.mu.Unlock()
	return nil
}

// release 减少引用；已损坏且无人使用的会话被关闭，下次使用时重连
func (c *MultiServerClient) release(ctx context.Context, e *sessionEntry, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.refs--
	if failed {
		e.broken = true
	}
	if e.broken && e.refs <= 0 {
		if cur, ok := c.sessions[e.conf.ServerID]; ok && cur == e {
			delete(c.sessions, e.conf.ServerID)
		}
		e.close(ctx)
	}
}

// ListTools 列出服务的全部工具
func (c *MultiServerClient) ListTools(ctx context.Context, conf ServerConfig) ([]ToolDescriptor, error) {
	e, err := c.acquire(ctx, conf)
	if err != nil {
		return nil, err
	}

	var tools []ToolDescriptor
	var cursor string
	for {
		res, err := e.session.ListTools(ctx, &sdk.ListToolsParams{Cursor: cursor})
		if err != nil {
			c.release(ctx, e, ctx.Err() == nil)
			return nil, errors.Wrapf(err, errors.ErrMCPCallFailed, "获取 MCP 服务 %s 工具列表失败", conf.Name)
		}
		for _, t := range res.Tools {
			tools = append(tools, ToolDescriptor{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: schemaToMap(t.InputSchema),
			})
		}
		if res.NextCursor == "" {
			break
		}
		cursor = res.NextCursor
	}
	c.release(ctx, e, false)
	return tools, nil
}

// CallTool 调用远端工具，结果中的文本内容按行拼接
func (c *MultiServerClient) CallTool(ctx context.Context, conf ServerConfig, name string, args map[string]any) (*CallResult, error) {
	e, err := c.acquire(ctx, conf)
	if err != nil {
		return nil, err
	}

	res, err := e.session.CallTool(ctx, &sdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		c.release(ctx, e, ctx.Err() == nil)
		return nil, errors.Wrapf(err, errors.ErrMCPCallFailed, "调用 MCP 工具 %s/%s 失败", conf.Name, name)
	}
	c.release(ctx, e, false)

	texts := make([]string, 0, len(res.Content))
	for _, content := range res.Content {
		if tc, ok := content.(*sdk.TextContent); ok && tc.Text != "" {
			texts = append(texts, tc.Text)
		}
	}
	return &CallResult{Text: strings.Join(texts, "\n"), IsError: res.IsError}, nil
}

// Probe 在超时内连接并列出工具名
func (c *MultiServerClient) Probe(ctx context.Context, conf ServerConfig, timeout time.Duration) ([]string, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tools, err := c.ListTools(pctx, conf)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	return names, nil
}

// Sessions 当前保持的会话数
func (c *MultiServerClient) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// Close 关闭所有会话
func (c *MultiServerClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.sessions {
		e.close(context.Background())
		delete(c.sessions, id)
	}
}

func (e *sessionEntry) close(ctx context.Context) {
	if err := e.session.Close(); err != nil {
		g.Log().Debugf(ctx, "close MCP session %s: %v", e.conf.Name, err)
	}
	e.cancel()
}

// schemaToMap 把 InputSchema 统一为 map，便于转换成模型可见的参数定义
func schemaToMap(s any) map[string]any {
	if s == nil {
		return nil
	}
	if m, ok := s.(map[string]any); ok {
		return m
	}
	raw, err := sonic.Marshal(s)
	if err != nil {
		return nil
	}
	m := make(map[string]any)
	if err := sonic.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// SplitToolName 拆分 server__tool 形式的名称
func SplitToolName(full string) (server, tool string) {
	parts := strings.SplitN(full, "__", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", full
}

// JoinToolName 生成带服务前缀的工具名，避免不同服务的工具重名
func JoinToolName(server, tool string) string {
	if server == "" {
		return tool
	}
	return server + "__" + tool
}

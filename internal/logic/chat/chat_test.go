package chat

import (
	"context"
	stdErrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/Malowking/agentchat/core/agent_tools"
	"github.com/Malowking/agentchat/core/agent_tools/mcp/client"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/Malowking/agentchat/core/model"
	"github.com/Malowking/agentchat/core/retriever"
	"github.com/Malowking/agentchat/core/usage"
	gormModel "github.com/Malowking/agentchat/internal/model/gorm"
	pkgschema "github.com/Malowking/agentchat/pkg/schema"
	"github.com/cloudwego/eino/callbacks"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeModel 依次返回预设回复，并像真实模型一样上报用量
type fakeModel struct {
	mu      sync.Mutex
	replies []*schema.Message
	calls   int
	inputs  [][]*schema.Message
}

func (m *fakeModel) Generate(context.Context, []*schema.Message, ...einoModel.Option) (*schema.Message, error) {
	return nil, stdErrors.New("not used")
}

func (m *fakeModel) Stream(ctx context.Context, in []*schema.Message, _ ...einoModel.Option) (*schema.StreamReader[*schema.Message], error) {
	m.mu.Lock()
	reply := schema.AssistantMessage("done", nil)
	if m.calls < len(m.replies) {
		reply = m.replies[m.calls]
	}
	m.calls++
	m.inputs = append(m.inputs, in)
	m.mu.Unlock()

	ctx = callbacks.OnStart(ctx, &einoModel.CallbackInput{Messages: in})
	callbacks.OnEnd(ctx, &einoModel.CallbackOutput{
		Message:    reply,
		TokenUsage: &einoModel.TokenUsage{PromptTokens: 12, CompletionTokens: 4, TotalTokens: 16},
	})
	return schema.StreamReaderFromArray([]*schema.Message{reply}), nil
}

func (m *fakeModel) WithTools([]*schema.ToolInfo) (einoModel.ToolCallingChatModel, error) {
	return m, nil
}

type fakeModels struct{ entry *model.Entry }

func (f *fakeModels) Resolve(llmID string) (*model.Entry, error) {
	if llmID == "missing" {
		return nil, errors.Newf(errors.ErrAgentResolve, "llm %s not found", llmID)
	}
	return f.entry, nil
}

type memAgents map[string]*gormModel.Agent

func (m memAgents) GetByID(_ context.Context, id string) (*gormModel.Agent, error) {
	if a, ok := m[id]; ok {
		return a, nil
	}
	return nil, stdErrors.New("record not found")
}

type memDialogs struct {
	mu   sync.Mutex
	rows map[string]*gormModel.Dialog
	err  error
}

func (m *memDialogs) GetByID(_ context.Context, id string) (*gormModel.Dialog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if d, ok := m.rows[id]; ok {
		return d, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memDialogs) Create(_ context.Context, d *gormModel.Dialog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[d.DialogID] = d
	return nil
}

type memToolDefs []*gormModel.ToolDef

func (m memToolDefs) GetByIDs(_ context.Context, ids []string) ([]*gormModel.ToolDef, error) {
	var out []*gormModel.ToolDef
	for _, d := range m {
		for _, id := range ids {
			if d.ToolID == id {
				out = append(out, d)
			}
		}
	}
	return out, nil
}

type memMCP struct {
	rows    map[string]*gormModel.MCPServer
	updated []string
}

func (m *memMCP) GetByID(_ context.Context, id string) (*gormModel.MCPServer, error) {
	if r, ok := m.rows[id]; ok {
		return r, nil
	}
	return nil, stdErrors.New("record not found")
}

func (m *memMCP) GetByIDs(_ context.Context, ids []string) ([]*gormModel.MCPServer, error) {
	var out []*gormModel.MCPServer
	for _, id := range ids {
		if r, ok := m.rows[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memMCP) UpdateTools(_ context.Context, _ string, tools []string) error {
	m.updated = tools
	return nil
}

type memKnowledge []*gormModel.KnowledgeBase

type turn struct {
	dialogID, input, answer string
	events                  []*pkgschema.Event
}

type fakeHistory struct {
	mu         sync.Mutex
	turns      []turn
	remembered int
	prior      []*schema.Message
}

func (h *fakeHistory) Load(context.Context, string, string, bool) ([]*schema.Message, error) {
	return h.prior, nil
}

func (h *fakeHistory) Append(_ context.Context, dialogID, input, answer string, events []*pkgschema.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turn{dialogID, input, answer, events})
	return nil
}

func (h *fakeHistory) Remember(context.Context, string, string, string) error {
	h.mu.Lock()
	h.remembered++
	h.mu.Unlock()
	return nil
}

type fakeAnswerer struct {
	answer string
	req    *retriever.Request
}

func (f *fakeAnswerer) Answer(_ context.Context, req *retriever.Request) (string, error) {
	f.req = req
	return f.answer, nil
}

type fakeUsage struct {
	mu      sync.Mutex
	records []*usage.Record
}

func (f *fakeUsage) SaveUsage(_ context.Context, records []*usage.Record) error {
	f.mu.Lock()
	f.records = append(f.records, records...)
	f.mu.Unlock()
	return nil
}

type fakeProber struct{ names []string }

func (f *fakeProber) Probe(_ context.Context, conf client.ServerConfig, timeout time.Duration) ([]string, error) {
	if conf.URL == "" {
		return nil, errors.New(errors.ErrMCPConnectFailed, "no url")
	}
	return f.names, nil
}

type fixture struct {
	svc       *Service
	model     *fakeModel
	history   *fakeHistory
	usage     *fakeUsage
	answerer  *fakeAnswerer
	dialogs   *memDialogs
	mcp       *memMCP
	knowledge memKnowledge
}

func newFixture(t *testing.T, replies ...*schema.Message) *fixture {
	t.Helper()
	f := &fixture{
		model:    &fakeModel{replies: replies},
		history:  &fakeHistory{},
		usage:    &fakeUsage{},
		answerer: &fakeAnswerer{answer: retriever.NoRelevantDocuments},
		dialogs:  &memDialogs{rows: map[string]*gormModel.Dialog{}},
		mcp: &memMCP{rows: map[string]*gormModel.MCPServer{
			"mcp-1": {MCPServerID: "mcp-1", OwnerUserID: "u1", ServerName: "mail", URL: "http://mail/sse", Transport: "sse"},
		}},
	}
	registry := agent_tools.NewRegistry(nil, nil)
	registry.Register(context.Background(), agent_tools.NewLocalTool("weather", "查询天气", map[string]*schema.ParameterInfo{
		"location": {Type: schema.String, Required: true},
	}, func(_ context.Context, args map[string]any) (string, error) {
		return agent_tools.StringArg(args, "location") + " 晴 21℃", nil
	}))

	agents := memAgents{
		"plain":   {AgentID: "plain", OwnerUserID: "u1", Name: "助手"},
		"weather": {AgentID: "weather", OwnerUserID: "u1", Name: "天气助手", ToolIDs: gormModel.StringList{"t-weather"}},
		"kb":      {AgentID: "kb", OwnerUserID: "u1", Name: "知识助手", KnowledgeIDs: gormModel.StringList{"kb1"}, EnableMemory: true},
		"broken":  {AgentID: "broken", OwnerUserID: "u1", Name: "坏助手", ToolIDs: gormModel.StringList{"t-none"}},
		"ghost":   {AgentID: "ghost", OwnerUserID: "u1", Name: "邮件助手", MCPIDs: gormModel.StringList{"mcp-1", "mcp-gone"}},
		"lost":    {AgentID: "lost", OwnerUserID: "u1", Name: "手册助手", KnowledgeIDs: gormModel.StringList{"kb1", "kb-gone"}},
	}
	f.svc = NewService(Deps{
		Agents:     agents,
		Dialogs:    f.dialogs,
		ToolDefs:   memToolDefs{{ToolID: "t-weather", Name: "weather"}},
		MCPServers: f.mcp,
		Knowledge:  &f.knowledge,
		History:    f.history,
		Retriever:  f.answerer,
		Models:     &fakeModels{entry: &model.Entry{ModelName: "qwen-plus", Model: f.model}},
		Tools:      registry,
		Prober:     &fakeProber{names: []string{"send_email"}},
		Usage:      f.usage,
	})
	return f
}

func (m *memKnowledge) GetByIDs(_ context.Context, ids []string) ([]*gormModel.KnowledgeBase, error) {
	var out []*gormModel.KnowledgeBase
	for _, kb := range *m {
		for _, id := range ids {
			if kb.ID == id {
				out = append(out, kb)
			}
		}
	}
	return out, nil
}

func complete(t *testing.T, f *fixture, req *CompletionReq) (string, []*pkgschema.Event) {
	t.Helper()
	dialogID, reader, err := f.svc.Completion(context.Background(), req)
	require.NoError(t, err)
	events, err := pkgschema.ReadAll(reader)
	require.NoError(t, err)
	return dialogID, events
}

func text(events []*pkgschema.Event) string {
	var s string
	for _, ev := range events {
		if ev.Type == pkgschema.EventTypeResponseChunk {
			s += ev.Text()
		}
	}
	return s
}

func TestPlainCompletion(t *testing.T) {
	f := newFixture(t, schema.AssistantMessage("你好！", nil))
	dialogID, events := complete(t, f, &CompletionReq{UserID: "u1", AgentID: "plain", Input: "hello"})

	assert.NotEmpty(t, dialogID)
	assert.Equal(t, "你好！", text(events))
	for _, ev := range events {
		assert.Equal(t, pkgschema.EventTypeResponseChunk, ev.Type)
	}

	require.Len(t, f.history.turns, 1)
	assert.Equal(t, "hello", f.history.turns[0].input)
	assert.Equal(t, "你好！", f.history.turns[0].answer)

	require.Len(t, f.usage.records, 1)
	assert.Equal(t, "qwen-plus", f.usage.records[0].ModelName)
	assert.Equal(t, "u1", f.usage.records[0].UserID)
	assert.Equal(t, "助手", f.usage.records[0].AgentName)
	assert.Greater(t, f.usage.records[0].InputTokens, 0)
	assert.Greater(t, f.usage.records[0].OutputTokens, 0)

	d, err := f.dialogs.GetByID(context.Background(), dialogID)
	require.NoError(t, err)
	assert.Equal(t, "hello", d.Title)
	assert.Zero(t, f.history.remembered)
}

func TestLocalToolCompletion(t *testing.T) {
	call := schema.AssistantMessage("", []schema.ToolCall{{
		ID: "c1", Type: "function", Function: schema.FunctionCall{Name: "weather", Arguments: `{"location":"北京"}`},
	}})
	f := newFixture(t, call, schema.AssistantMessage("北京今天晴。", nil))
	_, events := complete(t, f, &CompletionReq{UserID: "u1", AgentID: "weather", Input: "天气 北京"})

	require.GreaterOrEqual(t, len(events), 3)
	start, ok := events[0].Lifecycle()
	require.True(t, ok)
	assert.Equal(t, pkgschema.StatusStart, start.Status)
	assert.Equal(t, "weather", start.Title)
	end, ok := events[1].Lifecycle()
	require.True(t, ok)
	assert.Equal(t, pkgschema.StatusEnd, end.Status)
	assert.Equal(t, "北京 晴 21℃", end.Message)
	assert.Equal(t, "北京今天晴。", text(events[2:]))

	require.Len(t, f.history.turns, 1)
	assert.Len(t, f.history.turns[0].events, len(events))
	// 两次模型调用合并为同一模型的一条记录
	require.Len(t, f.usage.records, 1)
	assert.Equal(t, 24, f.usage.records[0].InputTokens)
}

func TestKnowledgeAndMemory(t *testing.T) {
	f := newFixture(t, schema.AssistantMessage("支持。", nil))
	f.knowledge = memKnowledge{{ID: "kb1", Name: "手册", OwnerUserID: "u1"}}
	f.answerer.answer = "AgentChat supports MCP."

	_, events := complete(t, f, &CompletionReq{UserID: "u1", AgentID: "kb", Input: "Does it support MCP?"})
	assert.Equal(t, "支持。", text(events))
	require.NotNil(t, f.answerer.req)
	assert.Equal(t, []string{"kb1"}, f.answerer.req.KnowledgeIDs)

	require.Len(t, f.model.inputs, 1)
	assert.Contains(t, f.model.inputs[0][0].Content, "AgentChat supports MCP.")
	assert.Equal(t, 1, f.history.remembered)
}

func TestKnowledgePermissionRefusal(t *testing.T) {
	f := newFixture(t)
	f.knowledge = memKnowledge{{ID: "kb1", Name: "别人的库", OwnerUserID: "u9"}}

	_, events := complete(t, f, &CompletionReq{UserID: "u1", AgentID: "kb", Input: "hi"})
	require.Len(t, events, 1)
	assert.Contains(t, text(events), "无权访问知识库 别人的库")
	assert.Zero(t, f.model.calls)
	require.Len(t, f.history.turns, 1)
	assert.Equal(t, text(events), f.history.turns[0].answer)
}

func TestForeignDialogRefused(t *testing.T) {
	f := newFixture(t)
	_ = f.dialogs.Create(context.Background(), &gormModel.Dialog{DialogID: "d-other", UserID: "u2"})

	_, events := complete(t, f, &CompletionReq{UserID: "u1", AgentID: "plain", DialogID: "d-other", Input: "hi"})
	require.Len(t, events, 1)
	assert.Contains(t, text(events), "无权访问对话")
	assert.Empty(t, f.history.turns)
}

func TestCompletionErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.Completion(ctx, &CompletionReq{UserID: "u1", AgentID: "plain"})
	assert.True(t, errors.HasCode(err, errors.ErrInvalidParameter))

	_, _, err = f.svc.Completion(ctx, &CompletionReq{UserID: "u1", AgentID: "nobody", Input: "x"})
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))

	_, _, err = f.svc.Completion(ctx, &CompletionReq{UserID: "u1", AgentID: "broken", DialogID: "d1", Input: "x"})
	assert.True(t, errors.HasCode(err, errors.ErrAgentResolve))

	// 失败后锁已释放
	release, err := f.svc.Locker.Acquire(ctx, "d1")
	require.NoError(t, err)
	release()
}

func TestUnresolvedReferences(t *testing.T) {
	f := newFixture(t)
	f.knowledge = memKnowledge{{ID: "kb1", Name: "手册", OwnerUserID: "u1"}}
	ctx := context.Background()

	_, _, err := f.svc.Completion(ctx, &CompletionReq{UserID: "u1", AgentID: "ghost", DialogID: "d-mcp", Input: "x"})
	require.True(t, errors.HasCode(err, errors.ErrAgentResolve))
	assert.Contains(t, err.Error(), "mcp-gone")

	_, _, err = f.svc.Completion(ctx, &CompletionReq{UserID: "u1", AgentID: "lost", DialogID: "d-kb", Input: "x"})
	require.True(t, errors.HasCode(err, errors.ErrAgentResolve))
	assert.Contains(t, err.Error(), "kb-gone")
	assert.Zero(t, f.model.calls)
	assert.Empty(t, f.history.turns)

	for _, id := range []string{"d-mcp", "d-kb"} {
		release, err := f.svc.Locker.Acquire(ctx, id)
		require.NoError(t, err)
		release()
	}
}

func TestDialogLoadError(t *testing.T) {
	f := newFixture(t)
	f.dialogs.err = stdErrors.New("connection refused")

	_, _, err := f.svc.Completion(context.Background(), &CompletionReq{UserID: "u1", AgentID: "plain", DialogID: "d1", Input: "hi"})
	assert.True(t, errors.HasCode(err, errors.ErrDatabaseQuery))
	assert.Empty(t, f.dialogs.rows)
	assert.Zero(t, f.model.calls)
}

func TestDialogBusy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	release, err := f.svc.Locker.Acquire(ctx, "d1")
	require.NoError(t, err)
	defer release()

	_, _, err = f.svc.Completion(ctx, &CompletionReq{UserID: "u1", AgentID: "plain", DialogID: "d1", Input: "x"})
	assert.True(t, errors.HasCode(err, errors.ErrDialogBusy))
}

func TestProbeMCP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	names, err := f.svc.ProbeMCP(ctx, "u1", "mcp-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"send_email"}, names)
	assert.Equal(t, []string{"send_email"}, f.mcp.updated)

	_, err = f.svc.ProbeMCP(ctx, "u2", "mcp-1")
	assert.True(t, errors.HasCode(err, errors.ErrPermissionDenied))
	_, err = f.svc.ProbeMCP(ctx, "u1", "mcp-x")
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
}

func TestToMCPServer(t *testing.T) {
	s := ToMCPServer(&gormModel.MCPServer{
		MCPServerID:   "mcp-1",
		ServerName:    "mail",
		URL:           "npx -y mail-server",
		Transport:     client.TransportStdio,
		Env:           gormModel.JSONMap{"TOKEN": "x", "N": 1},
		Tools:         gormModel.StringList{"send_email"},
		MCPAsToolName: "mail_skill",
	})
	assert.Equal(t, "mcp-1", s.ServerID)
	assert.Equal(t, map[string]string{"TOKEN": "x"}, s.Env)
	assert.Equal(t, "mail_skill", s.AsToolName)
	assert.Equal(t, []string{"send_email"}, s.Tools)
}

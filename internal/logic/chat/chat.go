// Package chat 一轮对话的编排：解析智能体、权限、加锁、组装上下文、执行、持久化
package chat

import (
	"context"
	stderrors "errors"
	"io"
	"unicode/utf8"

	"github.com/Malowking/agentchat/core/agent"
	"github.com/Malowking/agentchat/core/agent_tools"
	"github.com/Malowking/agentchat/core/cache"
	"github.com/Malowking/agentchat/core/common"
	"github.com/Malowking/agentchat/core/config"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/Malowking/agentchat/core/retriever"
	"github.com/Malowking/agentchat/core/usage"
	"github.com/Malowking/agentchat/internal/history"
	gormModel "github.com/Malowking/agentchat/internal/model/gorm"
	pkgschema "github.com/Malowking/agentchat/pkg/schema"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// titleMaxRunes 新对话标题取输入的前若干字
const titleMaxRunes = 30

// Deps 对话服务依赖
type Deps struct {
	Agents     AgentStore
	Dialogs    DialogStore
	ToolDefs   ToolDefStore
	MCPServers MCPServerStore
	Knowledge  KnowledgeStore
	Entries    HistoryLister
	History    History
	Retriever  Answerer
	Models     ModelResolver
	Tools      ToolResolver
	Prober     Prober
	Locker     cache.TurnLocker
	Usage      usage.Store
	Executor   *agent.Executor
	Conf       *config.AgentConfig
}

// Service 对话服务
type Service struct {
	Deps
}

// NewService Locker 为空时使用进程内锁
func NewService(deps Deps) *Service {
	if deps.Locker == nil {
		deps.Locker = cache.NewMemoryTurnLocker()
	}
	if deps.Conf == nil {
		deps.Conf = &config.AgentConfig{}
	}
	deps.Conf = deps.Conf.WithDefaults()
	if deps.Executor == nil {
		deps.Executor = agent.NewExecutor(deps.Conf)
	}
	return &Service{Deps: deps}
}

// CompletionReq 一轮对话请求
type CompletionReq struct {
	UserID   string
	AgentID  string
	DialogID string // 为空时新建对话
	Input    string
}

// Completion 开始一轮对话，返回对话 ID 和事件流；调用方读到 EOF 后写入 [DONE]
func (s *Service) Completion(ctx context.Context, req *CompletionReq) (string, *pkgschema.StreamReader[*pkgschema.Event], error) {
	if req.Input == "" {
		return "", nil, errors.New(errors.ErrInvalidParameter, "input is required")
	}
	ag, err := s.Agents.GetByID(ctx, req.AgentID)
	if err != nil {
		return "", nil, errors.Newf(errors.ErrNotFound, "agent %s not found", req.AgentID)
	}

	dialog, err := s.dialogFor(ctx, req, ag)
	if errors.HasCode(err, errors.ErrPermissionDenied) {
		// 无权访问的对话不落库
		return req.DialogID, s.refusal(ctx, err, nil), nil
	}
	if err != nil {
		return "", nil, err
	}

	release, err := s.Locker.Acquire(ctx, dialog.DialogID)
	if err != nil {
		return "", nil, err
	}

	if err := s.checkKnowledge(ctx, req.UserID, ag); errors.HasCode(err, errors.ErrPermissionDenied) {
		persist := func(c context.Context, text string) {
			if aErr := s.History.Append(c, dialog.DialogID, req.Input, text, nil); aErr != nil {
				g.Log().Errorf(c, "persist refusal of dialog %s: %v", dialog.DialogID, aErr)
			}
		}
		reader := s.refusal(ctx, err, persist)
		release()
		return dialog.DialogID, reader, nil
	} else if err != nil {
		release()
		return "", nil, err
	}

	turnCtx := agent_tools.WithTurn(ctx, &agent_tools.TurnContext{
		UserID:       req.UserID,
		AgentName:    ag.Name,
		DialogID:     dialog.DialogID,
		UserInput:    req.Input,
		KnowledgeIDs: ag.KnowledgeIDs,
	})
	spec, err := s.assemble(turnCtx, ag, dialog.DialogID, req.Input)
	if err != nil {
		release()
		return "", nil, err
	}

	collector := usage.NewCollector()
	turnCtx = usage.WithCollector(turnCtx, collector)
	inner := s.Executor.Run(turnCtx, spec, req.Input, s.persist(dialog.DialogID, req.Input, ag.EnableMemory))

	reader, writer := pkgschema.Pipe[*pkgschema.Event](16)
	common.SafeGo(ctx, "completion-"+dialog.DialogID, func() {
		defer writer.Close()
		defer release()
		defer func() {
			flushCtx := context.WithoutCancel(ctx)
			if err := collector.Flush(flushCtx, s.Usage, req.UserID, ag.Name); err != nil {
				g.Log().Errorf(flushCtx, "flush usage of dialog %s: %v", dialog.DialogID, err)
			}
		}()
		forward(inner, writer)
	})
	return dialog.DialogID, reader, nil
}

// forward 转发事件；下游关闭时关闭上游，执行器随之取消
func forward(in *pkgschema.StreamReader[*pkgschema.Event], out *pkgschema.StreamWriter[*pkgschema.Event]) {
	defer in.Close()
	for {
		ev, err := in.Recv()
		if err == io.EOF {
			return
		}
		if closed := out.Send(ev, err); closed || err != nil {
			return
		}
	}
}

// persist 在最后一个 response_chunk 之后写入历史
func (s *Service) persist(dialogID, input string, memory bool) agent.FinishFunc {
	return func(ctx context.Context, res *agent.Result) {
		answer := res.Content
		if res.Err != nil && answer == "" {
			answer = res.Err.Error()
		}
		if err := s.History.Append(ctx, dialogID, input, answer, res.Events); err != nil {
			g.Log().Errorf(ctx, "persist turn of dialog %s: %v", dialogID, err)
			return
		}
		if memory && res.Err == nil {
			if err := s.History.Remember(ctx, dialogID, input, answer); err != nil {
				g.Log().Warningf(ctx, "remember turn of dialog %s: %v", dialogID, err)
			}
		}
	}
}

// refusal 只含一条助手消息的事件流
func (s *Service) refusal(ctx context.Context, cause error, persist func(context.Context, string)) *pkgschema.StreamReader[*pkgschema.Event] {
	text := cause.Error()
	if app := errors.GetAppError(cause); app != nil {
		text = app.Message
	}
	g.Log().Warningf(ctx, "completion refused: %v", cause)
	if persist != nil {
		persist(context.WithoutCancel(ctx), text)
	}
	reader, writer := pkgschema.Pipe[*pkgschema.Event](1)
	writer.Send(pkgschema.NewResponseChunk(text), nil)
	writer.Close()
	return reader
}

// dialogFor 读取或新建对话
func (s *Service) dialogFor(ctx context.Context, req *CompletionReq, ag *gormModel.Agent) (*gormModel.Dialog, error) {
	if ag.OwnerUserID != "" && ag.OwnerUserID != req.UserID {
		return nil, errors.Newf(errors.ErrPermissionDenied, "无权使用智能体 %s", ag.Name)
	}
	if req.DialogID != "" {
		dialog, err := s.Dialogs.GetByID(ctx, req.DialogID)
		switch {
		case err == nil:
			if dialog.UserID != req.UserID {
				return nil, errors.Newf(errors.ErrPermissionDenied, "无权访问对话 %s", req.DialogID)
			}
			return dialog, nil
		case !stderrors.Is(err, gorm.ErrRecordNotFound):
			return nil, errors.Wrapf(err, errors.ErrDatabaseQuery, "load dialog %s", req.DialogID)
		}
	}
	dialog := &gormModel.Dialog{
		DialogID:  lo.Ternary(req.DialogID != "", req.DialogID, uuid.NewString()),
		AgentID:   ag.AgentID,
		AgentType: gormModel.AgentTypeAgent,
		UserID:    req.UserID,
		Title:     truncateRunes(req.Input, titleMaxRunes),
	}
	if len(ag.MCPIDs) > 0 {
		dialog.AgentType = gormModel.AgentTypeMCPAgent
	}
	if err := s.Dialogs.Create(ctx, dialog); err != nil {
		return nil, errors.Wrapf(err, errors.ErrDatabaseInsert, "create dialog")
	}
	return dialog, nil
}

// checkKnowledge 知识库必须属于当前用户或智能体的所有者
func (s *Service) checkKnowledge(ctx context.Context, userID string, ag *gormModel.Agent) error {
	if len(ag.KnowledgeIDs) == 0 {
		return nil
	}
	kbs, err := s.Knowledge.GetByIDs(ctx, ag.KnowledgeIDs)
	if err != nil {
		return errors.Wrapf(err, errors.ErrDatabaseQuery, "load knowledge of agent %s", ag.AgentID)
	}
	if len(kbs) != len(lo.Uniq(ag.KnowledgeIDs)) {
		found := lo.Map(kbs, func(kb *gormModel.KnowledgeBase, _ int) string { return kb.ID })
		missing, _ := lo.Difference([]string(ag.KnowledgeIDs), found)
		return errors.Newf(errors.ErrAgentResolve, "knowledge %v of agent %s not found", missing, ag.AgentID)
	}
	for _, kb := range kbs {
		if kb.OwnerUserID != userID && kb.OwnerUserID != ag.OwnerUserID {
			return errors.Newf(errors.ErrPermissionDenied, "无权访问知识库 %s", kb.Name)
		}
	}
	return nil
}

// assemble 并行加载历史、检索知识、解析模型和工具
func (s *Service) assemble(ctx context.Context, ag *gormModel.Agent, dialogID, input string) (*agent.Spec, error) {
	spec := &agent.Spec{Name: ag.Name, SystemPrompt: ag.SystemPrompt}
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		msgs, err := s.History.Load(egCtx, dialogID, input, ag.EnableMemory)
		if err != nil {
			return err
		}
		spec.History = msgs
		return nil
	})
	eg.Go(func() error {
		spec.Knowledge = s.retrieve(egCtx, ag.KnowledgeIDs, input)
		return nil
	})
	eg.Go(func() error {
		entry, err := s.Models.Resolve(ag.LLMID)
		if err != nil {
			return err
		}
		spec.Model = entry
		return nil
	})
	eg.Go(func() error {
		tools, err := s.resolveTools(egCtx, ag)
		if err != nil {
			return err
		}
		spec.Tools = tools
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return spec, nil
}

// retrieve 检索失败只记日志，本轮没有参考资料
func (s *Service) retrieve(ctx context.Context, knowledgeIDs []string, input string) string {
	if len(knowledgeIDs) == 0 || s.Retriever == nil {
		return ""
	}
	text, err := s.Retriever.Answer(ctx, &retriever.Request{Query: input, KnowledgeIDs: knowledgeIDs})
	if err != nil {
		g.Log().Warningf(ctx, "retrieve knowledge %v failed: %v", knowledgeIDs, err)
		return ""
	}
	if text == retriever.NoRelevantDocuments {
		return ""
	}
	return text
}

func (s *Service) resolveTools(ctx context.Context, ag *gormModel.Agent) ([]agent_tools.Tool, error) {
	defs, err := s.ToolDefs.GetByIDs(ctx, ag.ToolIDs)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrDatabaseQuery, "load tools of agent %s", ag.AgentID)
	}
	if len(defs) != len(lo.Uniq(ag.ToolIDs)) {
		found := lo.Map(defs, func(d *gormModel.ToolDef, _ int) string { return d.ToolID })
		missing, _ := lo.Difference([]string(ag.ToolIDs), found)
		return nil, errors.Newf(errors.ErrAgentResolve, "tools %v of agent %s not found", missing, ag.AgentID)
	}
	rows, err := s.MCPServers.GetByIDs(ctx, ag.MCPIDs)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrDatabaseQuery, "load mcp servers of agent %s", ag.AgentID)
	}
	if len(rows) != len(lo.Uniq(ag.MCPIDs)) {
		found := lo.Map(rows, func(r *gormModel.MCPServer, _ int) string { return r.MCPServerID })
		missing, _ := lo.Difference([]string(ag.MCPIDs), found)
		return nil, errors.Newf(errors.ErrAgentResolve, "mcp servers %v of agent %s not found", missing, ag.AgentID)
	}
	names := lo.Map(defs, func(d *gormModel.ToolDef, _ int) string { return d.Name })
	servers := lo.Map(rows, func(r *gormModel.MCPServer, _ int) agent_tools.MCPServer { return ToMCPServer(r) })
	return s.Tools.Resolve(ctx, names, servers)
}

// ProbeMCP 列出服务的工具并缓存工具名
func (s *Service) ProbeMCP(ctx context.Context, userID, serverID string) ([]string, error) {
	row, err := s.MCPServers.GetByID(ctx, serverID)
	if err != nil {
		return nil, errors.Newf(errors.ErrNotFound, "mcp server %s not found", serverID)
	}
	if row.OwnerUserID != "" && row.OwnerUserID != userID {
		return nil, errors.Newf(errors.ErrPermissionDenied, "user %s has no access to mcp server %s", userID, serverID)
	}
	names, err := s.Prober.Probe(ctx, ToMCPServer(row).ServerConfig, s.Conf.MCPProbeTimeout)
	if err != nil {
		return nil, err
	}
	if err := s.MCPServers.UpdateTools(ctx, serverID, names); err != nil {
		return nil, errors.Wrapf(err, errors.ErrDatabaseUpdate, "cache tools of mcp server %s", serverID)
	}
	return names, nil
}

// DialogHistory 回放对话
func (s *Service) DialogHistory(ctx context.Context, userID, dialogID string) ([]*pkgschema.HistoryEntry, error) {
	dialog, err := s.Dialogs.GetByID(ctx, dialogID)
	if err != nil {
		return nil, errors.Newf(errors.ErrDialogNotFound, "dialog %s not found", dialogID)
	}
	if dialog.UserID != userID {
		return nil, errors.Newf(errors.ErrPermissionDenied, "无权访问对话 %s", dialogID)
	}
	rows, err := s.Entries.List(ctx, dialogID)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrDatabaseQuery, "list history of dialog %s", dialogID)
	}
	out := make([]*pkgschema.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := history.ToEntry(row)
		if err != nil {
			g.Log().Warningf(ctx, "decode events of history %s: %v", row.ID, err)
			entry = &pkgschema.HistoryEntry{ID: row.ID, DialogID: row.DialogID, Role: row.Role, Content: row.Content, CreateTime: row.CreateTime}
		}
		out = append(out, entry)
	}
	return out, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

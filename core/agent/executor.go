// Package agent 智能体执行器：有界的模型/工具循环，事件按产生顺序写入流
package agent

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Malowking/agentchat/core/agent_tools"
	"github.com/Malowking/agentchat/core/common"
	"github.com/Malowking/agentchat/core/config"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/Malowking/agentchat/core/metrics"
	"github.com/Malowking/agentchat/core/model"
	"github.com/Malowking/agentchat/core/usage"
	pkgschema "github.com/Malowking/agentchat/pkg/schema"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/gogf/gf/v2/frame/g"
	"golang.org/x/sync/errgroup"
)

// eventBuffer 事件流缓冲
const eventBuffer = 64

// Spec 已解析好的智能体，执行一轮所需的全部输入
type Spec struct {
	Name         string
	SystemPrompt string
	Model        *model.Entry
	Tools        []agent_tools.Tool
	Knowledge    string            // 检索得到的参考资料，可为空
	History      []*schema.Message // 由旧到新
}

// Result 一轮结束后的产出
type Result struct {
	Content  string
	Events   []*pkgschema.Event
	Messages []*schema.Message // 本轮新增的 assistant / tool 消息
	Err      error             // 模型两次调用失败时非空
}

// FinishFunc 在最后一个事件之后、流关闭之前调用；取消或超时的轮次不会调用
type FinishFunc func(ctx context.Context, res *Result)

// Executor 无状态，可被所有对话共享
type Executor struct {
	conf       *config.AgentConfig
	retryDelay time.Duration
}

// NewExecutor conf 为 nil 时使用默认值
func NewExecutor(conf *config.AgentConfig) *Executor {
	if conf == nil {
		conf = &config.AgentConfig{}
	}
	return &Executor{conf: conf.WithDefaults(), retryDelay: model.DefaultRetryDelay}
}

// run 一次执行的可变状态
type run struct {
	spec   *Spec
	emit   func(ev *pkgschema.Event)
	title  func(tool string) string
	stream bool // 是否把最终回答以 response_chunk 输出

	answer   strings.Builder
	messages []*schema.Message
}

// Run 启动一轮对话并立即返回事件流。调用方读取到 EOF 即表示本轮结束
func (e *Executor) Run(ctx context.Context, spec *Spec, input string, onFinish FinishFunc) *pkgschema.StreamReader[*pkgschema.Event] {
	reader, writer := pkgschema.Pipe[*pkgschema.Event](eventBuffer)
	ctx, cancel := context.WithTimeout(ctx, e.conf.TurnTimeout)
	em := newEmitter(ctx, cancel, writer)

	turn := *agent_tools.TurnFrom(ctx)
	turn.Emit = em.emit
	if turn.UserInput == "" {
		turn.UserInput = input
	}
	ctx = agent_tools.WithTurn(ctx, &turn)

	common.SafeGo(ctx, "agent-turn", func() {
		defer writer.Close()
		defer cancel()

		r := &run{spec: spec, emit: em.emit, title: plainTitle, stream: true}
		err := common.SafeCall(ctx, "agent-loop", func() error { return e.loop(ctx, r, input) })
		if ctx.Err() != nil {
			g.Log().Infof(ctx, "agent %s turn cancelled: %v", spec.Name, context.Cause(ctx))
			return
		}
		if err != nil {
			g.Log().Errorf(ctx, "agent %s turn failed: %v", spec.Name, err)
			em.emit(pkgschema.NewLifecycleEvent(pkgschema.StatusEnd, pkgschema.TitleError, err.Error()))
		}
		if onFinish != nil {
			onFinish(context.WithoutCancel(ctx), &Result{
				Content:  r.answer.String(),
				Events:   em.snapshot(),
				Messages: r.messages,
				Err:      err,
			})
		}
	})
	return reader
}

// Invoke 同步执行，不输出 response_chunk；工具事件通过 ctx 中的 TurnContext 转发给外层
func (e *Executor) Invoke(ctx context.Context, spec *Spec, input string, title func(tool string) string) (string, error) {
	if title == nil {
		title = plainTitle
	}
	r := &run{
		spec:  spec,
		emit:  func(ev *pkgschema.Event) { agent_tools.EmitEvent(ctx, ev) },
		title: title,
	}
	if err := e.loop(ctx, r, input); err != nil {
		return "", err
	}
	return r.answer.String(), nil
}

func plainTitle(tool string) string { return tool }

func (e *Executor) loop(ctx context.Context, r *run, input string) error {
	if r.spec.Model == nil || r.spec.Model.Model == nil {
		return errors.Newf(errors.ErrModelNotConfigured, "agent %s has no model", r.spec.Name)
	}
	msgs := BuildMessages(r.spec, input)

	tools := make(map[string]agent_tools.Tool, len(r.spec.Tools))
	for _, t := range r.spec.Tools {
		tools[agent_tools.ToolName(ctx, t)] = t
	}
	infos, err := agent_tools.ToolInfos(ctx, r.spec.Tools)
	if err != nil {
		return errors.Wrapf(err, errors.ErrAgentResolve, "读取工具定义失败")
	}
	base := r.spec.Model.Model
	bound := base
	if len(infos) > 0 {
		if bound, err = base.WithTools(infos); err != nil {
			return errors.Wrapf(err, errors.ErrLLMCallFailed, "模型 %s 绑定工具失败", r.spec.Model.ModelName)
		}
	}

	for step := 0; ; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		cm := bound
		last := step >= e.conf.MaxSteps
		if last {
			// 达到步数上限，去掉工具让模型直接作答
			g.Log().Warningf(ctx, "agent %s reached max steps %d, asking for final answer", r.spec.Name, e.conf.MaxSteps)
			cm = base
		}

		reply, err := e.generate(ctx, r, cm, msgs)
		if err != nil {
			return err
		}
		msgs = append(msgs, reply)
		r.messages = append(r.messages, reply)
		if len(reply.ToolCalls) == 0 || last {
			// 流式时文本已在 generate 中计入；最后一步仍带工具调用时补上
			if !r.stream || len(reply.ToolCalls) > 0 {
				r.answer.WriteString(reply.Content)
			}
			return nil
		}

		g.Log().Debugf(ctx, "agent %s step %d: %d tool calls", r.spec.Name, step+1, len(reply.ToolCalls))
		results := e.callTools(ctx, r, tools, reply.ToolCalls)
		if err := ctx.Err(); err != nil {
			return err
		}
		msgs = append(msgs, results...)
		r.messages = append(r.messages, results...)
	}
}

// generate 流式调用模型；建立流失败时重试一次。非工具调用的文本增量直接输出
func (e *Executor) generate(ctx context.Context, r *run, cm einoModel.ToolCallingChatModel, msgs []*schema.Message) (*schema.Message, error) {
	name := r.spec.Model.ModelName
	callCtx := ctx
	if c := usage.FromContext(ctx); c != nil {
		callCtx = c.Bind(ctx, name)
	}
	stream, err := model.RetryOnce(ctx, name, e.retryDelay, func(context.Context) (*schema.StreamReader[*schema.Message], error) {
		return cm.Stream(callCtx, msgs)
	})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var (
		chunks   []*schema.Message
		toolMode bool
		text     strings.Builder // 本步已输出的文本，出现工具调用时不计入回答
	)
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errors.Wrapf(err, errors.ErrLLMCallFailed, "模型 %s 流式输出中断", name)
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if len(chunk.ToolCalls) > 0 {
			toolMode = true
		}
		if r.stream && !toolMode && chunk.Content != "" {
			text.WriteString(chunk.Content)
			r.emit(pkgschema.NewResponseChunk(chunk.Content))
		}
	}
	if !toolMode {
		r.answer.WriteString(text.String())
	}
	if len(chunks) == 0 {
		return schema.AssistantMessage("", nil), nil
	}
	msg, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrLLMCallFailed, "模型 %s 输出合并失败", name)
	}
	return msg, nil
}

// callTools 同一步内的工具调用并发执行，结果按调用顺序返回
func (e *Executor) callTools(ctx context.Context, r *run, tools map[string]agent_tools.Tool, calls []schema.ToolCall) []*schema.Message {
	results := make([]*schema.Message, len(calls))
	var eg errgroup.Group
	eg.SetLimit(e.conf.ToolConcurrency)
	for i, call := range calls {
		eg.Go(func() error {
			results[i] = e.callTool(ctx, r, tools, call)
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

func (e *Executor) callTool(ctx context.Context, r *run, tools map[string]agent_tools.Tool, call schema.ToolCall) *schema.Message {
	name := call.Function.Name
	reply := &schema.Message{Role: schema.Tool, ToolCallID: call.ID, ToolName: name}

	t, ok := tools[name]
	if !ok {
		err := errors.Newf(errors.ErrToolNotFound, "tool %s is not available", name)
		metrics.ToolCall(name, err)
		reply.Content = failureText(name, err)
		return reply
	}

	_, reporting := t.(eventReporter)
	title := r.title(name)
	if !reporting {
		r.emit(pkgschema.NewLifecycleEvent(pkgschema.StatusStart, title, call.Function.Arguments))
	}

	var out string
	err := common.SafeCall(ctx, "tool-"+name, func() error {
		var err error
		out, err = invoke(ctx, r, t, call.Function.Arguments)
		return err
	})
	metrics.ToolCall(name, err)
	if err != nil {
		g.Log().Warningf(ctx, "tool %s failed: %v", name, err)
		out = failureText(name, err)
	}
	if !reporting {
		r.emit(pkgschema.NewLifecycleEvent(pkgschema.StatusEnd, title, out))
	}
	reply.Content = out
	return reply
}

// invoke 可流式的工具逐段输出 tool_chunk，各段拼接为工具结果
func invoke(ctx context.Context, r *run, t agent_tools.Tool, args string) (string, error) {
	st, ok := t.(tool.StreamableTool)
	if !ok {
		return t.InvokableRun(ctx, args)
	}
	stream, err := st.StreamableRun(ctx, args)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var b strings.Builder
	for {
		delta, err := stream.Recv()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return "", err
		}
		if delta == "" {
			continue
		}
		b.WriteString(delta)
		r.emit(pkgschema.NewToolChunk(delta))
	}
}

func failureText(name string, err error) string {
	return fmt.Sprintf("执行工具 %s 失败: %v", name, err)
}

package agent_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/Malowking/agentchat/core/common"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Tool 统一的工具能力：Info 给出名称、描述和参数 schema，InvokableRun 执行调用
type Tool = tool.InvokableTool

// InvokeFunc 本地工具的执行函数，args 为模型给出的参数
type InvokeFunc func(ctx context.Context, args map[string]any) (string, error)

// localTool 本地适配器
type localTool struct {
	info   *schema.ToolInfo
	params map[string]*schema.ParameterInfo
	fn     InvokeFunc
}

// NewLocalTool 由参数定义构造工具
func NewLocalTool(name, desc string, params map[string]*schema.ParameterInfo, fn InvokeFunc) Tool {
	info := &schema.ToolInfo{Name: name, Desc: desc}
	if len(params) > 0 {
		info.ParamsOneOf = schema.NewParamsOneOfByParams(params)
	}
	return &localTool{info: info, params: params, fn: fn}
}

func (t *localTool) Info(context.Context) (*schema.ToolInfo, error) {
	return t.info, nil
}

func (t *localTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	args, err := t.decode(argumentsInJSON)
	if err != nil {
		return "", err
	}
	return t.fn(ctx, args)
}

// decode 解析参数并检查必需项
func (t *localTool) decode(argumentsInJSON string) (map[string]any, error) {
	args, err := DecodeArgs(argumentsInJSON)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrToolFailed, "%s: 参数解析失败", t.info.Name)
	}
	for name, p := range t.params {
		if _, ok := args[name]; p.Required && !ok {
			return nil, errors.Newf(errors.ErrInvalidParameter, "%s: 缺少必需参数 '%s'", t.info.Name, name)
		}
	}
	return args, nil
}

// StreamFunc 流式本地工具的执行函数，每段输出调用一次 send
type StreamFunc func(ctx context.Context, args map[string]any, send func(delta string)) error

// streamTool 同时实现 InvokableTool 和 StreamableTool，执行器优先走流式
type streamTool struct {
	localTool
	run StreamFunc
}

// NewStreamingLocalTool 分段产出结果的本地工具，各段拼接即完整结果
func NewStreamingLocalTool(name, desc string, params map[string]*schema.ParameterInfo, fn StreamFunc) Tool {
	local := NewLocalTool(name, desc, params, nil).(*localTool)
	return &streamTool{localTool: *local, run: fn}
}

func (t *streamTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	args, err := t.decode(argumentsInJSON)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := t.run(ctx, args, func(delta string) { b.WriteString(delta) }); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (t *streamTool) StreamableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (*schema.StreamReader[string], error) {
	args, err := t.decode(argumentsInJSON)
	if err != nil {
		return nil, err
	}
	reader, writer := schema.Pipe[string](8)
	common.SafeGo(ctx, "tool-stream-"+t.info.Name, func() {
		defer writer.Close()
		err := t.run(ctx, args, func(delta string) { writer.Send(delta, nil) })
		if err != nil {
			writer.Send("", err)
		}
	})
	return reader, nil
}

// DecodeArgs 容忍空串和代码块包裹的参数 JSON
func DecodeArgs(raw string) (map[string]any, error) {
	args := make(map[string]any)
	if raw == "" {
		return args, nil
	}
	if err := common.DecodeLLMJSON(raw, &args); err != nil {
		return nil, err
	}
	return args, nil
}

// EncodeArgs 参数序列化
func EncodeArgs(args map[string]any) (string, error) {
	if len(args) == 0 {
		return "{}", nil
	}
	return sonic.MarshalString(args)
}

// ToolName 读取工具名称
func ToolName(ctx context.Context, t Tool) string {
	info, err := t.Info(ctx)
	if err != nil || info == nil {
		return ""
	}
	return info.Name
}

// ToolInfos 批量读取工具定义，用于绑定到模型
func ToolInfos(ctx context.Context, tools []Tool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// StringArg 读取字符串参数，数字等类型按文本表示
func StringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// IntArg 读取整数参数，缺省返回 def
func IntArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return def
}

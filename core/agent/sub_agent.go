package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/Malowking/agentchat/core/agent_tools"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/Malowking/agentchat/core/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// subAgentPrompt 内层智能体的系统提示词
const subAgentPrompt = "你是一个工具执行助手。根据用户的需求选择并调用可用的工具完成任务，参数不足时使用合理的默认值。" +
	"任务完成后用一两句话说明执行结果，不要编造工具没有返回的信息。"

// eventReporter 自行输出生命周期事件的工具，外层循环不再包裹 START/END
type eventReporter interface {
	reportsOwnEvents()
}

// ModelSource 子智能体使用的模型
type ModelSource func(ctx context.Context) (*model.Entry, error)

// SubAgentTitle 子智能体内部工具调用的事件标题
func SubAgentTitle(agentName, tool string) string {
	return fmt.Sprintf("Sub-Agent - %s executes tool: %s", agentName, tool)
}

// SubAgentBuilder 供 agent_tools.Registry 注入，把一个 MCP 服务包装成单个工具
func (e *Executor) SubAgentBuilder(models ModelSource) agent_tools.SubAgentBuilder {
	return func(ctx context.Context, server agent_tools.MCPServer, remote []*agent_tools.MCPTool) (agent_tools.Tool, error) {
		entry, err := models(ctx)
		if err != nil {
			return nil, err
		}
		tools := make([]agent_tools.Tool, 0, len(remote))
		names := make([]string, 0, len(remote))
		for _, t := range remote {
			tools = append(tools, t)
			names = append(names, t.RemoteName())
		}
		desc := server.Description
		if desc == "" {
			desc = fmt.Sprintf("通过 %s 服务完成任务，可用工具：%s", server.Name, strings.Join(names, ", "))
		}
		return &subAgentTool{
			exec: e,
			info: &schema.ToolInfo{
				Name: server.AsToolName,
				Desc: desc,
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"query": {Type: schema.String, Desc: "需要完成的任务描述"},
				}),
			},
			spec: &Spec{
				Name:         server.AsToolName,
				SystemPrompt: subAgentPrompt,
				Model:        entry,
				Tools:        tools,
			},
		}, nil
	}
}

// subAgentTool 调用时运行一个只带该服务工具的内层智能体，返回其最终回答
type subAgentTool struct {
	exec *Executor
	info *schema.ToolInfo
	spec *Spec
}

func (t *subAgentTool) reportsOwnEvents() {}

func (t *subAgentTool) Info(context.Context) (*schema.ToolInfo, error) {
	return t.info, nil
}

func (t *subAgentTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	// 内层智能体接收外层本轮的用户输入
	input := agent_tools.TurnFrom(ctx).UserInput
	if input == "" {
		args, err := agent_tools.DecodeArgs(argumentsInJSON)
		if err != nil {
			return "", errors.Wrapf(err, errors.ErrToolFailed, "%s: 参数解析失败", t.info.Name)
		}
		input = agent_tools.StringArg(args, "query")
	}
	if input == "" {
		return "", errors.Newf(errors.ErrInvalidParameter, "%s: 缺少任务描述", t.info.Name)
	}

	name := t.info.Name
	answer, err := t.exec.Invoke(ctx, t.spec, input, func(tool string) string { return SubAgentTitle(name, tool) })
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrToolFailed, "子智能体 %s 执行失败", name)
	}
	return answer, nil
}

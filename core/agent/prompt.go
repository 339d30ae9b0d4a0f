package agent

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// DefaultSystemPrompt 智能体未配置系统提示词时使用
const DefaultSystemPrompt = "你是一个乐于助人的智能助手。请结合对话上下文、参考资料和可用工具，准确、简洁地回答用户的问题。"

const knowledgeHeader = "\n\n以下是从知识库检索到的参考资料，回答时优先依据这些内容；资料与问题无关时忽略它们：\n"

// BuildMessages system + 历史 + 本轮输入
func BuildMessages(spec *Spec, input string) []*schema.Message {
	system := spec.SystemPrompt
	if strings.TrimSpace(system) == "" {
		system = DefaultSystemPrompt
	}
	if spec.Knowledge != "" {
		system += knowledgeHeader + spec.Knowledge
	}

	msgs := make([]*schema.Message, 0, len(spec.History)+2)
	msgs = append(msgs, schema.SystemMessage(system))
	for _, m := range spec.History {
		// 历史中的 system 消息以当前配置为准
		if m == nil || m.Role == schema.System {
			continue
		}
		msgs = append(msgs, m)
	}
	return append(msgs, schema.UserMessage(input))
}

package knowledge_retrieval

import (
	"context"

	"github.com/Malowking/agentchat/core/agent_tools"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/Malowking/agentchat/core/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/gogf/gf/v2/frame/g"
)

// ToolName 知识检索工具名
const ToolName = "query_knowledge"

// Answerer 检索并拼接上下文，*retriever.Retriever 即满足
type Answerer interface {
	Answer(ctx context.Context, req *retriever.Request) (string, error)
}

// NewTool 在当前轮绑定的知识库上检索
func NewTool(r Answerer) agent_tools.Tool {
	return agent_tools.NewLocalTool(ToolName,
		"从当前智能体绑定的知识库中检索与问题相关的文档片段，适用于需要引用内部资料回答的问题",
		map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "需要检索的问题或关键词", Required: true},
			"top_k": {Type: schema.Integer, Desc: "返回的文档片段数量"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			query := agent_tools.StringArg(args, "query")
			if query == "" {
				return "", errors.New(errors.ErrInvalidParameter, "query_knowledge: 缺少必需参数 'query'")
			}
			turn := agent_tools.TurnFrom(ctx)
			if len(turn.KnowledgeIDs) == 0 {
				return retriever.NoRelevantDocuments, nil
			}

			req := &retriever.Request{Query: query, KnowledgeIDs: turn.KnowledgeIDs}
			if topK := agent_tools.IntArg(args, "top_k", 0); topK > 0 {
				req.TopK = &topK
			}
			g.Log().Infof(ctx, "[知识检索工具] 执行查询: %s, 知识库: %v", query, turn.KnowledgeIDs)

			answer, err := r.Answer(ctx, req)
			if err != nil {
				return "", errors.Wrapf(err, errors.ErrToolFailed, "知识检索失败")
			}
			if answer == "" {
				return retriever.NoRelevantDocuments, nil
			}
			return answer, nil
		})
}

package knowledge_retrieval

import (
	"context"
	stdErrors "errors"
	"testing"

	"github.com/Malowking/agentchat/core/agent_tools"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/Malowking/agentchat/core/retriever"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnswerer struct {
	answer string
	err    error
	req    *retriever.Request
}

func (f *fakeAnswerer) Answer(_ context.Context, req *retriever.Request) (string, error) {
	f.req = req
	return f.answer, f.err
}

func TestQueryKnowledge(t *testing.T) {
	ctx := agent_tools.WithTurn(context.Background(), &agent_tools.TurnContext{KnowledgeIDs: []string{"kb1"}})

	t.Run("使用当前轮的知识库", func(t *testing.T) {
		f := &fakeAnswerer{answer: "AgentChat supports MCP."}
		out, err := NewTool(f).InvokableRun(ctx, `{"query":"MCP?","top_k":3}`)
		require.NoError(t, err)
		assert.Equal(t, "AgentChat supports MCP.", out)
		assert.Equal(t, []string{"kb1"}, f.req.KnowledgeIDs)
		require.NotNil(t, f.req.TopK)
		assert.Equal(t, 3, *f.req.TopK)
	})

	t.Run("没有知识库", func(t *testing.T) {
		f := &fakeAnswerer{}
		out, err := NewTool(f).InvokableRun(context.Background(), `{"query":"x"}`)
		require.NoError(t, err)
		assert.Equal(t, retriever.NoRelevantDocuments, out)
		assert.Nil(t, f.req)
	})

	t.Run("检索失败", func(t *testing.T) {
		_, err := NewTool(&fakeAnswerer{err: stdErrors.New("down")}).InvokableRun(ctx, `{"query":"x"}`)
		assert.True(t, errors.HasCode(err, errors.ErrToolFailed))
	})
}

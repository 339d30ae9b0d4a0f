package usage

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	records []*Record
}

func (m *memStore) SaveUsage(_ context.Context, records []*Record) error {
	m.records = append(m.records, records...)
	return nil
}

func TestCollectorAggregates(t *testing.T) {
	c := NewCollector()
	c.Add("qwen-max", 10, 5)
	c.Add("qwen-max", 3, 2)
	c.Add("gpt-4o", 1, 1)
	c.Add("", 100, 100)

	store := &memStore{}
	require.NoError(t, c.Flush(context.Background(), store, "u1", "helper"))
	require.Len(t, store.records, 2)
	assert.Equal(t, "gpt-4o", store.records[0].ModelName)
	assert.Equal(t, "qwen-max", store.records[1].ModelName)
	assert.Equal(t, 13, store.records[1].InputTokens)
	assert.Equal(t, 7, store.records[1].OutputTokens)
	assert.Equal(t, "u1", store.records[1].UserID)
	assert.Equal(t, "helper", store.records[1].AgentName)
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector()

	ctx := c.Bind(context.Background(), "conversation")
	ctx = callbacks.OnStart(ctx, &model.CallbackInput{Messages: []*schema.Message{schema.UserMessage("hello")}})
	callbacks.OnEnd(ctx, &model.CallbackOutput{
		Message:    schema.AssistantMessage("hi", nil),
		TokenUsage: &model.TokenUsage{PromptTokens: 8, CompletionTokens: 2, TotalTokens: 10},
	})

	ctx = c.Bind(context.Background(), "conversation")
	stream := schema.StreamReaderFromArray([]*model.CallbackOutput{
		{Message: schema.AssistantMessage("a", nil)},
		{Message: schema.AssistantMessage("b", nil), TokenUsage: &model.TokenUsage{PromptTokens: 4, CompletionTokens: 6, TotalTokens: 10}},
	})
	_, out := callbacks.OnEndWithStreamOutput(ctx, stream)
	out.Close()

	records := c.Records("u", "a")
	require.Len(t, records, 1)
	assert.Equal(t, 12, records[0].InputTokens)
	assert.Equal(t, 8, records[0].OutputTokens)
}

func TestCountMessagesEmpty(t *testing.T) {
	assert.Equal(t, 0, CountMessages(nil))
	assert.Equal(t, 0, CountText(""))
}

package schema

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleEventJSON(t *testing.T) {
	ev := NewLifecycleEvent(StatusStart, "weather", "正在调用工具 weather...")
	raw, err := sonic.Marshal(ev)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, sonic.Unmarshal(raw, &m))
	assert.Equal(t, "event", m["type"])
	data := m["data"].(map[string]any)
	assert.Equal(t, "START", data["status"])
	assert.Equal(t, "weather", data["title"])

	d, ok := ev.Lifecycle()
	require.True(t, ok)
	assert.Equal(t, StatusStart, d.Status)
}

func TestResponseChunkText(t *testing.T) {
	ev := NewResponseChunk("你好")
	assert.Equal(t, "你好", ev.Text())
	_, ok := ev.Lifecycle()
	assert.False(t, ok)
}

func TestEventRoundTripRestoresData(t *testing.T) {
	events := []*Event{
		NewLifecycleEvent(StatusEnd, "weather", "晴"),
		NewResponseChunk("ok"),
	}
	raw, err := sonic.Marshal(events)
	require.NoError(t, err)

	var got []*Event
	require.NoError(t, sonic.Unmarshal(raw, &got))
	require.Len(t, got, 2)
	d, ok := got[0].Lifecycle()
	require.True(t, ok)
	assert.Equal(t, "晴", d.Message)
	assert.Equal(t, "ok", got[1].Text())
}

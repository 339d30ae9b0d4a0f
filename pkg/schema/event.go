package schema

import (
	"encoding/json"
	"time"

	"github.com/bytedance/sonic"
)

// EventType 流事件类型
type EventType string

const (
	EventTypeEvent         EventType = "event"
	EventTypeToolChunk     EventType = "tool_chunk"
	EventTypeResponseChunk EventType = "response_chunk"
)

// 生命周期状态
const (
	StatusStart = "START"
	StatusEnd   = "END"
)

// TitleError 终止性错误事件的标题
const TitleError = "error"

// EventData event 类型的负载
type EventData struct {
	Status  string `json:"status"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Event 一条流式事件记录；Data 为 *EventData 或 string
type Event struct {
	Type EventType `json:"type"`
	Time int64     `json:"time"`
	Data any       `json:"data"`
}

// NewLifecycleEvent START / END 事件
func NewLifecycleEvent(status, title, message string) *Event {
	return &Event{
		Type: EventTypeEvent,
		Time: time.Now().Unix(),
		Data: &EventData{Status: status, Title: title, Message: message},
	}
}

// NewResponseChunk 助手输出增量
func NewResponseChunk(delta string) *Event {
	return &Event{Type: EventTypeResponseChunk, Time: time.Now().Unix(), Data: delta}
}

// NewToolChunk 工具输出增量
func NewToolChunk(delta string) *Event {
	return &Event{Type: EventTypeToolChunk, Time: time.Now().Unix(), Data: delta}
}

// Lifecycle 返回 event 类型的负载
func (e *Event) Lifecycle() (*EventData, bool) {
	if e.Type != EventTypeEvent {
		return nil, false
	}
	d, ok := e.Data.(*EventData)
	return d, ok
}

// Text 返回 chunk 类型的文本
func (e *Event) Text() string {
	s, _ := e.Data.(string)
	return s
}

// UnmarshalJSON 依据 type 还原 Data 的具体类型
func (e *Event) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type EventType       `json:"type"`
		Time int64           `json:"time"`
		Data json.RawMessage `json:"data"`
	}
	if err := sonic.Unmarshal(b, &raw); err != nil {
		return err
	}
	e.Type, e.Time = raw.Type, raw.Time
	if len(raw.Data) == 0 {
		return nil
	}
	if raw.Type == EventTypeEvent {
		d := &EventData{}
		if err := sonic.Unmarshal(raw.Data, d); err != nil {
			return err
		}
		e.Data = d
		return nil
	}
	var text string
	if err := sonic.Unmarshal(raw.Data, &text); err != nil {
		return err
	}
	e.Data = text
	return nil
}

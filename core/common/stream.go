package common

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/Malowking/agentchat/pkg/schema"
	"github.com/bytedance/sonic"
	"github.com/gogf/gf/v2/frame/g"
)

// SSEDone 流结束标记
const SSEDone = "[DONE]"

// EventSink SSE 输出端，*ghttp.Response 即满足
type EventSink interface {
	Header() http.Header
	Writeln(content ...interface{})
	Flush()
}

// SetSSEHeaders 设置 SSE 响应头
func SetSSEHeaders(sink EventSink) {
	sink.Header().Set("Content-Type", "text/event-stream")
	sink.Header().Set("Cache-Control", "no-cache")
	sink.Header().Set("Connection", "keep-alive")
	sink.Header().Set("X-Accel-Buffering", "no") // 禁用Nginx缓冲
}

// WriteSSEEvent 写入一条事件记录
func WriteSSEEvent(sink EventSink, ev *schema.Event) error {
	marshal, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}
	writeSSEData(sink, string(marshal))
	return nil
}

// WriteSSEDone 写入结束标记
func WriteSSEDone(sink EventSink) {
	writeSSEData(sink, SSEDone)
}

func writeSSEData(sink EventSink, data string) {
	if len(data) == 0 {
		return
	}
	sink.Writeln(fmt.Sprintf("data:%s\n", data))
	sink.Flush()
}

// PumpEvents 把事件流写到 sink，直到 EOF 后写入 [DONE]
func PumpEvents(ctx context.Context, sink EventSink, reader *schema.StreamReader[*schema.Event]) error {
	defer reader.Close()
	SetSSEHeaders(sink)
	for {
		ev, err := reader.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			g.Log().Errorf(ctx, "event stream error: %v", err)
			break
		}
		if err := WriteSSEEvent(sink, ev); err != nil {
			g.Log().Warningf(ctx, "failed to marshal event: %v", err)
		}
	}
	// 取消时流静默关闭
	if ctx.Err() != nil {
		return ctx.Err()
	}
	WriteSSEDone(sink)
	return nil
}

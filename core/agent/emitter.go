package agent

import (
	"context"
	"sync"

	pkgschema "github.com/Malowking/agentchat/pkg/schema"
)

// emitter 串行写入事件并记录副本用于持久化；读取端关闭时取消本轮
type emitter struct {
	ctx    context.Context
	cancel context.CancelFunc
	w      *pkgschema.StreamWriter[*pkgschema.Event]

	mu     sync.Mutex
	events []*pkgschema.Event
}

func newEmitter(ctx context.Context, cancel context.CancelFunc, w *pkgschema.StreamWriter[*pkgschema.Event]) *emitter {
	return &emitter{ctx: ctx, cancel: cancel, w: w}
}

func (em *emitter) emit(ev *pkgschema.Event) {
	if ev == nil {
		return
	}
	em.mu.Lock()
	defer em.mu.Unlock()
	// 取消后不再输出任何事件
	if em.ctx.Err() != nil {
		return
	}
	if closed := em.w.Send(ev, nil); closed {
		em.cancel()
		return
	}
	em.events = append(em.events, ev)
}

func (em *emitter) snapshot() []*pkgschema.Event {
	em.mu.Lock()
	defer em.mu.Unlock()
	out := make([]*pkgschema.Event, len(em.events))
	copy(out, em.events)
	return out
}

package schema

import (
	"io"
	"sync"
)

// StreamReader 流式数据读取器
type StreamReader[T any] struct {
	ch   chan streamItem[T]
	done chan struct{}
	once *sync.Once
}

// StreamWriter 流式数据写入器
type StreamWriter[T any] struct {
	ch   chan streamItem[T]
	done chan struct{}
	mu   sync.Mutex
	shut bool
}

type streamItem[T any] struct {
	value T
	err   error
}

// Pipe 创建一个流式管道，返回 Reader 和 Writer
func Pipe[T any](bufferSize int) (*StreamReader[T], *StreamWriter[T]) {
	ch := make(chan streamItem[T], bufferSize)
	done := make(chan struct{})
	return &StreamReader[T]{ch: ch, done: done, once: &sync.Once{}}, &StreamWriter[T]{ch: ch, done: done}
}

// Recv 从流中读取下一个元素，流结束时返回 io.EOF
func (r *StreamReader[T]) Recv() (T, error) {
	var zero T
	select {
	case <-r.done:
		return zero, io.EOF
	default:
	}

	select {
	case item, ok := <-r.ch:
		if !ok {
			return zero, io.EOF
		}
		return item.value, item.err
	case <-r.done:
		return zero, io.EOF
	}
}

// Close 关闭读取器，之后写入端的 Send 立即返回 closed=true
func (r *StreamReader[T]) Close() {
	r.once.Do(func() { close(r.done) })
}

// Send 向流中发送一个元素，读取端已关闭时返回 true
func (w *StreamWriter[T]) Send(value T, err error) (closed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.shut {
		return true
	}

	select {
	case <-w.done:
		return true
	case w.ch <- streamItem[T]{value: value, err: err}:
		return false
	}
}

// Close 关闭写入器
func (w *StreamWriter[T]) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.shut {
		w.shut = true
		close(w.ch)
	}
}

// ReadAll 读取全部元素直到 EOF
func ReadAll[T any](r *StreamReader[T]) ([]T, error) {
	defer r.Close()
	var out []T
	for {
		v, err := r.Recv()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}

package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSafeGo(t *testing.T) {
	ctx := context.Background()

	t.Run("正常goroutine执行", func(t *testing.T) {
		done := make(chan bool, 1)
		SafeGo(ctx, "test-normal-goroutine", func() {
			done <- true
		})
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("goroutine did not run")
		}
	})

	t.Run("panic不会导致进程崩溃", func(t *testing.T) {
		done := make(chan struct{})
		SafeGo(ctx, "test-panic-goroutine", func() {
			defer close(done)
			panic("boom")
		})
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("goroutine did not finish")
		}
	})
}

func TestSafeCall(t *testing.T) {
	ctx := context.Background()

	err := SafeCall(ctx, "panic-task", func() error { panic("bad tool") })
	assert.ErrorContains(t, err, "bad tool")

	want := errors.New("plain")
	assert.Equal(t, want, SafeCall(ctx, "err-task", func() error { return want }))
	assert.NoError(t, SafeCall(ctx, "ok-task", func() error { return nil }))
}

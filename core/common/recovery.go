package common

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/gogf/gf/v2/frame/g"
)

// RecoverPanic 通用 panic 恢复函数
// 在 defer 中调用，捕获并记录 panic 信息（包含完整堆栈）
func RecoverPanic(ctx context.Context, taskName string) {
	if r := recover(); r != nil {
		g.Log().Criticalf(ctx,
			"[PANIC RECOVERED] Task: %s\nError: %v\nStack Trace:\n%s",
			taskName, r, string(debug.Stack()))
	}
}

// SafeGo 安全启动 goroutine
//
//	SafeGo(ctx, "ingest-file", func() {
//	    // 你的任务代码
//	})
func SafeGo(ctx context.Context, taskName string, fn func()) {
	go func() {
		defer RecoverPanic(ctx, taskName)
		fn()
	}()
}

// SafeCall 同步执行 fn，panic 转为 error 返回
func SafeCall(ctx context.Context, taskName string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			g.Log().Criticalf(ctx,
				"[PANIC RECOVERED] Task: %s\nError: %v\nStack Trace:\n%s",
				taskName, r, string(debug.Stack()))
			err = fmt.Errorf("panic in task %s: %v", taskName, r)
		}
	}()
	return fn()
}

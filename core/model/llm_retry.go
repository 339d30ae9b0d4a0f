package model

import (
	"context"
	"time"

	"github.com/Malowking/agentchat/core/errors"
	"github.com/gogf/gf/v2/frame/g"
)

// DefaultRetryDelay 模型调用重试间隔
const DefaultRetryDelay = 500 * time.Millisecond

// RetryOnce 调用失败后等待 delay 再试一次，仅用于幂等的模型调用
func RetryOnce[T any](ctx context.Context, modelName string, delay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	result, err := fn(ctx)
	if err == nil {
		return result, nil
	}
	var zero T
	if ctx.Err() != nil {
		return zero, ctx.Err()
	}
	g.Log().Warningf(ctx, "[模型重试] 失败: 模型 %s, 错误: %v", modelName, err)

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-time.After(delay):
	}

	result, err = fn(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, errors.Wrapf(err, errors.ErrLLMCallFailed, "模型 %s 调用失败", modelName)
	}
	g.Log().Infof(ctx, "[模型重试] 成功: 模型 %s 在第 2 次尝试成功", modelName)
	return result, nil
}

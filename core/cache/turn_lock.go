// Package cache redis 客户端与对话轮次锁
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Malowking/agentchat/core/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TurnLocker 同一对话同一时刻只允许一个进行中的轮次
type TurnLocker interface {
	// Acquire 拿不到锁时返回 ErrDialogBusy
	Acquire(ctx context.Context, dialogID string) (release func(), err error)
}

const turnLockPrefix = "agentchat:turn:"

// releaseScript 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisTurnLocker 多实例部署使用，ttl 应不小于轮次超时
type RedisTurnLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisTurnLocker(rdb *redis.Client, ttl time.Duration) *RedisTurnLocker {
	return &RedisTurnLocker{rdb: rdb, ttl: ttl}
}

func (l *RedisTurnLocker) Acquire(ctx context.Context, dialogID string) (func(), error) {
	key := turnLockPrefix + dialogID
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInternalError, "acquire turn lock for dialog %s", dialogID)
	}
	if !ok {
		return nil, errors.Newf(errors.ErrDialogBusy, "dialog %s has a turn in progress", dialogID)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			_ = releaseScript.Run(context.WithoutCancel(ctx), l.rdb, []string{key}, token).Err()
		})
	}, nil
}

// MemoryTurnLocker 单实例部署使用
type MemoryTurnLocker struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func NewMemoryTurnLocker() *MemoryTurnLocker {
	return &MemoryTurnLocker{busy: make(map[string]struct{})}
}

func (l *MemoryTurnLocker) Acquire(_ context.Context, dialogID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.busy[dialogID]; ok {
		return nil, errors.Newf(errors.ErrDialogBusy, "dialog %s has a turn in progress", dialogID)
	}
	l.busy[dialogID] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.busy, dialogID)
			l.mu.Unlock()
		})
	}, nil
}

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Malowking/agentchat/core/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseLocker(t *testing.T, l TurnLocker) {
	ctx := context.Background()
	dialog := uuid.NewString()

	release, err := l.Acquire(ctx, dialog)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, dialog)
	assert.True(t, errors.HasCode(err, errors.ErrDialogBusy))

	other, err := l.Acquire(ctx, dialog+"-other")
	require.NoError(t, err)
	other()

	release()
	release()
	again, err := l.Acquire(ctx, dialog)
	require.NoError(t, err)
	again()
}

func TestMemoryTurnLocker(t *testing.T) {
	exerciseLocker(t, NewMemoryTurnLocker())
}

func TestRedisTurnLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb, err := NewRedisClient(context.Background(), &RedisConfig{Address: addr})
	require.NoError(t, err)
	defer rdb.Close()
	exerciseLocker(t, NewRedisTurnLocker(rdb, time.Minute))
}

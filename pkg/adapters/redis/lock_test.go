package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/adapters/redis"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:lock:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "room1", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, unlock)

	assert.True(t, mr.Exists("test:lock:lock:room1"), "Lock key should be set in Redis")

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:lock:room1"), "Lock key should be removed after unlock")
}

func TestRedisLocker_Contention(t *testing.T) {
	mr, client := newClient(t)
	locker1 := redis.NewLocker(client, "test:lock:")
	locker2 := redis.NewLocker(client, "test:lock:")
	ctx := context.Background()
	key := "shared-room"

	unlock1, err := locker1.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)

	ctxTimeout, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = locker2.Lock(ctxTimeout, key, 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.WithinDuration(t, start.Add(500*time.Millisecond), time.Now(), 150*time.Millisecond, "Should block until timeout")

	require.NoError(t, unlock1(ctx))

	unlock2, err := locker2.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	defer unlock2(ctx)

	assert.True(t, mr.Exists("test:lock:lock:shared-room"))
}

func TestRedisLocker_UnlockIgnoresForeignOwner(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "p:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "r", time.Second)
	require.NoError(t, err)

	// The lock expires and someone else takes it.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("p:lock:r", "someone-else"))

	require.NoError(t, unlock(ctx))
	got, err := mr.Get("p:lock:r")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

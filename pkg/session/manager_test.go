package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/adapters/redis"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/session"
)

// counter detects overlapping critical sections.
type counter struct {
	mu      sync.Mutex
	active  int
	maxSeen int
}

func (c *counter) enter() {
	c.mu.Lock()
	c.active++
	if c.active > c.maxSeen {
		c.maxSeen = c.active
	}
	c.mu.Unlock()
}

func (c *counter) leave() {
	c.mu.Lock()
	c.active--
	c.mu.Unlock()
}

func TestManager_SerialisesRoom(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()

	var (
		wg sync.WaitGroup
		c  counter
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.WithLock(ctx, "room", func(context.Context) error {
				c.enter()
				defer c.leave()
				time.Sleep(2 * time.Millisecond)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.maxSeen)
}

func TestManager_RoomsAreIndependent(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()

	inside := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = manager.WithLock(ctx, "a", func(context.Context) error {
			close(inside)
			<-done
			return nil
		})
	}()
	<-inside

	err := manager.WithLock(ctx, "b", func(context.Context) error { return nil })
	close(done)
	assert.NoError(t, err)
}

func TestManager_LoadAndDelete(t *testing.T) {
	store := memory.NewStore()
	manager := session.NewManager(store)
	ctx := context.Background()

	_, err := manager.Load(ctx, "room")
	assert.ErrorIs(t, err, domain.ErrStateNotFound)

	require.NoError(t, store.Save(ctx, "room", &domain.ActivityState{Room: "room", SectionID: "s", StepID: "q"}))
	state, err := manager.Load(ctx, "room")
	require.NoError(t, err)
	assert.Equal(t, "s:q", state.Position())

	rooms, err := manager.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"room"}, rooms)

	require.NoError(t, manager.Delete(ctx, "room"))
	_, err = manager.Load(ctx, "room")
	assert.ErrorIs(t, err, domain.ErrStateNotFound)
	assert.Same(t, store, manager.Store())
}

func TestManager_PropagatesError(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	boom := errors.New("boom")
	err := manager.WithLock(context.Background(), "room", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestManager_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := redis.NewLocker(client, "lattice:")
	manager := session.NewManager(memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(time.Second))
	ctx := context.Background()

	err := manager.WithLock(ctx, "room", func(context.Context) error {
		assert.True(t, mr.Exists("lattice:lock:room"))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("lattice:lock:room"))
}

type failingLocker struct{}

func (failingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	return nil, errors.New("unavailable")
}

func TestManager_DistributedLockFailure(t *testing.T) {
	manager := session.NewManager(memory.NewStore(), session.WithLocker(failingLocker{}))
	called := false
	err := manager.WithLock(context.Background(), "room", func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorContains(t, err, "failed to acquire distributed lock")
	assert.False(t, called)
}

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed room lock outlives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates room access, ensuring commands for one room run one at a time.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.StateStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over the given state store.
func NewManager(store ports.StateStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu and call release(room) after unlocking.
func (m *Manager) acquire(room string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[room]
	if !exists {
		entry = &lockEntry{}
		m.locks[room] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(room string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[room]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, room)
	}
}

// Load reads the run of a room under its lock.
func (m *Manager) Load(ctx context.Context, room string) (*domain.ActivityState, error) {
	var state *domain.ActivityState
	err := m.WithLock(ctx, room, func(ctx context.Context) error {
		var err error
		state, err = m.store.Load(ctx, room)
		return err
	})
	return state, err
}

// Delete removes the run of a room.
func (m *Manager) Delete(ctx context.Context, room string) error {
	return m.WithLock(ctx, room, func(ctx context.Context) error {
		return m.store.Delete(ctx, room)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying state store.
func (m *Manager) Store() ports.StateStore {
	return m.store
}

// WithLock executes fn while holding the lock for room.
func (m *Manager) WithLock(ctx context.Context, room string, fn func(context.Context) error) error {
	entry := m.acquire(room)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(room)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, room, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"room", room,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock acquired through DistributedLocker.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serialises room access across replicas.
type DistributedLocker interface {
	// Lock blocks until the lock for key (a room name) is held or ctx is done.
	// The lock expires after ttl if never released.
	// The returned UnlockFunc MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

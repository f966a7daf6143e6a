// Package redis provides Redis-backed activity state, chat history and room locks.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/lattice/pkg/domain"
)

// DefaultPrefix namespaces every key the adapters write.
const DefaultPrefix = "lattice:activity:"

// farFuture is the index score of records without a TTL (2100-01-01).
const farFuture = 4102444800

// Store implements ports.StateStore using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for activity records.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for activity records.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying client so the locker and history can share it.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(room string) string {
	return s.prefix + room
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save persists the state to Redis.
func (s *Store) Save(ctx context.Context, room string, state *domain.ActivityState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(room), data, s.ttl)

	// Score = expiry time so List can prune lazily.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = farFuture
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: room})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the state from Redis.
func (s *Store) Load(ctx context.Context, room string) (*domain.ActivityState, error) {
	val, err := s.client.Get(ctx, s.key(room)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var state domain.ActivityState
	if err := json.Unmarshal(val, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if state.Metadata == nil {
		state.Metadata = domain.Metadata{}
	}
	return &state, nil
}

// Delete removes the record and its index entry.
func (s *Store) Delete(ctx context.Context, room string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(room))
	pipe.ZRem(ctx, s.indexKey(), room)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns rooms with an activity, pruning expired index entries first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired activities: %w", err)
	}

	rooms, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return rooms, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/lattice/pkg/domain"
)

// Messages implements ports.MessageStore in memory.
type Messages struct {
	mu    sync.RWMutex
	rooms map[string][]domain.Message
}

// NewMessages creates an empty history store.
func NewMessages() *Messages {
	return &Messages{rooms: make(map[string][]domain.Message)}
}

// Append stores msg with a fresh id.
func (m *Messages) Append(ctx context.Context, msg domain.Message) (domain.Message, error) {
	msg.ID = uuid.NewString()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[msg.Room] = append(m.rooms[msg.Room], msg)
	return msg, nil
}

// History returns a copy of the room's messages, oldest first.
func (m *Messages) History(ctx context.Context, room string) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Message(nil), m.rooms[room]...), nil
}

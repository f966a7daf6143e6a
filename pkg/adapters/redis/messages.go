package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/lattice/pkg/domain"
)

// Messages implements ports.MessageStore as one Redis list per room.
type Messages struct {
	client *backend.Client
	prefix string
}

// NewMessages creates a history store. An empty prefix uses "lattice:history:".
func NewMessages(client *backend.Client, prefix string) *Messages {
	if prefix == "" {
		prefix = "lattice:history:"
	}
	return &Messages{client: client, prefix: prefix}
}

// Append pushes msg onto the room's list.
func (m *Messages) Append(ctx context.Context, msg domain.Message) (domain.Message, error) {
	msg.ID = uuid.NewString()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return msg, fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := m.client.RPush(ctx, m.prefix+msg.Room, data).Err(); err != nil {
		return msg, fmt.Errorf("failed to append message: %w", err)
	}
	return msg, nil
}

// History returns the room's list, oldest first.
func (m *Messages) History(ctx context.Context, room string) ([]domain.Message, error) {
	raw, err := m.client.LRange(ctx, m.prefix+room, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	out := make([]domain.Message, 0, len(raw))
	for _, item := range raw {
		var msg domain.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

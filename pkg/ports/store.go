package ports

import (
	"context"

	"github.com/aretw0/lattice/pkg/domain"
)

// StateStore persists activity state, one record per room.
type StateStore interface {
	// Save creates or replaces the state for room.
	Save(ctx context.Context, room string, state *domain.ActivityState) error

	// Load retrieves the state for room.
	// Returns domain.ErrStateNotFound if the room has no activity.
	Load(ctx context.Context, room string) (*domain.ActivityState, error)

	// Delete removes the state for room. Deleting a missing record is not an error.
	Delete(ctx context.Context, room string) error

	// List returns the rooms with an activity in progress.
	List(ctx context.Context) ([]string, error)
}

// MessageStore keeps the chat history of each room.
type MessageStore interface {
	// Append stores msg and returns it with ID and CreatedAt filled in.
	Append(ctx context.Context, msg domain.Message) (domain.Message, error)

	// History returns the messages of room, oldest first.
	History(ctx context.Context, room string) ([]domain.Message, error)
}

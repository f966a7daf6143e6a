package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/domain"
)

func contractState(room string) *domain.ActivityState {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.ActivityState{
		Room:         room,
		ActivityPath: "quiz.yaml",
		SectionID:    "intro",
		StepID:       "q1",
		Attempts:     1,
		MaxAttempts:  3,
		Metadata: domain.Metadata{
			"name":  "Ada",
			"score": 42,
			"tags":  []any{"a", "b"},
		},
		ClassifierModel: "MODEL_0",
		FeedbackModel:   "MODEL_1",
		StartedAt:       now,
		UpdatedAt:       now,
	}
}

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	room := "contract-room-" + time.Now().Format("20060102150405.000000")

	t.Run("Save and Load", func(t *testing.T) {
		state := contractState(room)
		require.NoError(t, store.Save(ctx, room, state), "Save should not return error")

		loaded, err := store.Load(ctx, room)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, room, loaded.Room)
		assert.Equal(t, "quiz.yaml", loaded.ActivityPath)
		assert.Equal(t, "intro", loaded.SectionID)
		assert.Equal(t, "q1", loaded.StepID)
		assert.Equal(t, 1, loaded.Attempts)
		assert.Equal(t, 3, loaded.MaxAttempts)
		assert.Equal(t, "MODEL_1", loaded.FeedbackModel)
		assert.Equal(t, "Ada", loaded.Metadata["name"])
		// JSON-backed stores hand numbers back as float64.
		assert.EqualValues(t, 42, loaded.Metadata["score"])
		assert.Len(t, loaded.Metadata["tags"], 2)
	})

	t.Run("Save Replaces", func(t *testing.T) {
		state := contractState(room)
		state.StepID = "q2"
		state.Attempts = 0
		state.Metadata = domain.Metadata{"only": true}
		require.NoError(t, store.Save(ctx, room, state))

		loaded, err := store.Load(ctx, room)
		require.NoError(t, err)
		assert.Equal(t, "q2", loaded.StepID)
		assert.Equal(t, 0, loaded.Attempts)
		assert.Equal(t, domain.Metadata{"only": true}, loaded.Metadata)
	})

	t.Run("Loaded State Is A Copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, room)
		require.NoError(t, err)
		loaded.Metadata["mutated"] = 1

		again, err := store.Load(ctx, room)
		require.NoError(t, err)
		assert.NotContains(t, again.Metadata, "mutated")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+room)
		assert.ErrorIs(t, err, domain.ErrStateNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, room, contractState(room)))
		require.NoError(t, store.Delete(ctx, room), "Delete should not return error")

		_, err := store.Load(ctx, room)
		assert.ErrorIs(t, err, domain.ErrStateNotFound, "Load after Delete should return ErrStateNotFound")

		assert.NoError(t, store.Delete(ctx, room), "Deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		r1, r2 := room+"-1", room+"-2"
		_ = store.Save(ctx, r1, contractState(r1))
		_ = store.Save(ctx, r2, contractState(r2))
		defer func() {
			_ = store.Delete(ctx, r1)
			_ = store.Delete(ctx, r2)
		}()

		rooms, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, rooms, r1)
		assert.Contains(t, rooms, r2)
	})
}

// RunMessageStoreContract verifies a MessageStore implementation.
func RunMessageStoreContract(t *testing.T, store MessageStore) {
	ctx := context.Background()
	room := "contract-history-" + time.Now().Format("20060102150405.000000")

	t.Run("Append Assigns Identity", func(t *testing.T) {
		msg, err := store.Append(ctx, domain.Message{Room: room, Username: "ada", Content: "first"})
		require.NoError(t, err)
		assert.NotEmpty(t, msg.ID)
		assert.False(t, msg.CreatedAt.IsZero())
	})

	t.Run("History Is Ordered And Scoped", func(t *testing.T) {
		_, err := store.Append(ctx, domain.Message{Room: room, Username: domain.SenderSystem, Content: "second"})
		require.NoError(t, err)
		_, err = store.Append(ctx, domain.Message{Room: room + "-other", Username: "bob", Content: "elsewhere"})
		require.NoError(t, err)

		history, err := store.History(ctx, room)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "first", history[0].Content)
		assert.Equal(t, "second", history[1].Content)
		assert.Equal(t, domain.SenderSystem, history[1].Username)
	})

	t.Run("Empty History", func(t *testing.T) {
		history, err := store.History(ctx, "empty-"+room)
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/persistence/middleware"
	"github.com/aretw0/lattice/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func secure(t *testing.T, next ports.StateStore, active []byte, fallback ...[]byte) ports.StateStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
	require.NoError(t, err)
	return mw(next)
}

func sampleState(room string) *domain.ActivityState {
	return &domain.ActivityState{
		Room:         room,
		ActivityPath: "sky.yaml",
		SectionID:    "intro",
		StepID:       "ask",
		MaxAttempts:  3,
		Metadata:     domain.Metadata{"secret": "my-secret-sauce", "score": float64(2)},
	}
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	store := secure(t, underlying, generateKey(t))

	require.NoError(t, store.Save(ctx, "r1", sampleState("r1")))

	stored, err := underlying.Load(ctx, "r1")
	require.NoError(t, err)
	assert.NotContains(t, stored.Metadata, "secret")
	assert.Contains(t, stored.Metadata, middleware.EnvelopeKey)
	assert.Equal(t, "ask", stored.StepID, "position stays readable")

	loaded, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "my-secret-sauce", loaded.Metadata["secret"])
	assert.Equal(t, float64(2), loaded.Metadata["score"])

	rooms, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, rooms)

	require.NoError(t, store.Delete(ctx, "r1"))
	_, err = store.Load(ctx, "r1")
	assert.ErrorIs(t, err, domain.ErrStateNotFound)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)

	oldStore := secure(t, underlying, oldKey)
	require.NoError(t, oldStore.Save(ctx, "r1", sampleState("r1")))

	newStore := secure(t, underlying, newKey, oldKey)
	loaded, err := newStore.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "my-secret-sauce", loaded.Metadata["secret"])

	loaded.Metadata["secret"] = "rotated"
	require.NoError(t, newStore.Save(ctx, "r1", loaded))

	_, err = oldStore.Load(ctx, "r1")
	assert.Error(t, err, "the old key alone cannot read new-key envelopes")
}

func TestEncryptionMiddleware_PlainState(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	require.NoError(t, underlying.Save(ctx, "r1", sampleState("r1")))

	_, err := secure(t, underlying, generateKey(t)).Load(ctx, "r1")
	assert.ErrorIs(t, err, middleware.ErrNotEncrypted)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.Error(t, err)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.Error(t, err)
}

func TestDecodeKey(t *testing.T) {
	key := generateKey(t)
	got, err := middleware.DecodeKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = middleware.DecodeKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
	_, err = middleware.DecodeKey("not base64!")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunStateStoreContract(t, secure(t, memory.NewStore(), generateKey(t)))
}

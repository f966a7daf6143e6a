package sql_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlstore "github.com/aretw0/lattice/pkg/adapters/sql"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

func openSQLite(t *testing.T) *sqlstore.Store {
	t.Helper()
	store, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "lattice.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	ports.RunStateStoreContract(t, openSQLite(t))
}

func TestSQLiteMessages_Contract(t *testing.T) {
	ports.RunMessageStoreContract(t, openSQLite(t))
}

func TestSQLiteStore_MemoryDSN(t *testing.T) {
	store, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "r", &domain.ActivityState{Room: "r", SectionID: "s", StepID: "q"}))
	loaded, err := store.Load(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "q", loaded.StepID)
	assert.Equal(t, domain.Metadata{}, loaded.Metadata)
	assert.False(t, loaded.StartedAt.IsZero())
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := sqlstore.Open(context.Background(), "oracle", "")
	assert.ErrorContains(t, err, "unsupported")
}

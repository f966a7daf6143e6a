package sql

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/domain"
)

func newMock(t *testing.T, driver string) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, driver)), mock
}

func TestLoad_PostgresBindVars(t *testing.T) {
	store, mock := newMock(t, "postgres")

	mock.ExpectQuery(regexp.QuoteMeta("FROM activity_states WHERE room = $1")).
		WithArgs("room-1").
		WillReturnError(errors.New("connection reset"))

	_, err := store.Load(context.Background(), "room-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrStateNotFound)
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_NoRows(t *testing.T) {
	store, mock := newMock(t, "sqlmock")

	mock.ExpectQuery(regexp.QuoteMeta("FROM activity_states WHERE room = ?")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"room"}))

	_, err := store.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrStateNotFound)
}

func TestLoad_CorruptMetadata(t *testing.T) {
	store, mock := newMock(t, "sqlmock")

	cols := []string{"room", "activity_path", "section_id", "step_id", "attempts", "max_attempts", "metadata",
		"classifier_model", "feedback_model", "started_at", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM activity_states")).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("r", "a.yaml", "s", "q", 0, 3, "{not json", "", "", time.Now().UTC(), time.Now().UTC()))

	_, err := store.Load(context.Background(), "r")
	assert.ErrorContains(t, err, "unmarshal metadata")
}

func TestSave_Error(t *testing.T) {
	store, mock := newMock(t, "postgres")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO activity_states")).
		WillReturnError(errors.New("disk full"))

	err := store.Save(context.Background(), "r", &domain.ActivityState{Room: "r"})
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_Error(t *testing.T) {
	store, mock := newMock(t, "postgres")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO messages (id, room, username, content, created_at) VALUES ($1, $2, $3, $4, $5)")).
		WillReturnError(errors.New("constraint"))

	_, err := store.Append(context.Background(), domain.Message{Room: "r", Username: "System", Content: "x"})
	assert.ErrorContains(t, err, "append message")
}

func TestMigrate_Error(t *testing.T) {
	store, mock := newMock(t, "postgres")
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS activity_states").WillReturnError(errors.New("denied"))

	assert.ErrorContains(t, store.Migrate(context.Background()), "denied")
}

// Package sql stores activity state and chat history in SQLite or Postgres
// through sqlx.
package sql

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/aretw0/lattice/pkg/domain"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var schemas = map[string][]string{
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS activity_states (
			room TEXT PRIMARY KEY,
			activity_path TEXT NOT NULL,
			section_id TEXT NOT NULL,
			step_id TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL DEFAULT 3,
			metadata TEXT NOT NULL DEFAULT '{}',
			classifier_model TEXT NOT NULL DEFAULT '',
			feedback_model TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			room TEXT NOT NULL,
			username TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS messages_room_seq ON messages (room, seq)`,
	},
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS activity_states (
			room TEXT PRIMARY KEY,
			activity_path TEXT NOT NULL,
			section_id TEXT NOT NULL,
			step_id TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL DEFAULT 3,
			metadata TEXT NOT NULL DEFAULT '{}',
			classifier_model TEXT NOT NULL DEFAULT '',
			feedback_model TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			room TEXT NOT NULL,
			username TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS messages_room_seq ON messages (room, seq)`,
	},
}

const (
	upsertState = `INSERT INTO activity_states
		(room, activity_path, section_id, step_id, attempts, max_attempts, metadata, classifier_model, feedback_model, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (room) DO UPDATE SET
			activity_path = excluded.activity_path,
			section_id = excluded.section_id,
			step_id = excluded.step_id,
			attempts = excluded.attempts,
			max_attempts = excluded.max_attempts,
			metadata = excluded.metadata,
			classifier_model = excluded.classifier_model,
			feedback_model = excluded.feedback_model,
			updated_at = excluded.updated_at`
	selectState = `SELECT room, activity_path, section_id, step_id, attempts, max_attempts, metadata,
		classifier_model, feedback_model, started_at, updated_at
		FROM activity_states WHERE room = ?`
	deleteState   = `DELETE FROM activity_states WHERE room = ?`
	listRooms     = `SELECT room FROM activity_states ORDER BY room`
	insertMessage = `INSERT INTO messages (id, room, username, content, created_at) VALUES (?, ?, ?, ?, ?)`
	selectHistory = `SELECT id, room, username, content, created_at FROM messages WHERE room = ? ORDER BY seq`
)

type stateRow struct {
	Room            string    `db:"room"`
	ActivityPath    string    `db:"activity_path"`
	SectionID       string    `db:"section_id"`
	StepID          string    `db:"step_id"`
	Attempts        int       `db:"attempts"`
	MaxAttempts     int       `db:"max_attempts"`
	Metadata        string    `db:"metadata"`
	ClassifierModel string    `db:"classifier_model"`
	FeedbackModel   string    `db:"feedback_model"`
	StartedAt       time.Time `db:"started_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// Store implements ports.StateStore and ports.MessageStore.
type Store struct {
	db *sqlx.DB
}

// Open connects with driver (DriverSQLite or DriverPostgres) and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if _, ok := schemas[driver]; !ok {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite && strings.Contains(dsn, ":memory:") {
		// Every pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection. The schema is not applied.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts, ok := schemas[s.db.DriverName()]
	if !ok {
		stmts = schemas[DriverSQLite]
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Save upserts the state of room.
func (s *Store) Save(ctx context.Context, room string, state *domain.ActivityState) error {
	md, err := json.Marshal(state.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if state.Metadata == nil {
		md = []byte("{}")
	}
	updated := state.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	started := state.StartedAt
	if started.IsZero() {
		started = updated
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(upsertState),
		room, state.ActivityPath, state.SectionID, state.StepID, state.Attempts, state.MaxAttempts,
		string(md), state.ClassifierModel, state.FeedbackModel, started.UTC(), updated.UTC())
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Load returns the state of room or domain.ErrStateNotFound.
func (s *Store) Load(ctx context.Context, room string) (*domain.ActivityState, error) {
	var row stateRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(selectState), room); err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, domain.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	md := domain.Metadata{}
	if err := json.Unmarshal([]byte(row.Metadata), &md); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &domain.ActivityState{
		Room:            row.Room,
		ActivityPath:    row.ActivityPath,
		SectionID:       row.SectionID,
		StepID:          row.StepID,
		Attempts:        row.Attempts,
		MaxAttempts:     row.MaxAttempts,
		Metadata:        md,
		ClassifierModel: row.ClassifierModel,
		FeedbackModel:   row.FeedbackModel,
		StartedAt:       row.StartedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}, nil
}

// Delete removes the state of room.
func (s *Store) Delete(ctx context.Context, room string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(deleteState), room); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}

// List returns rooms with an activity in progress.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var rooms []string
	if err := s.db.SelectContext(ctx, &rooms, listRooms); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// Append stores a chat message.
func (s *Store) Append(ctx context.Context, msg domain.Message) (domain.Message, error) {
	msg.ID = uuid.NewString()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(insertMessage), msg.ID, msg.Room, msg.Username, msg.Content, msg.CreatedAt)
	if err != nil {
		return msg, fmt.Errorf("failed to append message: %w", err)
	}
	return msg, nil
}

// History returns the messages of room in insertion order.
func (s *Store) History(ctx context.Context, room string) ([]domain.Message, error) {
	out := []domain.Message{}
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(selectHistory), room); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return out, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

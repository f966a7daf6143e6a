package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
)

// Store implements ports.StateStore with one JSON file per room.
type Store struct {
	BasePath string
}

// NewStore creates a store below basePath, ".lattice/state" when empty.
func NewStore(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".lattice", "state")
	}
	return &Store{BasePath: basePath}
}

// Room names are arbitrary strings, so they are escaped into file names.
func (s *Store) path(room string) string {
	return filepath.Join(s.BasePath, url.PathEscape(room)+".json")
}

// Save writes the state atomically through a synced temp file and a rename.
func (s *Store) Save(ctx context.Context, room string, state *domain.ActivityState) error {
	if room == "" {
		return errors.New("room cannot be empty")
	}
	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(s.BasePath, ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	dest := s.path(room)
	if err := os.Rename(tmpPath, dest); err != nil {
		// Windows refuses to rename over an existing file.
		if rmErr := os.Remove(dest); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("failed to replace state file: %w", err)
		}
		if err := os.Rename(tmpPath, dest); err != nil {
			return fmt.Errorf("failed to rename state file: %w", err)
		}
	}
	return nil
}

// Load reads the state of room.
func (s *Store) Load(ctx context.Context, room string) (*domain.ActivityState, error) {
	if room == "" {
		return nil, errors.New("room cannot be empty")
	}
	data, err := os.ReadFile(s.path(room))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	var state domain.ActivityState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if state.Metadata == nil {
		state.Metadata = domain.Metadata{}
	}
	return &state, nil
}

// Delete removes the state file; a missing file is not an error.
func (s *Store) Delete(ctx context.Context, room string) error {
	if room == "" {
		return errors.New("room cannot be empty")
	}
	if err := os.Remove(s.path(room)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete state file: %w", err)
	}
	return nil
}

// List returns every room with a state file.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list state files: %w", err)
	}
	rooms := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, ".") {
			continue
		}
		room, err := url.PathUnescape(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms, nil
}

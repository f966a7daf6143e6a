package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/aretw0/lattice/pkg/domain"
)

// Loader implements ports.ActivityLoader over documents held in memory.
type Loader struct {
	docs map[string]*domain.ActivityDefinition
}

// NewLoader parses the provided raw YAML documents keyed by path.
func NewLoader(data map[string]string) (*Loader, error) {
	docs := make(map[string]*domain.ActivityDefinition, len(data))
	for path, raw := range data {
		def, err := domain.ParseActivity([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		def.Path = path
		docs[path] = def
	}
	return &Loader{docs: docs}, nil
}

// NewFromDefinitions serves already-built definitions keyed by their Path.
func NewFromDefinitions(defs ...*domain.ActivityDefinition) (*Loader, error) {
	docs := make(map[string]*domain.ActivityDefinition, len(defs))
	for _, d := range defs {
		if d.Path == "" {
			return nil, fmt.Errorf("activity definition missing Path")
		}
		docs[d.Path] = d
	}
	return &Loader{docs: docs}, nil
}

// Load returns the document stored under path.
func (l *Loader) Load(ctx context.Context, path string) (*domain.ActivityDefinition, error) {
	def, ok := l.docs[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrActivityNotFound, path)
	}
	return def, nil
}

// List returns all paths in deterministic order.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(l.docs))
	for k := range l.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

package ports

import (
	"context"

	"github.com/aretw0/lattice/pkg/domain"
)

// ActivityLoader retrieves activity documents.
// Path validation is the loader's responsibility.
type ActivityLoader interface {
	// Load parses the document at path.
	// Returns domain.ErrActivityNotFound or domain.ErrInvalidPath on failure.
	Load(ctx context.Context, path string) (*domain.ActivityDefinition, error)

	// List returns the loadable document paths.
	List(ctx context.Context) ([]string, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
type Watchable interface {
	// Watch returns a channel that receives the path of every changed document.
	Watch(ctx context.Context) (<-chan string, error)
}

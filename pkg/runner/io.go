package runner

import (
	"context"

	"github.com/aretw0/lattice/pkg/ports"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI) and JSON (structured) modes.
type IOHandler interface {
	// Emit presents one engine event to the user.
	ports.Broadcaster

	// Input reads a reply from the user. It returns io.EOF when input ends.
	Input(ctx context.Context) (string, error)
}

// ContentRenderer turns markdown into terminal output.
type ContentRenderer func(string) (string, error)

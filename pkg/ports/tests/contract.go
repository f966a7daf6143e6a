package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// ActivityLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.ActivityLoader.
// want maps each loadable path to the id of its first section.
func ActivityLoaderContractTest(t *testing.T, loader ports.ActivityLoader, want map[string]string) {
	t.Helper()
	ctx := context.Background()

	t.Run("Load_Success", func(t *testing.T) {
		for path, firstSection := range want {
			def, err := loader.Load(ctx, path)
			if err != nil {
				t.Fatalf("unexpected error loading %s: %v", path, err)
			}
			if len(def.Sections) == 0 || def.Sections[0].ID != firstSection {
				t.Errorf("first section mismatch for %s, want %q", path, firstSection)
			}
			if def.Path != path {
				t.Errorf("Path not recorded: got %q, want %q", def.Path, path)
			}
		}
	})

	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := loader.Load(ctx, "non-existent.yaml")
		if !errors.Is(err, domain.ErrActivityNotFound) {
			t.Errorf("expected ErrActivityNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		paths, err := loader.List(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing activities: %v", err)
		}
		lookup := make(map[string]bool)
		for _, p := range paths {
			lookup[p] = true
		}
		for p := range want {
			if !lookup[p] {
				t.Errorf("activity %s missing from list", p)
			}
		}
	})
}

// Package file loads activity documents from a directory tree and keeps
// activity state as JSON files on the local filesystem.
package file

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/lattice/pkg/domain"
)

// Extension is the only accepted document suffix.
const Extension = ".yaml"

// Loader reads activity documents below Root. Paths are relative to Root and
// may not escape it. Parsed documents are cached until the file changes.
type Loader struct {
	Root   string
	Logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*domain.ActivityDefinition
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{
		Root:   dir,
		Logger: slog.New(slog.DiscardHandler),
		cache:  make(map[string]*domain.ActivityDefinition),
	}
}

// Resolve validates path and returns its location on disk.
func (l *Loader) Resolve(path string) (string, error) {
	clean := filepath.ToSlash(strings.TrimSpace(path))
	switch {
	case clean == "":
		return "", fmt.Errorf("%w: empty path", domain.ErrInvalidPath)
	case filepath.IsAbs(clean) || strings.HasPrefix(clean, "/"):
		return "", fmt.Errorf("%w: %q is absolute", domain.ErrInvalidPath, path)
	case filepath.Ext(clean) != Extension:
		return "", fmt.Errorf("%w: %q must end in %s", domain.ErrInvalidPath, path, Extension)
	}
	for _, part := range strings.Split(clean, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q leaves the activity root", domain.ErrInvalidPath, path)
		}
	}
	return filepath.Join(l.Root, filepath.FromSlash(clean)), nil
}

// Load returns the parsed document at path.
func (l *Loader) Load(ctx context.Context, path string) (*domain.ActivityDefinition, error) {
	full, err := l.Resolve(path)
	if err != nil {
		return nil, err
	}
	key := filepath.ToSlash(filepath.Clean(path))

	l.mu.RLock()
	def, ok := l.cache[key]
	l.mu.RUnlock()
	if ok {
		return def, nil
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrActivityNotFound, path)
		}
		return nil, fmt.Errorf("failed to read activity: %w", err)
	}
	def, err = domain.ParseActivity(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	def.Path = key

	l.mu.Lock()
	l.cache[key] = def
	l.mu.Unlock()
	return def, nil
}

// List returns every document path below Root, sorted.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	var out []string
	err := filepath.WalkDir(l.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) != Extension {
			return nil
		}
		rel, err := filepath.Rel(l.Root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// Invalidate drops a cached document.
func (l *Loader) Invalidate(path string) {
	l.mu.Lock()
	delete(l.cache, filepath.ToSlash(filepath.Clean(path)))
	l.mu.Unlock()
}

// Watch invalidates cached documents as they change and reports their paths.
// The channel closes when ctx is done.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	err = filepath.WalkDir(l.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(p)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", l.Root, err)
	}

	out := make(chan string, 16)
	go func() {
		defer close(out)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				l.handleEvent(ctx, watcher, event, out)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.Logger.Warn("activity watcher error", "error", err)
			}
		}
	}()
	return out, nil
}

func (l *Loader) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event, out chan<- string) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = watcher.Add(event.Name)
			return
		}
	}
	if filepath.Ext(event.Name) != Extension || event.Op == fsnotify.Chmod {
		return
	}
	rel, err := filepath.Rel(l.Root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	l.Invalidate(rel)
	l.Logger.Debug("activity changed", "path", rel, "op", event.Op.String())

	select {
	case out <- rel:
	case <-ctx.Done():
	}
}

package lattice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/internal/runtime"
	"github.com/aretw0/lattice/pkg/adapters/file"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/logic"
	"github.com/aretw0/lattice/pkg/persistence/middleware"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/session"
)

// ErrWatchUnsupported is returned by Watch when the loader cannot report changes.
var ErrWatchUnsupported = errors.New("current loader does not support watching")

// Engine is the high-level entry point for the Lattice library.
// It wraps the internal runtime, serialises commands per room and records the
// participants' own chat lines.
type Engine struct {
	runtime  *runtime.Engine
	sessions *session.Manager

	loader      ports.ActivityLoader
	states      ports.StateStore
	messages    ports.MessageStore
	broadcaster ports.Broadcaster

	classifier ports.Classifier
	feedback   ports.FeedbackGenerator
	translator ports.Translator
	grader     ports.Grader
	scripts    ports.ScriptRunner

	stateMW []middleware.Middleware
	locker  ports.DistributedLocker
	lockTTL time.Duration
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
	rng     logic.Rand
	now     func() time.Time

	Name string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLoader injects a custom ActivityLoader, bypassing the default file loader.
func WithLoader(l ports.ActivityLoader) Option {
	return func(e *Engine) { e.loader = l }
}

// WithStateStore sets where runs are persisted. Defaults to memory.
func WithStateStore(s ports.StateStore) Option {
	return func(e *Engine) { e.states = s }
}

// WithStateMiddleware wraps the state store. The first middleware given is the outermost.
func WithStateMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Engine) { e.stateMW = append(e.stateMW, mws...) }
}

// WithMessageStore sets where chat history is kept. Defaults to memory.
func WithMessageStore(m ports.MessageStore) Option {
	return func(e *Engine) { e.messages = m }
}

// WithBroadcaster sets where events go. Defaults to a memory.Recorder.
func WithBroadcaster(b ports.Broadcaster) Option {
	return func(e *Engine) { e.broadcaster = b }
}

// WithClassifier sets the response classifier. Required.
func WithClassifier(c ports.Classifier) Option {
	return func(e *Engine) { e.classifier = c }
}

// WithFeedback sets the feedback generator.
func WithFeedback(f ports.FeedbackGenerator) Option {
	return func(e *Engine) { e.feedback = f }
}

// WithTranslator sets the translator.
func WithTranslator(t ports.Translator) Option {
	return func(e *Engine) { e.translator = t }
}

// WithGrader sets the completion grader.
func WithGrader(g ports.Grader) Option {
	return func(e *Engine) { e.grader = g }
}

// WithScriptRunner replaces the embedded Lua runner.
func WithScriptRunner(r ports.ScriptRunner) Option {
	return func(e *Engine) { e.scripts = r }
}

// WithLocker adds a distributed room lock for multi-replica deployments.
func WithLocker(l ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = l
		e.lockTTL = ttl
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRand fixes the random source, mainly for reproducible tests.
func WithRand(r logic.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New initializes a new Lattice Engine.
// By default, it loads activity documents from the directory root.
// If WithLoader option is provided, root can be empty.
func New(root string, opts ...Option) (*Engine, error) {
	eng := &Engine{}

	// Apply Options first to check if a loader is provided
	for _, opt := range opts {
		opt(eng)
	}

	var fileLoader *file.Loader
	if eng.loader == nil {
		if root == "" {
			return nil, fmt.Errorf("root is required when no custom loader is provided")
		}
		absPath, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		eng.Name = filepath.Base(absPath)
		fileLoader = file.NewLoader(absPath)
		eng.loader = fileLoader
	} else if root != "" {
		eng.Name = filepath.Base(root)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("library", eng.Name)
	}
	if fileLoader != nil {
		fileLoader.Logger = eng.logger
	}
	if eng.states == nil {
		eng.states = memory.NewStore()
	}
	for i := len(eng.stateMW) - 1; i >= 0; i-- {
		eng.states = eng.stateMW[i](eng.states)
	}
	if eng.messages == nil {
		eng.messages = memory.NewMessages()
	}
	if eng.broadcaster == nil {
		eng.broadcaster = memory.NewRecorder()
	}
	if eng.now == nil {
		eng.now = time.Now
	}

	runtimeOpts := []runtime.Option{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
		runtime.WithClock(eng.now),
	}
	if eng.rng != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithRand(eng.rng))
	}

	rt, err := runtime.New(runtime.Deps{
		Loader:      eng.loader,
		States:      eng.states,
		Messages:    eng.messages,
		Broadcaster: eng.broadcaster,
		Classifier:  eng.classifier,
		Feedback:    eng.feedback,
		Translator:  eng.translator,
		Grader:      eng.grader,
		Scripts:     eng.scripts,
	}, runtimeOpts...)
	if err != nil {
		return nil, err
	}
	eng.runtime = rt

	sessionOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker), session.WithLockTTL(eng.lockTTL))
	}
	eng.sessions = session.NewManager(eng.states, sessionOpts...)

	return eng, nil
}

// Start begins the activity at path in room, replacing any run in progress.
func (e *Engine) Start(ctx context.Context, room, path, username string) error {
	return e.sessions.WithLock(ctx, room, func(ctx context.Context) error {
		return e.runtime.Start(ctx, room, path, username)
	})
}

// Respond records the participant's message in the room and processes it as
// the answer to the current question. It returns domain.ErrStateNotFound when
// the room has no run; the message is kept in the history either way.
func (e *Engine) Respond(ctx context.Context, room, username, text string) error {
	return e.sessions.WithLock(ctx, room, func(ctx context.Context) error {
		msg, err := e.messages.Append(ctx, domain.Message{
			Room:      room,
			Username:  username,
			Content:   text,
			CreatedAt: e.now().UTC(),
		})
		if err != nil {
			e.logger.Warn("message not stored", "room", room, "err", err)
		}
		e.broadcaster.Emit(ctx, domain.EventChatMessage, domain.ChatPayload{
			ID:       msg.ID,
			Username: username,
			Content:  text,
		}, room)
		return e.runtime.Respond(ctx, room, username, text)
	})
}

// Cancel deletes the run in room.
func (e *Engine) Cancel(ctx context.Context, room string) error {
	return e.sessions.WithLock(ctx, room, func(ctx context.Context) error {
		return e.runtime.Cancel(ctx, room)
	})
}

// Status reports the run in room and emits it as an activity_status event.
func (e *Engine) Status(ctx context.Context, room string) (domain.StatusPayload, error) {
	var status domain.StatusPayload
	err := e.sessions.WithLock(ctx, room, func(ctx context.Context) error {
		var err error
		status, err = e.runtime.Status(ctx, room)
		return err
	})
	return status, err
}

// DisplayMetadata posts the run's metadata to the room.
func (e *Engine) DisplayMetadata(ctx context.Context, room string) error {
	return e.sessions.WithLock(ctx, room, func(ctx context.Context) error {
		return e.runtime.DisplayMetadata(ctx, room)
	})
}

// Info posts the run's position and a grading of the room history.
func (e *Engine) Info(ctx context.Context, room, username string) error {
	return e.sessions.WithLock(ctx, room, func(ctx context.Context) error {
		return e.runtime.Info(ctx, room, username)
	})
}

// History returns the chat history of room, oldest first.
func (e *Engine) History(ctx context.Context, room string) ([]domain.Message, error) {
	return e.messages.History(ctx, room)
}

// Rooms lists the rooms with a run in progress.
func (e *Engine) Rooms(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Watch returns a channel that reports the path of every activity document
// that changes. Returns ErrWatchUnsupported if the loader cannot watch.
func (e *Engine) Watch(ctx context.Context) (<-chan string, error) {
	if w, ok := e.loader.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, ErrWatchUnsupported
}

// Loader returns the underlying ActivityLoader used by the engine.
func (e *Engine) Loader() ports.ActivityLoader {
	return e.loader
}

// Broadcaster returns where the engine emits events.
func (e *Engine) Broadcaster() ports.Broadcaster {
	return e.broadcaster
}

// Package runtime drives activity runs: starting them, processing user turns,
// walking non-interactive steps and completing or cancelling a run.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/logic"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/script"
)

// Deps are the collaborators of an Engine. Loader, States, Messages,
// Broadcaster and Classifier are required.
type Deps struct {
	Loader      ports.ActivityLoader
	States      ports.StateStore
	Messages    ports.MessageStore
	Broadcaster ports.Broadcaster
	Classifier  ports.Classifier

	// Optional. Without a Translator text is emitted as written; without a
	// FeedbackGenerator no feedback is produced; without a Grader the
	// completion summary carries no grading.
	Feedback   ports.FeedbackGenerator
	Translator ports.Translator
	Grader     ports.Grader
	// Scripts defaults to the embedded Lua runner.
	Scripts ports.ScriptRunner
}

// Engine processes activity commands for any number of rooms. It holds no
// per-room state; callers serialise calls for the same room.
type Engine struct {
	deps   Deps
	logger *slog.Logger
	hooks  domain.LifecycleHooks
	rng    logic.Rand
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = h }
}

// WithRand replaces the random source used for random buckets and directives.
func WithRand(r logic.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(deps Deps, opts ...Option) (*Engine, error) {
	switch {
	case deps.Loader == nil:
		return nil, errors.New("runtime: loader is required")
	case deps.States == nil:
		return nil, errors.New("runtime: state store is required")
	case deps.Messages == nil:
		return nil, errors.New("runtime: message store is required")
	case deps.Broadcaster == nil:
		return nil, errors.New("runtime: broadcaster is required")
	case deps.Classifier == nil:
		return nil, errors.New("runtime: classifier is required")
	}
	if deps.Scripts == nil {
		deps.Scripts = script.NewLuaRunner()
	}
	e := &Engine{
		deps:   deps,
		logger: slog.New(slog.DiscardHandler),
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Start begins the activity at path in room, replacing any run in progress.
func (e *Engine) Start(ctx context.Context, room, path, username string) error {
	def, err := e.deps.Loader.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("load activity: %w", err)
	}
	state, err := domain.NewState(room, def)
	if err != nil {
		return err
	}
	state.StartedAt = e.now().UTC()
	if err := e.save(ctx, state); err != nil {
		return err
	}
	e.logger.Info("activity started", "room", room, "activity", path)
	e.emitActivityStart(ctx, state)

	t := e.newTurn(def, state, username, "")
	if err := e.advance(ctx, t); err != nil {
		return err
	}
	if !t.ended {
		first := def.Sections[0]
		e.emit(ctx, room, domain.EventActivityStatus, domain.StatusPayload{
			Active:       true,
			ActivityName: path,
			SectionID:    first.ID,
			StepID:       first.Steps[0].ID,
		})
	}
	return nil
}

// Cancel deletes the run in room.
func (e *Engine) Cancel(ctx context.Context, room string) error {
	state, err := e.deps.States.Load(ctx, room)
	if errors.Is(err, domain.ErrStateNotFound) {
		e.notice(ctx, room, "No active activity found to cancel.")
		return nil
	}
	if err != nil {
		return err
	}
	if err := e.deps.States.Delete(ctx, room); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	e.logger.Info("activity canceled", "room", room, "activity", state.ActivityPath)
	e.notice(ctx, room, "Activity has been canceled.")
	e.emit(ctx, room, domain.EventActivityStatus, domain.StatusPayload{Active: false})
	e.emitActivityEnd(ctx, state, "canceled")
	return nil
}

// Status reports the run in room and emits it as an activity_status event.
func (e *Engine) Status(ctx context.Context, room string) (domain.StatusPayload, error) {
	status := domain.StatusPayload{}
	state, err := e.deps.States.Load(ctx, room)
	switch {
	case errors.Is(err, domain.ErrStateNotFound):
	case err != nil:
		return status, err
	default:
		status = domain.StatusPayload{
			Active:       true,
			ActivityName: state.ActivityPath,
			SectionID:    state.SectionID,
			StepID:       state.StepID,
		}
	}
	e.emit(ctx, room, domain.EventActivityStatus, status)
	return status, nil
}

// DisplayMetadata posts the run's metadata as a fenced JSON block.
func (e *Engine) DisplayMetadata(ctx context.Context, room string) error {
	state, err := e.deps.States.Load(ctx, room)
	if errors.Is(err, domain.ErrStateNotFound) {
		e.notice(ctx, room, "No active activity found.")
		return nil
	}
	if err != nil {
		return err
	}
	body, err := prettyJSON(state.Metadata)
	if err != nil {
		return err
	}
	e.post(ctx, room, domain.SenderSystem, domain.SenderSystem, "```\n"+body+"\n```")
	return nil
}

// Info posts the position of the run together with a grading of the room history.
func (e *Engine) Info(ctx context.Context, room, username string) error {
	state, err := e.deps.States.Load(ctx, room)
	if errors.Is(err, domain.ErrStateNotFound) {
		e.notice(ctx, room, "No active activity found.")
		return nil
	}
	if err != nil {
		return err
	}
	def, err := e.deps.Loader.Load(ctx, state.ActivityPath)
	if err != nil {
		return fmt.Errorf("load activity: %w", err)
	}
	e.info(ctx, def, state, state.FeedbackModel)
	return nil
}

func (e *Engine) save(ctx context.Context, state *domain.ActivityState) error {
	state.UpdatedAt = e.now().UTC()
	if err := e.deps.States.Save(ctx, state.Room, state); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

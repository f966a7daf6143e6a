package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/domain"
)

// Defaults for a console run.
const (
	DefaultRoom     = "console"
	DefaultUsername = "user"
)

// Engine is the part of the activity engine the console drives.
type Engine interface {
	Start(ctx context.Context, room, path, username string) error
	Respond(ctx context.Context, room, username, text string) error
	Cancel(ctx context.Context, room string) error
	Status(ctx context.Context, room string) (domain.StatusPayload, error)
	DisplayMetadata(ctx context.Context, room string) error
	Info(ctx context.Context, room, username string) error
}

const helpText = `Commands:
  /status    show the current step
  /metadata  show the run's metadata
  /info      show progress and a grading of the conversation
  /cancel    cancel the activity
  /quit      leave without cancelling
Anything else is sent as your answer.`

// Runner reads replies from an IOHandler and feeds them to an Engine until the
// run in its room ends. It is the Broadcaster the engine should emit to.
type Runner struct {
	handler      IOHandler
	room         string
	username     string
	maxInputSize int
	logger       *slog.Logger

	mu     sync.Mutex
	active bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithRoom sets the room the console plays in.
func WithRoom(room string) Option {
	return func(r *Runner) { r.room = room }
}

// WithUsername sets the name replies are sent under.
func WithUsername(name string) Option {
	return func(r *Runner) { r.username = name }
}

// WithMaxInputSize overrides the reply size limit.
func WithMaxInputSize(n int) Option {
	return func(r *Runner) { r.maxInputSize = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner over handler.
func NewRunner(handler IOHandler, opts ...Option) *Runner {
	r := &Runner{
		handler:  handler,
		room:     DefaultRoom,
		username: DefaultUsername,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Room returns the room the runner plays in.
func (r *Runner) Room() string { return r.room }

// Active reports whether the last status seen for the room was active.
func (r *Runner) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Emit implements ports.Broadcaster. Events for other rooms and echoes of the
// user's own replies are dropped.
func (r *Runner) Emit(ctx context.Context, event string, payload any, room string) {
	if room != r.room {
		return
	}
	switch p := payload.(type) {
	case domain.StatusPayload:
		r.mu.Lock()
		r.active = p.Active
		r.mu.Unlock()
	case domain.ChatPayload:
		if p.Username == r.username {
			return
		}
	}
	r.handler.Emit(ctx, event, payload, room)
}

// Run starts the activity at path and processes replies until the run ends,
// the input is exhausted, the user quits or ctx is done.
func (r *Runner) Run(ctx context.Context, eng Engine, path string) error {
	if err := eng.Start(ctx, r.room, path, r.username); err != nil {
		return fmt.Errorf("start activity: %w", err)
	}

	for r.Active() {
		text, err := r.handler.Input(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		clean, err := SanitizeInputLimit(strings.TrimSpace(text), r.maxInputSize)
		if err != nil {
			r.notice(ctx, fmt.Sprintf("Error: %v. Please try again.", err))
			continue
		}
		if clean == "" {
			continue
		}

		quit, err := r.dispatch(ctx, eng, clean)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("command failed", "room", r.room, "err", err)
			r.notice(ctx, "Error: "+err.Error())
		}
		if quit {
			return nil
		}
	}
	return nil
}

func (r *Runner) dispatch(ctx context.Context, eng Engine, text string) (quit bool, err error) {
	if !strings.HasPrefix(text, "/") {
		return false, eng.Respond(ctx, r.room, r.username, text)
	}
	switch strings.ToLower(strings.Fields(text)[0]) {
	case "/quit", "/exit":
		return true, nil
	case "/cancel":
		return false, eng.Cancel(ctx, r.room)
	case "/status":
		status, err := eng.Status(ctx, r.room)
		if err != nil {
			return false, err
		}
		r.notice(ctx, describeStatus(status))
		return false, nil
	case "/metadata":
		return false, eng.DisplayMetadata(ctx, r.room)
	case "/info":
		return false, eng.Info(ctx, r.room, r.username)
	case "/help":
		r.notice(ctx, helpText)
		return false, nil
	default:
		return false, eng.Respond(ctx, r.room, r.username, text)
	}
}

func (r *Runner) notice(ctx context.Context, text string) {
	r.handler.Emit(ctx, domain.EventChatMessage, domain.ChatPayload{
		Username: domain.SenderSystem,
		Content:  text,
	}, r.room)
}

func describeStatus(s domain.StatusPayload) string {
	if !s.Active {
		return "No active activity."
	}
	return fmt.Sprintf("Activity %s at %s:%s", s.ActivityName, s.SectionID, s.StepID)
}

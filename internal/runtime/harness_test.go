package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/internal/runtime"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

const room = "room-1"

// scriptedClassifier returns labels in order, repeating the last one.
type scriptedClassifier struct {
	mu       sync.Mutex
	labels   []string
	err      error
	requests []ports.ClassifyRequest
}

func (c *scriptedClassifier) Classify(ctx context.Context, req ports.ClassifyRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.err != nil {
		return "", c.err
	}
	if len(c.labels) == 0 {
		return "", errors.New("no label scripted")
	}
	label := c.labels[0]
	if len(c.labels) > 1 {
		c.labels = c.labels[1:]
	}
	return label, nil
}

type echoFeedback struct {
	mu       sync.Mutex
	requests []ports.FeedbackRequest
	reply    func(ports.FeedbackRequest) (string, error)
}

func (f *echoFeedback) Feedback(ctx context.Context, req ports.FeedbackRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.reply != nil {
		return f.reply(req)
	}
	return "feedback for " + req.Category, nil
}

type upperTranslator struct {
	err error
}

func (u upperTranslator) Translate(ctx context.Context, text, language, model string) (string, error) {
	if strings.Contains(strings.ToLower(language), "english") {
		return text, nil
	}
	if u.err != nil {
		return "", u.err
	}
	return strings.ToUpper(text), nil
}

type fixedGrader struct {
	history []domain.Message
	rubric  string
}

func (g *fixedGrader) Grade(ctx context.Context, req ports.GradeRequest) (string, error) {
	g.history = req.History
	g.rubric = req.Rubric
	return "Grade: A", nil
}

type scriptFunc func(ctx context.Context, source string, md domain.Metadata) (domain.ScriptOutcome, error)

func (f scriptFunc) Run(ctx context.Context, source string, md domain.Metadata) (domain.ScriptOutcome, error) {
	return f(ctx, source, md)
}

// fixedRand rolls the same float for every random bucket.
type fixedRand struct{ f float64 }

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) IntN(n int) int   { return 0 }

type harness struct {
	engine     *runtime.Engine
	states     *memory.Store
	messages   *memory.Messages
	recorder   *memory.Recorder
	classifier *scriptedClassifier
	feedback   *echoFeedback
	grader     *fixedGrader
}

type harnessOption func(*runtime.Deps, *[]runtime.Option)

func withScripts(s ports.ScriptRunner) harnessOption {
	return func(d *runtime.Deps, _ *[]runtime.Option) { d.Scripts = s }
}

func withTranslator(t ports.Translator) harnessOption {
	return func(d *runtime.Deps, _ *[]runtime.Option) { d.Translator = t }
}

func withEngineOption(o runtime.Option) harnessOption {
	return func(_ *runtime.Deps, opts *[]runtime.Option) { *opts = append(*opts, o) }
}

func newHarness(t *testing.T, doc string, labels []string, opts ...harnessOption) *harness {
	t.Helper()
	loader, err := memory.NewLoader(map[string]string{"activity.yaml": doc})
	require.NoError(t, err)

	h := &harness{
		states:     memory.NewStore(),
		messages:   memory.NewMessages(),
		recorder:   memory.NewRecorder(),
		classifier: &scriptedClassifier{labels: labels},
		feedback:   &echoFeedback{},
		grader:     &fixedGrader{},
	}
	deps := runtime.Deps{
		Loader:      loader,
		States:      h.states,
		Messages:    h.messages,
		Broadcaster: h.recorder,
		Classifier:  h.classifier,
		Feedback:    h.feedback,
		Grader:      h.grader,
	}
	engineOpts := []runtime.Option{runtime.WithRand(fixedRand{f: 0.5})}
	for _, o := range opts {
		o(&deps, &engineOpts)
	}
	h.engine, err = runtime.New(deps, engineOpts...)
	require.NoError(t, err)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.engine.Start(context.Background(), room, "activity.yaml", "ada"))
}

func (h *harness) respond(t *testing.T, text string) {
	t.Helper()
	require.NoError(t, h.engine.Respond(context.Background(), room, "ada", text))
}

func (h *harness) state(t *testing.T) *domain.ActivityState {
	t.Helper()
	s, err := h.states.Load(context.Background(), room)
	require.NoError(t, err)
	return s
}

func (h *harness) chat() []string {
	return h.recorder.Chat(room)
}

func (h *harness) chatFrom(username string) []string {
	var out []string
	for _, e := range h.recorder.Events() {
		if p, ok := e.Payload.(domain.ChatPayload); ok && p.Username == username {
			out = append(out, p.Content)
		}
	}
	return out
}

func (h *harness) stored(t *testing.T) []domain.Message {
	t.Helper()
	msgs, err := h.messages.History(context.Background(), room)
	require.NoError(t, err)
	return msgs
}

func countContaining(lines []string, sub string) int {
	n := 0
	for _, l := range lines {
		if strings.Contains(l, sub) {
			n++
		}
	}
	return n
}

func dump(lines []string) string {
	return fmt.Sprintf("%q", lines)
}

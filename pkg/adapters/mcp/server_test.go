package mcp

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/runner"
)

type fakeEngine struct {
	out    *memory.Recorder
	active map[string]bool
	err    error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{out: memory.NewRecorder(), active: map[string]bool{}}
}

func (f *fakeEngine) chat(ctx context.Context, room, who, text string) {
	f.out.Emit(ctx, domain.EventChatMessage, domain.ChatPayload{Username: who, Content: text}, room)
}

func (f *fakeEngine) Start(ctx context.Context, room, path, username string) error {
	if f.err != nil {
		return f.err
	}
	f.active[room] = true
	f.chat(ctx, room, domain.SenderQuestion, "What is 6x7?")
	return nil
}

func (f *fakeEngine) Respond(ctx context.Context, room, username, text string) error {
	f.chat(ctx, room, username, text)
	f.chat(ctx, room, domain.SenderFeedback, "You said "+text)
	return nil
}

func (f *fakeEngine) Cancel(ctx context.Context, room string) error {
	delete(f.active, room)
	f.chat(ctx, room, domain.SenderSystem, "Activity has been canceled.")
	return nil
}

func (f *fakeEngine) Status(ctx context.Context, room string) (domain.StatusPayload, error) {
	s := domain.StatusPayload{Active: f.active[room]}
	f.out.Emit(ctx, domain.EventActivityStatus, s, room)
	return s, nil
}

func chatLines(events []domain.Event) []string {
	var out []string
	for _, e := range events {
		if p, ok := e.Payload.(domain.ChatPayload); ok {
			out = append(out, p.Username+": "+p.Content)
		}
	}
	return out
}

func TestTools_PlayThrough(t *testing.T) {
	ctx := context.Background()
	eng := newFakeEngine()
	s := NewServer(eng, eng.out, nil, "test")
	req := mcp.CallToolRequest{}

	res, err := s.handleStart(ctx, req, startArgs{Room: "r1", Path: "quiz.yaml"})
	require.NoError(t, err)
	assert.Equal(t, []string{"System (Question): What is 6x7?"}, chatLines(res.Events))
	require.NotNil(t, res.Status)
	assert.True(t, res.Status.Active)
	assert.Equal(t, domain.EventActivityStatus, res.Events[len(res.Events)-1].Name)

	res, err = s.handleRespond(ctx, req, respondArgs{Room: "r1", Username: "ada", Text: "42\x00"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ada: 42", "Feedback: You said 42"}, chatLines(res.Events))

	res, err = s.handleCancel(ctx, req, roomArgs{Room: "r1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"System: Activity has been canceled."}, chatLines(res.Events))
	assert.False(t, res.Status.Active)

	res, err = s.handleStatus(ctx, req, roomArgs{Room: "r1"})
	require.NoError(t, err)
	assert.Len(t, res.Events, 1)
	assert.False(t, res.Status.Active)
}

func TestTools_EventsAreScopedToTheRoom(t *testing.T) {
	ctx := context.Background()
	eng := newFakeEngine()
	s := NewServer(eng, eng.out, nil, "test")

	eng.chat(ctx, "r2", domain.SenderSystem, "meanwhile")
	res, err := s.handleStart(ctx, mcp.CallToolRequest{}, startArgs{Room: "r1", Path: "quiz.yaml"})
	require.NoError(t, err)
	for _, e := range res.Events {
		assert.Equal(t, "r1", e.Room)
	}
	assert.Equal(t, []string{"meanwhile"}, eng.out.Chat("r2"))
}

func TestTools_Errors(t *testing.T) {
	ctx := context.Background()
	eng := newFakeEngine()
	s := NewServer(eng, eng.out, nil, "test", WithMaxInputSize(4))
	req := mcp.CallToolRequest{}

	_, err := s.handleStart(ctx, req, startArgs{Room: "r1"})
	assert.Error(t, err)

	_, err = s.handleRespond(ctx, req, respondArgs{Room: "r1", Username: "ada", Text: "too long"})
	assert.ErrorIs(t, err, runner.ErrInputTooLarge)

	_, err = s.handleCancel(ctx, req, roomArgs{})
	assert.Error(t, err)

	eng.err = domain.ErrActivityNotFound
	_, err = s.handleStart(ctx, req, startArgs{Room: "r1", Path: "missing.yaml"})
	assert.ErrorIs(t, err, domain.ErrActivityNotFound)
}

func TestActivitiesResource(t *testing.T) {
	loader, err := memory.NewLoader(map[string]string{
		"b.yaml": "sections:\n  - section_id: s\n    title: S\n    steps:\n      - step_id: a\n        title: A\n        content_blocks: [hi]\n",
		"a.yaml": "sections:\n  - section_id: s\n    title: S\n    steps:\n      - step_id: a\n        title: A\n        content_blocks: [hi]\n",
	})
	require.NoError(t, err)
	eng := newFakeEngine()
	s := NewServer(eng, eng.out, loader, "test")

	contents, err := s.readActivities(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.JSONEq(t, `["a.yaml","b.yaml"]`, text.Text)
	assert.Equal(t, ActivitiesURI, text.URI)
}

package memory

import (
	"context"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
)

// Recorder is a ports.Broadcaster that keeps every event in memory.
// It backs the console and MCP surfaces and the runtime tests.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit records the event.
func (r *Recorder) Emit(ctx context.Context, event string, payload any, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, domain.Event{Name: event, Room: room, Payload: payload})
}

// Events returns a copy of everything recorded.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

// Drain returns the recorded events and forgets them.
func (r *Recorder) Drain() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

// Chat returns the content of every chat_message event for room, in order.
func (r *Recorder) Chat(room string) []string {
	var out []string
	for _, e := range r.Events() {
		if e.Room != room || e.Name != domain.EventChatMessage {
			continue
		}
		if p, ok := e.Payload.(domain.ChatPayload); ok {
			out = append(out, p.Content)
		}
	}
	return out
}

// Last returns the most recent event named name, if any.
func (r *Recorder) Last(name string) (domain.Event, bool) {
	events := r.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Name == name {
			return events[i], true
		}
	}
	return domain.Event{}, false
}

// DrainRoom returns the events recorded for room and forgets them, leaving
// other rooms untouched.
func (r *Recorder) DrainRoom(room string) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out, keep []domain.Event
	for _, e := range r.events {
		if e.Room == room {
			out = append(out, e)
		} else {
			keep = append(keep, e)
		}
	}
	r.events = keep
	return out
}

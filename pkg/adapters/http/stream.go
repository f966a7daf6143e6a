package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/domain"
)

// subscriberBuffer is how many events a slow client may lag before drops.
const subscriberBuffer = 32

// StreamManager handles active SSE connections. It is the ports.Broadcaster
// the engine emits to when served over HTTP.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- domain.Event]struct{} // room -> set of channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty StreamManager. A nil logger discards.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- domain.Event]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a listener for room. The returned func unsubscribes and
// closes the channel.
func (sm *StreamManager) Subscribe(room string) (<-chan domain.Event, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan domain.Event, subscriberBuffer)
	if _, ok := sm.subscribers[room]; !ok {
		sm.subscribers[room] = make(map[chan<- domain.Event]struct{})
	}
	sm.subscribers[room][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[room]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(sm.subscribers, room)
				}
			}
			close(ch)
		})
	}
}

// Subscribers counts the listeners of room.
func (sm *StreamManager) Subscribers(room string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[room])
}

// Emit implements ports.Broadcaster.
func (sm *StreamManager) Emit(ctx context.Context, event string, payload any, room string) {
	sm.Broadcast(domain.Event{Name: event, Room: room, Payload: payload})
}

// Broadcast delivers ev to every subscriber of its room without blocking.
func (sm *StreamManager) Broadcast(ev domain.Event) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	subs := sm.subscribers[ev.Room]
	sm.logger.Debug("StreamManager: Broadcasting", "room", ev.Room, "event", ev.Name, "subscribers", len(subs))
	for ch := range subs {
		select {
		case ch <- ev:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping event", "room", ev.Room, "event", ev.Name)
		}
	}
}

func encodeEvent(ev domain.Event) ([]byte, error) {
	return json.Marshal(ev.Payload)
}

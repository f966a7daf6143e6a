package ports

import "context"

// Broadcaster delivers events to the subscribers of a room.
// Emit is best effort and never the durability boundary.
type Broadcaster interface {
	Emit(ctx context.Context, event string, payload any, room string)
}

// BroadcasterFunc adapts a function to Broadcaster.
type BroadcasterFunc func(ctx context.Context, event string, payload any, room string)

// Emit calls f.
func (f BroadcasterFunc) Emit(ctx context.Context, event string, payload any, room string) {
	f(ctx, event, payload, room)
}

// Fanout emits to every broadcaster in order.
type Fanout []Broadcaster

// Emit implements Broadcaster.
func (f Fanout) Emit(ctx context.Context, event string, payload any, room string) {
	for _, b := range f {
		b.Emit(ctx, event, payload, room)
	}
}

package runtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/lattice/pkg/domain"
)

// emit broadcasts an event. Delivery is best effort.
func (e *Engine) emit(ctx context.Context, room, event string, payload any) {
	e.deps.Broadcaster.Emit(ctx, event, payload, room)
}

// notice broadcasts a chat line without storing it.
func (e *Engine) notice(ctx context.Context, room, text string) {
	e.emit(ctx, room, domain.EventChatMessage, domain.ChatPayload{Username: domain.SenderSystem, Content: text})
}

// post stores a chat line under sender and broadcasts it as display. A storage
// failure is logged and the line is still broadcast.
func (e *Engine) post(ctx context.Context, room, sender, display, text string) {
	msg, err := e.deps.Messages.Append(ctx, domain.Message{
		Room:      room,
		Username:  sender,
		Content:   text,
		CreatedAt: e.now().UTC(),
	})
	if err != nil {
		e.logger.Warn("message not stored", "room", room, "sender", sender, "error", err)
	}
	e.emit(ctx, room, domain.EventChatMessage, domain.ChatPayload{ID: msg.ID, Username: display, Content: text})
}

// translate degrades to an inline error string.
func (e *Engine) translate(ctx context.Context, text, language, model string) string {
	if e.deps.Translator == nil {
		return text
	}
	out, err := e.deps.Translator.Translate(ctx, text, language, model)
	if err != nil {
		e.logger.Warn("translation failed", "language", language, "error", err)
		return "Error: " + err.Error()
	}
	return out
}

func prettyJSON(md domain.Metadata) (string, error) {
	if md == nil {
		md = domain.Metadata{}
	}
	b, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}

package domain

import (
	"strings"
	"time"
)

// Sender names used for engine-authored chat lines.
const (
	SenderSystem   = "System"
	SenderQuestion = "System (Question)"
	SenderHint     = "System (Hint)"
	SenderFeedback = "Feedback"
)

// Message is one persisted chat line.
type Message struct {
	ID        string    `json:"id" db:"id"`
	Room      string    `json:"room" db:"room"`
	Username  string    `json:"username" db:"username"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsSystem reports whether the line was written by the engine.
func (m Message) IsSystem() bool {
	return m.Username == SenderSystem || strings.HasPrefix(m.Username, SenderSystem+" (")
}

// IsInlineImage reports whether the content is an embedded base64 image.
func (m Message) IsInlineImage() bool {
	return strings.Contains(m.Content, `<img src="data:image/jpeg;base64,`) ||
		strings.Contains(m.Content, `<img alt="Plot Image" src="data:image/png;base64,`)
}

// Event names emitted to a room.
const (
	EventChatMessage    = "chat_message"
	EventActivityStatus = "activity_status"
	EventSetBackground  = "set_background"
)

// ChatPayload is the body of a chat_message event. ID is empty for notices
// that are broadcast without being persisted.
type ChatPayload struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
	Content  string `json:"content"`
}

// StatusPayload is the body of an activity_status event.
type StatusPayload struct {
	Active       bool   `json:"active"`
	ActivityName string `json:"activity_name,omitempty"`
	SectionID    string `json:"section_id,omitempty"`
	StepID       string `json:"step_id,omitempty"`
}

// BackgroundPayload is the body of a set_background event.
type BackgroundPayload struct {
	ImageData string `json:"image_data"`
}

// Event is a broadcast record as seen by subscribers.
type Event struct {
	Name    string `json:"event"`
	Room    string `json:"room"`
	Payload any    `json:"payload"`
}

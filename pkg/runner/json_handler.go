package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
)

// JSONHandler implements IOHandler for structured JSON-Lines communication.
// Every event is written as one domain.Event object per line.
type JSONHandler struct {
	Reader  *bufio.Reader
	Writer  io.Writer
	Encoder *json.Encoder

	mu sync.Mutex
}

// jsonInput is the object form of an input line.
type jsonInput struct {
	Text string `json:"text"`
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		Encoder: json.NewEncoder(w),
	}
}

// Emit writes the event as a JSON line.
func (h *JSONHandler) Emit(ctx context.Context, event string, payload any, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.Encoder.Encode(domain.Event{Name: event, Room: room, Payload: payload})
}

// Input reads one line. It accepts a JSON string, an object with a "text"
// field, or raw text.
func (h *JSONHandler) Input(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || text == "") {
		return "", err
	}
	text = strings.TrimSpace(text)

	var val string
	if err := json.Unmarshal([]byte(text), &val); err == nil {
		return val, nil
	}
	var obj jsonInput
	if strings.HasPrefix(text, "{") {
		if err := json.Unmarshal([]byte(text), &obj); err == nil {
			return obj.Text, nil
		}
	}
	return text, nil
}

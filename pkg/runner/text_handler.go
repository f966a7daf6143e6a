package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
)

// TextHandler implements IOHandler for plain terminals.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer

	mu        sync.Mutex
	startOnce sync.Once
	inputChan chan inputResult
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption configures a TextHandler.
type TextHandlerOption func(*TextHandler)

// WithRenderer renders system lines as markdown.
func WithRenderer(r ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = r
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so Input can honour ctx.
func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				h.inputChan <- inputResult{err: err}
			}
			close(h.inputChan)
			return
		}
	}
}

// Emit prints chat lines and background changes.
func (h *TextHandler) Emit(ctx context.Context, event string, payload any, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch event {
	case domain.EventChatMessage:
		msg, ok := payload.(domain.ChatPayload)
		if !ok {
			return
		}
		h.printChat(msg)
	case domain.EventSetBackground:
		fmt.Fprintln(h.Writer, "[background updated]")
	}
}

func (h *TextHandler) printChat(msg domain.ChatPayload) {
	line := domain.Message{Username: msg.Username, Content: msg.Content}
	if line.IsInlineImage() {
		fmt.Fprintf(h.Writer, "[%s posted an image]\n", msg.Username)
		return
	}
	if !line.IsSystem() {
		fmt.Fprintf(h.Writer, "%s: %s\n", msg.Username, msg.Content)
		return
	}
	output := msg.Content
	if h.Renderer != nil {
		if rendered, err := h.Renderer(output); err == nil {
			output = rendered
		}
	}
	output = strings.TrimSpace(output)
	if msg.Username == domain.SenderHint || msg.Username == domain.SenderFeedback {
		output = "[" + msg.Username + "] " + output
	}
	fmt.Fprintln(h.Writer, output)
}

// Input prompts and waits for one line.
func (h *TextHandler) Input(ctx context.Context) (string, error) {
	h.initPump()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
		h.mu.Lock()
		fmt.Fprint(h.Writer, "> ")
		h.mu.Unlock()
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-h.inputChan:
		if !ok {
			return "", io.EOF
		}
		if res.err != nil {
			return "", res.err
		}
		return strings.TrimRight(res.text, "\r\n"), nil
	}
}

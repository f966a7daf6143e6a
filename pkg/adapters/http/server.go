// Package http exposes the activity engine as a JSON API with a server-sent
// event stream per room.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/runner"
)

// Engine defines the activity commands the API serves.
type Engine interface {
	Start(ctx context.Context, room, path, username string) error
	Respond(ctx context.Context, room, username, text string) error
	Cancel(ctx context.Context, room string) error
	Status(ctx context.Context, room string) (domain.StatusPayload, error)
	DisplayMetadata(ctx context.Context, room string) error
	Info(ctx context.Context, room, username string) error
	Watch(ctx context.Context) (<-chan string, error)
}

// Server holds the handlers of the API.
type Server struct {
	Engine       Engine
	Streams      *StreamManager
	Logger       *slog.Logger
	MaxInputSize int
	Version      string

	metrics http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.Logger = l }
}

// WithMetrics mounts h at GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithMaxInputSize bounds the size of a response text.
func WithMaxInputSize(n int) Option {
	return func(s *Server) { s.MaxInputSize = n }
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.Version = v }
}

type startRequest struct {
	Path     string `json:"path"`
	Username string `json:"username"`
}

type respondRequest struct {
	Username string `json:"username"`
	Text     string `json:"text"`
}

type infoRequest struct {
	Username string `json:"username"`
}

// NewHandler creates the HTTP handler. streams must be the broadcaster the
// engine emits to, or the event stream stays silent.
func NewHandler(engine Engine, streams *StreamManager, opts ...Option) http.Handler {
	s := &Server{
		Engine:  engine,
		Streams: streams,
		Logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.Logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Get("/events", s.WatchActivities)
	r.Route("/rooms/{room}", func(r chi.Router) {
		r.Post("/activity", s.StartActivity)
		r.Delete("/activity", s.CancelActivity)
		r.Get("/activity", s.GetStatus)
		r.Post("/responses", s.Respond)
		r.Post("/metadata", s.DisplayMetadata)
		r.Post("/info", s.Info)
		r.Get("/events", s.SubscribeEvents)
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	if s.Version != "" {
		resp["version"] = s.Version
	}
	writeJSON(w, http.StatusOK, resp)
}

// StartActivity handles POST /rooms/{room}/activity.
func (s *Server) StartActivity(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	var body startRequest
	if !s.decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Path) == "" {
		s.fail(w, http.StatusBadRequest, "path is required", nil)
		return
	}
	if body.Username == "" {
		body.Username = "anonymous"
	}
	if err := s.Engine.Start(r.Context(), room, body.Path, body.Username); err != nil {
		s.engineError(w, "Start", room, err)
		return
	}
	s.Logger.Info("activity started over HTTP", "room", room, "activity", body.Path)
	w.WriteHeader(http.StatusAccepted)
}

// CancelActivity handles DELETE /rooms/{room}/activity.
func (s *Server) CancelActivity(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	if err := s.Engine.Cancel(r.Context(), room); err != nil {
		s.engineError(w, "Cancel", room, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// GetStatus handles GET /rooms/{room}/activity.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	status, err := s.Engine.Status(r.Context(), room)
	if err != nil {
		s.engineError(w, "Status", room, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Respond handles POST /rooms/{room}/responses.
func (s *Server) Respond(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	var body respondRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.Username == "" {
		s.fail(w, http.StatusBadRequest, "username is required", nil)
		return
	}

	// Sanitize Input (Global Policy)
	clean, err := runner.SanitizeInputLimit(body.Text, s.MaxInputSize)
	if err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("Invalid input: %v", err), err)
		return
	}
	if strings.TrimSpace(clean) == "" {
		s.fail(w, http.StatusBadRequest, "text is required", nil)
		return
	}

	if err := s.Engine.Respond(r.Context(), room, body.Username, clean); err != nil {
		s.engineError(w, "Respond", room, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// DisplayMetadata handles POST /rooms/{room}/metadata.
func (s *Server) DisplayMetadata(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	if err := s.Engine.DisplayMetadata(r.Context(), room); err != nil {
		s.engineError(w, "DisplayMetadata", room, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Info handles POST /rooms/{room}/info.
func (s *Server) Info(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	var body infoRequest
	if r.ContentLength != 0 && !s.decode(w, r, &body) {
		return
	}
	if body.Username == "" {
		body.Username = "anonymous"
	}
	if err := s.Engine.Info(r.Context(), room, body.Username); err != nil {
		s.engineError(w, "Info", room, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// SubscribeEvents handles GET /rooms/{room}/events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}
	room := chi.URLParam(r, "room")

	ch, cancel := s.Streams.Subscribe(room)
	defer cancel()
	s.Logger.Info("SSE: Subscribing to room", "room", room)

	startStream(w)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Info("SSE Client Disconnected", "room", room)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := encodeEvent(ev)
			if err != nil {
				s.Logger.Error("SSE: encode failed", "room", room, "event", ev.Name, "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data)
			flusher.Flush()
		}
	}
}

// WatchActivities handles GET /events: the paths of activity documents that
// changed on disk, for hot reload in authoring tools.
func (s *Server) WatchActivities(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	events, err := s.Engine.Watch(r.Context())
	if err != nil {
		s.fail(w, http.StatusNotImplemented, fmt.Sprintf("Watch error: %v", err), err)
		return
	}

	startStream(w)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case path, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: reload\ndata: %s\n\n", path)
			flusher.Flush()
		}
	}
}

func startStream(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func (s *Server) engineError(w http.ResponseWriter, op, room string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrActivityNotFound), errors.Is(err, domain.ErrStateNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidPath):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.Logger.Error(op+" failed", "room", room, "err", err)
	} else {
		s.Logger.Warn(op+" rejected", "room", room, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string, err error) {
	if err != nil {
		s.Logger.Warn(msg, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

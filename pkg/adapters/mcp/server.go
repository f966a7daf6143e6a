// Package mcp exposes activity runs as Model Context Protocol tools, so an
// agent can play or drive an activity.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/runner"
)

// ActivitiesURI is the resource listing the loadable activity documents.
const ActivitiesURI = "lattice://activities"

// ToolResponse is the structured result of every tool: the events the
// command emitted to the room and the room's status afterwards.
type ToolResponse struct {
	Events []domain.Event        `json:"events" jsonschema_description:"Events emitted to the room during the call, in order"`
	Status *domain.StatusPayload `json:"status,omitempty" jsonschema_description:"Activity status of the room after the call"`
}

// Engine defines the commands the MCP server needs.
type Engine interface {
	Start(ctx context.Context, room, path, username string) error
	Respond(ctx context.Context, room, username, text string) error
	Cancel(ctx context.Context, room string) error
	Status(ctx context.Context, room string) (domain.StatusPayload, error)
}

// Server wraps the engine and exposes it as an MCP Server.
type Server struct {
	engine       Engine
	events       *memory.Recorder
	loader       ports.ActivityLoader
	mcpServer    *server.MCPServer
	logger       *slog.Logger
	maxInputSize int
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMaxInputSize bounds the size of a response text.
func WithMaxInputSize(n int) Option {
	return func(s *Server) { s.maxInputSize = n }
}

type startArgs struct {
	Room     string `json:"room"`
	Path     string `json:"path"`
	Username string `json:"username"`
}

type respondArgs struct {
	Room     string `json:"room"`
	Username string `json:"username"`
	Text     string `json:"text"`
}

type roomArgs struct {
	Room string `json:"room"`
}

// NewServer creates a new MCP Server instance. events must be the
// broadcaster the engine emits to; loader backs the activities resource and
// may be nil.
func NewServer(engine Engine, events *memory.Recorder, loader ports.ActivityLoader, version string, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		events:    events,
		loader:    loader,
		mcpServer: server.NewMCPServer("lattice-mcp", version, server.WithToolCapabilities(false)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	if loader != nil {
		s.registerResources()
	}
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("start_activity",
		mcp.WithDescription("Start an activity in a room, replacing any run in progress. Returns the opening messages."),
		mcp.WithString("room", mcp.Required(), mcp.Description("Room to play in")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Activity document path")),
		mcp.WithString("username", mcp.Description("Name of the participant")),
		mcp.WithOutputSchema[ToolResponse](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("respond",
		mcp.WithDescription("Answer the current question of a room. Returns feedback and the next messages."),
		mcp.WithString("room", mcp.Required(), mcp.Description("Room of the run")),
		mcp.WithString("username", mcp.Required(), mcp.Description("Name of the participant")),
		mcp.WithString("text", mcp.Required(), mcp.Description("The answer")),
		mcp.WithOutputSchema[ToolResponse](),
	), mcp.NewStructuredToolHandler(s.handleRespond))

	s.mcpServer.AddTool(mcp.NewTool("cancel_activity",
		mcp.WithDescription("Cancel the activity of a room."),
		mcp.WithString("room", mcp.Required(), mcp.Description("Room of the run")),
		mcp.WithOutputSchema[ToolResponse](),
	), mcp.NewStructuredToolHandler(s.handleCancel))

	s.mcpServer.AddTool(mcp.NewTool("activity_status",
		mcp.WithDescription("Report whether a room has an activity and where it stands."),
		mcp.WithString("room", mcp.Required(), mcp.Description("Room to inspect")),
		mcp.WithOutputSchema[ToolResponse](),
	), mcp.NewStructuredToolHandler(s.handleStatus))
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest, args startArgs) (ToolResponse, error) {
	if args.Room == "" || args.Path == "" {
		return ToolResponse{}, errors.New("room and path are required")
	}
	if args.Username == "" {
		args.Username = "agent"
	}
	s.events.DrainRoom(args.Room)
	if err := s.engine.Start(ctx, args.Room, args.Path, args.Username); err != nil {
		return ToolResponse{}, fmt.Errorf("start failed: %w", err)
	}
	return s.collect(ctx, args.Room)
}

func (s *Server) handleRespond(ctx context.Context, request mcp.CallToolRequest, args respondArgs) (ToolResponse, error) {
	if args.Room == "" || args.Username == "" {
		return ToolResponse{}, errors.New("room and username are required")
	}
	clean, err := runner.SanitizeInputLimit(args.Text, s.maxInputSize)
	if err != nil {
		s.logger.Warn("MCP Respond: Input rejected", "err", err, "size", len(args.Text))
		return ToolResponse{}, fmt.Errorf("input rejected: %w", err)
	}
	s.events.DrainRoom(args.Room)
	if err := s.engine.Respond(ctx, args.Room, args.Username, clean); err != nil {
		return ToolResponse{}, fmt.Errorf("respond failed: %w", err)
	}
	return s.collect(ctx, args.Room)
}

func (s *Server) handleCancel(ctx context.Context, request mcp.CallToolRequest, args roomArgs) (ToolResponse, error) {
	if args.Room == "" {
		return ToolResponse{}, errors.New("room is required")
	}
	s.events.DrainRoom(args.Room)
	if err := s.engine.Cancel(ctx, args.Room); err != nil {
		return ToolResponse{}, fmt.Errorf("cancel failed: %w", err)
	}
	return s.collect(ctx, args.Room)
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest, args roomArgs) (ToolResponse, error) {
	if args.Room == "" {
		return ToolResponse{}, errors.New("room is required")
	}
	s.events.DrainRoom(args.Room)
	return s.collect(ctx, args.Room)
}

// collect reads the room status, which also emits it, and returns everything
// the room received since the call began.
func (s *Server) collect(ctx context.Context, room string) (ToolResponse, error) {
	status, err := s.engine.Status(ctx, room)
	if err != nil {
		return ToolResponse{}, fmt.Errorf("status failed: %w", err)
	}
	events := s.events.DrainRoom(room)
	if events == nil {
		events = []domain.Event{}
	}
	return ToolResponse{Events: events, Status: &status}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(ActivitiesURI, "Available Activities",
		mcp.WithMIMEType("application/json"),
	), s.readActivities)
}

func (s *Server) readActivities(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	paths, err := s.loader.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	jsonBytes, _ := json.Marshal(paths)
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ActivitiesURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}

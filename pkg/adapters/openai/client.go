// Package openai implements the classifier, feedback, translation and grading
// collaborators on top of an OpenAI-compatible chat completions endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"
)

// DefaultModel is sent when an alias has no mapping.
const DefaultModel = "gpt-4o-mini"

var (
	// ErrNoAPIKey is returned by NewClient without credentials or an injected service.
	ErrNoAPIKey = errors.New("openai: api key not set")
	// ErrNoChoicesReturned is returned when a completion carries no choices.
	ErrNoChoicesReturned = errors.New("openai: no choices returned")
)

// ChatService is the slice of the SDK the adapter needs.
type ChatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

type completions struct {
	client openai.Client
}

func (c *completions) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Client implements ports.Classifier, ports.FeedbackGenerator, ports.Translator
// and ports.Grader.
type Client struct {
	chat         ChatService
	models       map[string]string
	defaultModel string
	limiter      *rate.Limiter
	logger       *slog.Logger

	apiKey  string
	baseURL string
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithModels maps document aliases such as MODEL_0 to provider model names.
func WithModels(models map[string]string) Option {
	return func(c *Client) {
		for k, v := range models {
			c.models[k] = v
		}
	}
}

// WithDefaultModel replaces DefaultModel.
func WithDefaultModel(name string) Option {
	return func(c *Client) { c.defaultModel = name }
}

// WithRateLimit throttles outgoing requests. perSecond <= 0 disables throttling.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithChatService injects the completion backend, mainly for tests.
func WithChatService(svc ChatService) Option {
	return func(c *Client) { c.chat = svc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient builds a client. Without WithChatService an API key is required.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		models:       make(map[string]string),
		defaultModel: DefaultModel,
		logger:       slog.New(slog.DiscardHandler),
		timeout:      60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.chat != nil {
		return c, nil
	}
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(c.apiKey),
		option.WithHTTPClient(&http.Client{Timeout: c.timeout}),
	}
	if c.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(c.baseURL))
	}
	c.chat = &completions{client: openai.NewClient(reqOpts...)}
	return c, nil
}

// ResolveModel maps an alias to a provider model. Unknown MODEL_ aliases and
// empty names fall back to the default model; anything else is used verbatim.
func (c *Client) ResolveModel(alias string) string {
	if name, ok := c.models[alias]; ok {
		return name
	}
	if alias == "" || alias == "None" || strings.HasPrefix(alias, "MODEL_") {
		return c.defaultModel
	}
	return alias
}

type prompt struct {
	system      string
	user        string
	maxTokens   int64
	temperature float64
}

func (c *Client) complete(ctx context.Context, model string, p prompt) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit: %w", err)
		}
	}
	name := c.ResolveModel(model)
	start := time.Now()
	resp, err := c.chat.Create(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(name),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.system),
			openai.UserMessage(p.user),
		},
		MaxTokens:   openai.Int(p.maxTokens),
		Temperature: openai.Float(p.temperature),
		N:           openai.Int(1),
	})
	if err != nil {
		c.logger.Warn("chat completion failed", "model", name, "error", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	c.logger.Debug("chat completion", "model", name, "duration", time.Since(start))
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

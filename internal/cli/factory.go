// Package cli wires configuration into a ready engine for the lattice commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/config"
	"github.com/aretw0/lattice/pkg/adapters/file"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/adapters/openai"
	"github.com/aretw0/lattice/pkg/adapters/redis"
	"github.com/aretw0/lattice/pkg/adapters/sql"
	"github.com/aretw0/lattice/pkg/observability"
	"github.com/aretw0/lattice/pkg/persistence/middleware"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/session"
)

// LLM is the set of text services one provider client offers.
type LLM interface {
	ports.Classifier
	ports.FeedbackGenerator
	ports.Translator
	ports.Grader
}

// Backend is an engine together with the resources it owns.
type Backend struct {
	Engine   *lattice.Engine
	Metrics  *observability.Metrics
	Registry *prometheus.Registry

	closers []io.Closer
}

// Close releases store connections.
func (b *Backend) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// BuildOption adjusts how a Backend is assembled.
type BuildOption func(*buildOptions)

type buildOptions struct {
	llm     LLM
	metrics bool
	extra   []lattice.Option
}

// WithLLM replaces the OpenAI client, mainly for tests.
func WithLLM(llm LLM) BuildOption {
	return func(o *buildOptions) { o.llm = llm }
}

// WithMetrics registers the Prometheus collectors.
func WithMetrics() BuildOption {
	return func(o *buildOptions) { o.metrics = true }
}

// WithEngineOptions appends facade options.
func WithEngineOptions(opts ...lattice.Option) BuildOption {
	return func(o *buildOptions) { o.extra = append(o.extra, opts...) }
}

// Build assembles the engine described by cfg. Events go to broadcaster.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, broadcaster ports.Broadcaster, opts ...BuildOption) (*Backend, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	b := &Backend{}

	engineOpts := []lattice.Option{
		lattice.WithLogger(logger),
		lattice.WithBroadcaster(broadcaster),
	}

	// 1. Storage
	storeOpts, err := b.stores(ctx, cfg)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	engineOpts = append(engineOpts, storeOpts...)
	if cfg.StateKey != "" {
		mw, err := encryption(cfg)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		engineOpts = append(engineOpts, lattice.WithStateMiddleware(mw))
	}

	// 2. Text services
	llm := o.llm
	if llm == nil {
		client, err := newOpenAI(cfg, logger)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		llm = client
	}
	engineOpts = append(engineOpts,
		lattice.WithClassifier(llm),
		lattice.WithFeedback(llm),
		lattice.WithTranslator(llm),
		lattice.WithGrader(llm),
	)

	// 3. Hooks
	hooks := observability.LogHooks(logger)
	if o.metrics {
		b.Registry = prometheus.NewRegistry()
		b.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		b.Metrics, err = observability.NewMetrics(b.Registry)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		hooks = observability.Combine(hooks, b.Metrics.Hooks())
	}
	engineOpts = append(engineOpts, lattice.WithLifecycleHooks(hooks))

	// 4. Initialize
	engineOpts = append(engineOpts, o.extra...)
	b.Engine, err = lattice.New(cfg.ActivityRoot, engineOpts...)
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return b, nil
}

func (b *Backend) stores(ctx context.Context, cfg *config.Config) ([]lattice.Option, error) {
	switch cfg.Store {
	case config.StoreFile:
		return []lattice.Option{
			lattice.WithStateStore(file.NewStore(cfg.StatePath)),
			lattice.WithMessageStore(memory.NewMessages()),
		}, nil

	case config.StoreRedis:
		states := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, redis.WithTTL(cfg.StateTTL))
		b.closers = append(b.closers, states)
		if err := states.Client().Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return []lattice.Option{
			lattice.WithStateStore(states),
			lattice.WithMessageStore(redis.NewMessages(states.Client(), "")),
			lattice.WithLocker(redis.NewLocker(states.Client(), "lattice:"), session.DefaultLockTTL),
		}, nil

	case config.StoreSQL:
		store, err := sql.Open(ctx, cfg.SQLDriver, cfg.SQLDSN)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, store)
		return []lattice.Option{
			lattice.WithStateStore(store),
			lattice.WithMessageStore(store),
		}, nil

	default:
		return []lattice.Option{
			lattice.WithStateStore(memory.NewStore()),
			lattice.WithMessageStore(memory.NewMessages()),
		}, nil
	}
}

func encryption(cfg *config.Config) (middleware.Middleware, error) {
	active, err := middleware.DecodeKey(cfg.StateKey)
	if err != nil {
		return nil, fmt.Errorf("LATTICE_STATE_KEY: %w", err)
	}
	conf := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range cfg.StateFallbackKeys {
		key, err := middleware.DecodeKey(k)
		if err != nil {
			return nil, fmt.Errorf("LATTICE_STATE_FALLBACK_KEYS[%d]: %w", i, err)
		}
		conf.FallbackKeys = append(conf.FallbackKeys, key)
	}
	return middleware.NewEncryptionMiddleware(conf)
}

func newOpenAI(cfg *config.Config, logger *slog.Logger) (*openai.Client, error) {
	if cfg.OpenAIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required to classify responses")
	}
	opts := []openai.Option{
		openai.WithAPIKey(cfg.OpenAIKey),
		openai.WithModels(cfg.Models),
		openai.WithDefaultModel(cfg.DefaultModel),
		openai.WithTimeout(cfg.RequestTimeout),
		openai.WithRateLimit(cfg.RateLimit, 1),
		openai.WithLogger(logger),
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	return openai.NewClient(opts...)
}

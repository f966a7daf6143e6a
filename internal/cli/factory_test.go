package cli

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/internal/config"
	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

const greeting = `
sections:
  - section_id: intro
    title: Intro
    steps:
      - step_id: hello
        title: Hello
        content_blocks:
          - "Hello, {{username}}."
`

type fakeLLM struct{}

func (fakeLLM) Classify(context.Context, ports.ClassifyRequest) (string, error) { return "ok", nil }
func (fakeLLM) Feedback(context.Context, ports.FeedbackRequest) (string, error) { return "", nil }
func (fakeLLM) Translate(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}
func (fakeLLM) Grade(context.Context, ports.GradeRequest) (string, error) { return "", nil }

func testConfig(t *testing.T, store string) *config.Config {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.yaml"), []byte(greeting), 0o644))
	return &config.Config{
		ActivityRoot: root,
		Store:        store,
		StatePath:    filepath.Join(t.TempDir(), "state"),
		SQLDriver:    "sqlite",
		SQLDSN:       filepath.Join(t.TempDir(), "lattice.db"),
		MaxInputSize: 4096,
	}
}

func TestBuild_Stores(t *testing.T) {
	mr := miniredis.RunT(t)

	for _, store := range []string{config.StoreMemory, config.StoreFile, config.StoreSQL, config.StoreRedis} {
		t.Run(store, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig(t, store)
			cfg.RedisAddr = mr.Addr()

			rec := memory.NewRecorder()
			b, err := Build(ctx, cfg, logging.NewNop(), rec, WithLLM(fakeLLM{}))
			require.NoError(t, err)
			defer func() { assert.NoError(t, b.Close()) }()

			require.NoError(t, b.Engine.Start(ctx, "r1", "hello.yaml", "ana"))

			var lines []string
			for _, ev := range rec.DrainRoom("r1") {
				if p, ok := ev.Payload.(domain.ChatPayload); ok {
					lines = append(lines, p.Content)
				}
			}
			assert.Contains(t, lines, "Hello, ana.")

			history, err := b.Engine.History(ctx, "r1")
			require.NoError(t, err)
			assert.NotEmpty(t, history)
		})
	}
}

func TestBuild_RequiresAPIKey(t *testing.T) {
	cfg := testConfig(t, config.StoreMemory)

	_, err := Build(context.Background(), cfg, logging.NewNop(), memory.NewRecorder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestBuild_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, config.StoreRedis)
	cfg.RedisAddr = mr.Addr()
	mr.Close()

	_, err := Build(context.Background(), cfg, logging.NewNop(), memory.NewRecorder(), WithLLM(fakeLLM{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect redis")
}

func TestBuild_Metrics(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.StoreMemory)

	b, err := Build(ctx, cfg, logging.NewNop(), memory.NewRecorder(), WithLLM(fakeLLM{}), WithMetrics())
	require.NoError(t, err)
	defer b.Close()

	require.NotNil(t, b.Registry)
	require.NoError(t, b.Engine.Start(ctx, "r1", "hello.yaml", "ana"))

	families, err := b.Registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "go_goroutines")
	assert.NotEmpty(t, names)
}

func TestBuild_APIKeyConfigured(t *testing.T) {
	cfg := testConfig(t, config.StoreMemory)
	cfg.OpenAIKey = "sk-test"
	cfg.OpenAIBaseURL = "http://127.0.0.1:1/v1"
	cfg.DefaultModel = "gpt-4o-mini"

	b, err := Build(context.Background(), cfg, logging.NewNop(), memory.NewRecorder())
	require.NoError(t, err)
	assert.NoError(t, b.Close())
}

func TestBuild_EncryptedState(t *testing.T) {
	cfg := testConfig(t, config.StoreFile)
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	cfg.StateKey = base64.StdEncoding.EncodeToString(key)

	b, err := Build(context.Background(), cfg, logging.NewNop(), memory.NewRecorder(), WithLLM(fakeLLM{}))
	require.NoError(t, err)
	defer b.Close()

	cfg.StateKey = "not-a-key"
	_, err = Build(context.Background(), cfg, logging.NewNop(), memory.NewRecorder(), WithLLM(fakeLLM{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LATTICE_STATE_KEY")
}

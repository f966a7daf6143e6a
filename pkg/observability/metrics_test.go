package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/observability"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	h := m.Hooks()
	ctx := context.Background()

	h.OnActivityStart(ctx, &domain.ActivityEvent{Activity: "a.yaml"})
	h.OnStepEnter(ctx, &domain.StepEvent{SectionID: "s", StepID: "q"})
	h.OnStepEnter(ctx, &domain.StepEvent{SectionID: "s", StepID: "q"})
	h.OnClassified(ctx, &domain.ClassificationEvent{StepID: "q", Category: "correct", Matched: true, Model: "MODEL_0", Duration: 20 * time.Millisecond})
	h.OnTransition(ctx, &domain.TransitionEvent{Bucket: "storm", Random: true})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActivitiesStarted.WithLabelValues("a.yaml")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveRuns))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StepVisits.WithLabelValues("s", "q")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Classifications.WithLabelValues("q", "correct", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("storm", "true", "false")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ClassifyDuration))

	h.OnActivityEnd(ctx, &domain.ActivityEvent{Activity: "a.yaml", Reason: "completed"})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveRuns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActivitiesEnded.WithLabelValues("a.yaml", "completed")))
}

func TestNewMetrics_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	_, err = observability.NewMetrics(reg)
	assert.Error(t, err)
}

func TestCombine(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	calls := 0
	counting := domain.LifecycleHooks{
		OnStepEnter: func(context.Context, *domain.StepEvent) { calls++ },
	}
	h := observability.Combine(counting, observability.LogHooks(logger), domain.LifecycleHooks{})

	h.OnStepEnter(context.Background(), &domain.StepEvent{Room: "r", SectionID: "s", StepID: "q"})
	h.OnTransition(context.Background(), &domain.TransitionEvent{Bucket: "b"})

	assert.Equal(t, 1, calls)
	assert.Contains(t, buf.String(), "step_enter")
	assert.Contains(t, buf.String(), "step_id=q")
	assert.Contains(t, buf.String(), "bucket=b")
}

package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/lattice/pkg/domain"
)

// Metrics holds the engine collectors.
type Metrics struct {
	ActivitiesStarted *prometheus.CounterVec
	ActivitiesEnded   *prometheus.CounterVec
	ActiveRuns        prometheus.Gauge
	StepVisits        *prometheus.CounterVec
	Classifications   *prometheus.CounterVec
	ClassifyDuration  *prometheus.HistogramVec
	Transitions       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ActivitiesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lattice_activities_started_total",
			Help: "Activity runs started",
		}, []string{"activity"}),
		ActivitiesEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lattice_activities_ended_total",
			Help: "Activity runs ended, by reason",
		}, []string{"activity", "reason"}),
		ActiveRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lattice_active_runs",
			Help: "Runs started and not yet ended by this process",
		}),
		StepVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lattice_step_visits_total",
			Help: "Times a room was positioned on a step",
		}, []string{"section_id", "step_id"}),
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lattice_classifications_total",
			Help: "Classifier results by category and whether a transition matched",
		}, []string{"step_id", "category", "matched"}),
		ClassifyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lattice_classify_duration_seconds",
			Help:    "Classifier latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"model"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lattice_transitions_total",
			Help: "Bucket transitions processed or skipped",
		}, []string{"bucket", "random", "skipped"}),
	}
	for _, c := range []prometheus.Collector{
		m.ActivitiesStarted, m.ActivitiesEnded, m.ActiveRuns, m.StepVisits,
		m.Classifications, m.ClassifyDuration, m.Transitions,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks records every lifecycle event.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnActivityStart: func(_ context.Context, e *domain.ActivityEvent) {
			m.ActivitiesStarted.WithLabelValues(e.Activity).Inc()
			m.ActiveRuns.Inc()
		},
		OnActivityEnd: func(_ context.Context, e *domain.ActivityEvent) {
			m.ActivitiesEnded.WithLabelValues(e.Activity, e.Reason).Inc()
			m.ActiveRuns.Dec()
		},
		OnStepEnter: func(_ context.Context, e *domain.StepEvent) {
			m.StepVisits.WithLabelValues(e.SectionID, e.StepID).Inc()
		},
		OnClassified: func(_ context.Context, e *domain.ClassificationEvent) {
			m.Classifications.WithLabelValues(e.StepID, e.Category, boolLabel(e.Matched)).Inc()
			m.ClassifyDuration.WithLabelValues(e.Model).Observe(e.Duration.Seconds())
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(e.Bucket, boolLabel(e.Random), boolLabel(e.Skipped)).Inc()
		},
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

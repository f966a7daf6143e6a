package domain

import (
	"context"
	"time"
)

// StepEvent is raised when the engine positions a room on a step.
type StepEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Room      string    `json:"room"`
	Activity  string    `json:"activity"`
	SectionID string    `json:"section_id"`
	StepID    string    `json:"step_id"`
}

// ClassificationEvent is raised after the classifier returns.
type ClassificationEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	Room      string        `json:"room"`
	StepID    string        `json:"step_id"`
	Model     string        `json:"model"`
	Category  string        `json:"category"`
	Matched   bool          `json:"matched"`
	Duration  time.Duration `json:"duration"`
}

// TransitionEvent is raised for every bucket whose transition was processed or skipped.
type TransitionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Room      string    `json:"room"`
	StepID    string    `json:"step_id"`
	Bucket    string    `json:"bucket"`
	Random    bool      `json:"random"`
	Skipped   bool      `json:"skipped"`
}

// ActivityEvent marks the start or end of a run.
type ActivityEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Room      string    `json:"room"`
	Activity  string    `json:"activity"`
	Reason    string    `json:"reason,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnActivityStart func(context.Context, *ActivityEvent)
	OnActivityEnd   func(context.Context, *ActivityEvent)
	OnStepEnter     func(context.Context, *StepEvent)
	OnClassified    func(context.Context, *ClassificationEvent)
	OnTransition    func(context.Context, *TransitionEvent)
}

package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/lattice/pkg/domain"
)

// LogHooks writes one debug line per lifecycle event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnActivityStart: func(ctx context.Context, e *domain.ActivityEvent) {
			logger.DebugContext(ctx, "activity_start", "room", e.Room, "activity", e.Activity)
		},
		OnActivityEnd: func(ctx context.Context, e *domain.ActivityEvent) {
			logger.DebugContext(ctx, "activity_end", "room", e.Room, "activity", e.Activity, "reason", e.Reason)
		},
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step_enter", "room", e.Room, "section_id", e.SectionID, "step_id", e.StepID)
		},
		OnClassified: func(ctx context.Context, e *domain.ClassificationEvent) {
			logger.DebugContext(ctx, "classified",
				"room", e.Room,
				"step_id", e.StepID,
				"category", e.Category,
				"matched", e.Matched,
				"duration", e.Duration,
			)
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.DebugContext(ctx, "transition",
				"room", e.Room,
				"bucket", e.Bucket,
				"random", e.Random,
				"skipped", e.Skipped,
			)
		},
	}
}

// Combine fans every event out to each set of hooks in order.
func Combine(all ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnActivityStart: func(ctx context.Context, e *domain.ActivityEvent) {
			for _, h := range all {
				if h.OnActivityStart != nil {
					h.OnActivityStart(ctx, e)
				}
			}
		},
		OnActivityEnd: func(ctx context.Context, e *domain.ActivityEvent) {
			for _, h := range all {
				if h.OnActivityEnd != nil {
					h.OnActivityEnd(ctx, e)
				}
			}
		},
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			for _, h := range all {
				if h.OnStepEnter != nil {
					h.OnStepEnter(ctx, e)
				}
			}
		},
		OnClassified: func(ctx context.Context, e *domain.ClassificationEvent) {
			for _, h := range all {
				if h.OnClassified != nil {
					h.OnClassified(ctx, e)
				}
			}
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			for _, h := range all {
				if h.OnTransition != nil {
					h.OnTransition(ctx, e)
				}
			}
		},
	}
}

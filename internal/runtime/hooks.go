package runtime

import (
	"context"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
)

func (e *Engine) emitActivityStart(ctx context.Context, state *domain.ActivityState) {
	if e.hooks.OnActivityStart != nil {
		e.hooks.OnActivityStart(ctx, &domain.ActivityEvent{
			Timestamp: e.now(),
			Room:      state.Room,
			Activity:  state.ActivityPath,
		})
	}
}

func (e *Engine) emitActivityEnd(ctx context.Context, state *domain.ActivityState, reason string) {
	if e.hooks.OnActivityEnd != nil {
		e.hooks.OnActivityEnd(ctx, &domain.ActivityEvent{
			Timestamp: e.now(),
			Room:      state.Room,
			Activity:  state.ActivityPath,
			Reason:    reason,
		})
	}
}

func (e *Engine) emitStepEnter(ctx context.Context, state *domain.ActivityState, sec *domain.Section, step *domain.Step) {
	if e.hooks.OnStepEnter != nil {
		e.hooks.OnStepEnter(ctx, &domain.StepEvent{
			Timestamp: e.now(),
			Room:      state.Room,
			Activity:  state.ActivityPath,
			SectionID: sec.ID,
			StepID:    step.ID,
		})
	}
}

func (e *Engine) emitClassified(ctx context.Context, t *turn, category string, matched bool, took time.Duration) {
	if e.hooks.OnClassified != nil {
		e.hooks.OnClassified(ctx, &domain.ClassificationEvent{
			Timestamp: e.now(),
			Room:      t.state.Room,
			StepID:    t.state.StepID,
			Model:     t.classifierModel,
			Category:  category,
			Matched:   matched,
			Duration:  took,
		})
	}
}

func (e *Engine) emitTransition(ctx context.Context, t *turn, bucket string, random, skipped bool) {
	if e.hooks.OnTransition != nil {
		e.hooks.OnTransition(ctx, &domain.TransitionEvent{
			Timestamp: e.now(),
			Room:      t.state.Room,
			StepID:    t.state.StepID,
			Bucket:    bucket,
			Random:    random,
			Skipped:   skipped,
		})
	}
}

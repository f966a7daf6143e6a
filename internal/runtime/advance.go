package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/logic"
	"github.com/aretw0/lattice/pkg/ports"
)

// advance walks from the current step: content-only steps are shown and
// passed, a question step is shown and waits, and running off the end
// completes the run.
func (e *Engine) advance(ctx context.Context, t *turn) error {
	state := t.state
	for {
		sec, step, err := t.def.Locate(state.SectionID, state.StepID)
		if err != nil {
			return err
		}
		e.emitStepEnter(ctx, state, sec, step)

		lang := state.Language()
		if blocks := logic.FilterContentBlocks(step.ContentBlocks, state.Metadata, t.templateContext()); len(blocks) > 0 {
			text := e.translate(ctx, strings.Join(blocks, "\n\n"), lang, t.feedbackModel)
			e.post(ctx, state.Room, domain.SenderSystem, domain.SenderSystem, text)
		}

		if step.HasQuestion() {
			e.postQuestion(ctx, t, step)
			return nil
		}

		nextSec, next, ok := t.def.Next(sec.ID, step.ID)
		if !ok {
			return e.complete(ctx, t)
		}
		state.MoveTo(nextSec.ID, next.ID)
		if err := e.save(ctx, state); err != nil {
			return err
		}
	}
}

// complete grades the run, deletes its state and tells the room.
func (e *Engine) complete(ctx context.Context, t *turn) error {
	state := t.state
	e.info(ctx, t.def, state, t.feedbackModel)

	if err := e.deps.States.Delete(ctx, state.Room); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	t.ended = true
	e.logger.Info("activity completed", "room", state.Room, "activity", state.ActivityPath)

	e.notice(ctx, state.Room, "Activity completed!")
	e.emit(ctx, state.Room, domain.EventActivityStatus, domain.StatusPayload{Active: false})
	e.emitActivityEnd(ctx, state, "completed")
	return nil
}

// info posts the activity summary with a grading of the room history.
func (e *Engine) info(ctx context.Context, def *domain.ActivityDefinition, state *domain.ActivityState, model string) {
	grading := e.grade(ctx, def, state.Room, model)
	text := fmt.Sprintf("Activity Info:\nCurrent Section: %s\nCurrent Step: %s\nAttempts: %d\n\n%s",
		state.SectionID, state.StepID, state.Attempts, grading)
	e.post(ctx, state.Room, domain.SenderSystem, domain.SenderSystem, text)
}

func (e *Engine) grade(ctx context.Context, def *domain.ActivityDefinition, room, model string) string {
	if e.deps.Grader == nil {
		return ""
	}
	history, err := e.deps.Messages.History(ctx, room)
	if err != nil {
		return "Error generating grading: " + err.Error()
	}
	kept := make([]domain.Message, 0, len(history))
	for _, m := range history {
		if !m.IsInlineImage() {
			kept = append(kept, m)
		}
	}
	out, err := e.deps.Grader.Grade(ctx, ports.GradeRequest{History: kept, Rubric: def.Rubric, Model: model})
	if err != nil {
		e.logger.Warn("grading failed", "room", room, "error", err)
		return "Error generating grading: " + err.Error()
	}
	return out
}

// postQuestion renders, translates and posts the question of step. It is
// stored under the question sender and broadcast as System.
func (e *Engine) postQuestion(ctx context.Context, t *turn, step *domain.Step) {
	text := logic.Render(step.Question, t.templateContext())
	text = e.translate(ctx, text, t.state.Language(), t.feedbackModel)
	e.post(ctx, t.state.Room, domain.SenderQuestion, domain.SenderSystem, text)
}

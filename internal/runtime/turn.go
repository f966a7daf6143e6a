package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/logic"
	"github.com/aretw0/lattice/pkg/mutation"
	"github.com/aretw0/lattice/pkg/ports"
)

const scriptResultKey = "processing_script_result"

// turn carries the working set of one command for one room.
type turn struct {
	def      *domain.ActivityDefinition
	state    *domain.ActivityState
	username string
	response string

	classifierModel string
	feedbackModel   string

	tmpKeys []string
	// ended is set once the state has been deleted.
	ended bool
}

func (e *Engine) newTurn(def *domain.ActivityDefinition, state *domain.ActivityState, username, response string) *turn {
	classifier, feedback := def.Models()
	if state.ClassifierModel != "" {
		classifier = state.ClassifierModel
	}
	if state.FeedbackModel != "" {
		feedback = state.FeedbackModel
	}
	return &turn{
		def:             def,
		state:           state,
		username:        username,
		response:        response,
		classifierModel: classifier,
		feedbackModel:   feedback,
	}
}

func (t *turn) templateContext() logic.TemplateContext {
	s := t.state
	return logic.NewTemplateContext(s.Metadata, s.Attempts, s.MaxAttempts, s.SectionID, s.StepID, t.username)
}

func (t *turn) trackTmp(keys []string) {
	for _, k := range keys {
		dup := false
		for _, have := range t.tmpKeys {
			if have == k {
				dup = true
				break
			}
		}
		if !dup {
			t.tmpKeys = append(t.tmpKeys, k)
		}
	}
}

// Respond processes one user message for the run in room. A failing turn is
// reported to the room and returned; state committed before the failure stays.
func (e *Engine) Respond(ctx context.Context, room, username, text string) error {
	state, err := e.deps.States.Load(ctx, room)
	if err != nil {
		return err
	}
	def, err := e.deps.Loader.Load(ctx, state.ActivityPath)
	if err != nil {
		return fmt.Errorf("load activity: %w", err)
	}

	t := e.newTurn(def, state, username, text)
	defer e.purgeTmp(ctx, t)

	if err := e.respond(ctx, t); err != nil {
		e.logger.Error("turn failed", "room", room, "section_id", state.SectionID, "step_id", state.StepID, "error", err)
		e.notice(ctx, room, "Error processing activity response: "+err.Error())
		return err
	}
	return nil
}

type processedBucket struct {
	name       string
	transition *domain.Transition
}

func (e *Engine) respond(ctx context.Context, t *turn) error {
	state := t.state
	_, step, err := t.def.Locate(state.SectionID, state.StepID)
	if err != nil {
		return err
	}
	if step.ClassifierModel != "" {
		t.classifierModel = step.ClassifierModel
	}
	if step.FeedbackModel != "" {
		t.feedbackModel = step.FeedbackModel
	}

	if !step.HasQuestion() {
		return e.advance(ctx, t)
	}

	if step.PreScript != "" {
		if err := e.runPreScript(ctx, t, step.PreScript); err != nil {
			return err
		}
	}

	triggered := e.rollRandomBuckets(ctx, t, step)

	category, took := e.classify(ctx, t, step)
	e.notice(ctx, state.Room, "Category: "+category)

	var resolved []processedBucket
	for _, name := range ActiveBuckets(category, triggered) {
		if _, tr, ok := ResolveTransition(step, name); ok {
			resolved = append(resolved, processedBucket{name: name, transition: tr})
		} else {
			e.logger.Debug("bucket has no transition", "room", state.Room, "step_id", step.ID, "bucket", name)
		}
	}
	e.emitClassified(ctx, t, category, len(resolved) > 0, took)
	if len(resolved) == 0 {
		e.notice(ctx, state.Room, fmt.Sprintf("Error: Unrecognized category '%s'. Please try again.", category))
		return nil
	}

	var (
		targets   []string
		processed []*domain.Transition
	)
	for i, b := range resolved {
		if i > 0 {
			bar := strings.Repeat("=", 60)
			e.notice(ctx, state.Room, fmt.Sprintf("\n%s\nProcessing transition for bucket: '%s'\n%s", bar, b.name, bar))
		}
		random := i > 0 || b.name != category
		tr := b.transition
		if len(tr.Conditions) > 0 && !logic.CheckAll(state.Metadata, tr.Conditions) {
			e.notice(ctx, state.Room, fmt.Sprintf("Skipping '%s' - metadata conditions not met", b.name))
			e.emitTransition(ctx, t, b.name, random, true)
			continue
		}

		scriptTarget, err := e.processBucket(ctx, t, step, b)
		if err != nil {
			return err
		}
		targets = append(targets, scriptTarget, logic.ResolveNavigation(tr.Next, state.Metadata))
		processed = append(processed, tr)
		e.emitTransition(ctx, t, b.name, random, false)
	}

	navigation := FinalNavigation(targets)
	if ShouldAdvance(category, state.Attempts, state.MaxAttempts, navigation) {
		return e.moveOn(ctx, t, navigation)
	}

	if CountsAsAttempt(processed) {
		state.Attempts++
	}
	e.showHint(ctx, t, step)
	if err := e.save(ctx, state); err != nil {
		return err
	}
	e.postQuestion(ctx, t, step)
	return nil
}

func (e *Engine) runPreScript(ctx context.Context, t *turn, source string) error {
	md := t.state.Metadata.Clone()
	md[userResponseKey] = t.response
	out, err := e.deps.Scripts.Run(ctx, source, md)
	if err != nil {
		return fmt.Errorf("pre_script: %w", err)
	}
	if patch, ok := out.Result["metadata"].(map[string]any); ok {
		for k, v := range patch {
			t.state.Metadata[k] = v
		}
	}
	return nil
}

func (e *Engine) rollRandomBuckets(ctx context.Context, t *turn, step *domain.Step) []string {
	var triggered []string
	for _, rb := range step.RandomBuckets {
		if e.rng.Float64() < rb.Probability {
			triggered = append(triggered, rb.Name)
			e.notice(ctx, t.state.Room, fmt.Sprintf("🎲 [RANDOM EVENT] '%s' triggered!", rb.Name))
		}
	}
	return triggered
}

// classify never fails: collaborator errors become an "Error: ..." label that
// matches no transition.
func (e *Engine) classify(ctx context.Context, t *turn, step *domain.Step) (string, time.Duration) {
	start := time.Now()
	category, err := e.deps.Classifier.Classify(ctx, classifyRequest(t, step))
	if err != nil {
		e.logger.Warn("classification failed", "room", t.state.Room, "step_id", step.ID, "error", err)
		category = "Error: " + err.Error()
	}
	took := time.Since(start)
	e.logger.Debug("classified", "room", t.state.Room, "step_id", step.ID, "category", category, "duration", took)
	return category, took
}

// processBucket applies one transition and emits its content and feedback.
// It returns the navigation target set by the post script, if any.
func (e *Engine) processBucket(ctx context.Context, t *turn, step *domain.Step, b processedBucket) (string, error) {
	state := t.state
	tr := b.transition
	scriptTarget := ""

	env := mutation.Env{UserResponse: t.response, Rand: e.rng}
	if src := step.Script(); src != "" && tr.RunsScript() {
		env.BeforeClear = func(md domain.Metadata, res *mutation.Result) error {
			target, err := e.runPostScript(ctx, t, src, md, res)
			scriptTarget = target
			return err
		}
	}

	res, err := mutation.Apply(state.Metadata, &tr.Directives, env)
	t.trackTmp(res.TmpKeys)
	if err != nil {
		return "", fmt.Errorf("bucket '%s': %w", b.name, err)
	}
	if err := e.save(ctx, state); err != nil {
		return "", err
	}

	lang := state.Language()
	if blocks := logic.FilterContentBlocks(tr.ContentBlocks, state.Metadata, t.templateContext()); len(blocks) > 0 {
		text := e.translate(ctx, strings.Join(blocks, "\n\n"), lang, t.feedbackModel)
		e.post(ctx, state.Room, domain.SenderSystem, domain.SenderSystem, text)
	}

	messages := e.generateFeedback(ctx, FeedbackInput{
		Bucket:     b.name,
		Step:       step,
		Transition: tr,
		Response:   t.response,
		Username:   t.username,
		Language:   lang,
		Metadata:   state.Metadata,
		Changed:    res.Changed,
		Model:      t.feedbackModel,
	})
	for _, m := range messages {
		e.post(ctx, state.Room, m.sender, m.sender, m.content)
	}
	if len(messages) > 0 && len(res.Deferred) > 0 {
		mutation.ResolveDeferred(state.Metadata, res.Deferred, messages[len(messages)-1].content)
		if err := e.save(ctx, state); err != nil {
			return "", err
		}
	}
	return scriptTarget, nil
}

// runPostScript runs the step script against the live metadata. In-place
// changes made by the script are kept, then script_result is folded in.
func (e *Engine) runPostScript(ctx context.Context, t *turn, source string, md domain.Metadata, res *mutation.Result) (string, error) {
	out, err := e.deps.Scripts.Run(ctx, source, md)
	if err != nil {
		return "", fmt.Errorf("post_script: %w", err)
	}
	clear(md)
	for k, v := range out.Metadata {
		md[k] = v
	}

	result := out.Result
	if result == nil {
		result = map[string]any{}
	}
	plot, _ := result["plot_image"].(string)
	delete(result, "plot_image")

	md[scriptResultKey] = result
	res.TrackTmp(scriptResultKey)

	if patch, ok := result["metadata"].(map[string]any); ok {
		for k, v := range patch {
			md[k] = v
		}
	}
	target, _ := result["next_section_and_step"].(string)

	if plot != "" {
		if flag, _ := result["set_background"].(bool); flag {
			e.emit(ctx, t.state.Room, domain.EventSetBackground, domain.BackgroundPayload{ImageData: plot})
		} else {
			html := fmt.Sprintf(`<img alt="Plot Image" src="data:image/png;base64,%s">`, plot)
			e.post(ctx, t.state.Room, t.username, t.username, html)
		}
	}
	return target, nil
}

// moveOn leaves the current step for navigation, or the structurally next step.
func (e *Engine) moveOn(ctx context.Context, t *turn, navigation string) error {
	state := t.state
	if navigation != "" {
		sectionID, stepID, err := domain.ParseTarget(navigation)
		if err != nil {
			return err
		}
		if _, _, err := t.def.Locate(sectionID, stepID); err != nil {
			return err
		}
		state.MoveTo(sectionID, stepID)
	} else {
		sec, next, ok := t.def.Next(state.SectionID, state.StepID)
		if !ok {
			return e.complete(ctx, t)
		}
		state.MoveTo(sec.ID, next.ID)
	}
	if err := e.save(ctx, state); err != nil {
		return err
	}
	return e.advance(ctx, t)
}

func (e *Engine) showHint(ctx context.Context, t *turn, step *domain.Step) {
	hint, ok := logic.ProgressiveHint(step.Hints, t.state.Attempts, t.templateContext())
	if !ok {
		return
	}
	text := e.translate(ctx, hint.Text, t.state.Language(), t.feedbackModel)
	e.post(ctx, t.state.Room, domain.SenderHint, domain.SenderHint, text)
	if hint.CountsAsAttempt {
		t.state.Attempts++
	}
}

// purgeTmp drops the turn's temporary keys from the stored state. A state
// deleted during the turn is left alone.
func (e *Engine) purgeTmp(ctx context.Context, t *turn) {
	if len(t.tmpKeys) == 0 || t.ended {
		return
	}
	stored, err := e.deps.States.Load(ctx, t.state.Room)
	if err != nil {
		if !errors.Is(err, domain.ErrStateNotFound) {
			e.logger.Warn("tmp purge skipped", "room", t.state.Room, "error", err)
		}
		return
	}
	mutation.Purge(stored.Metadata, t.tmpKeys)
	mutation.Purge(t.state.Metadata, t.tmpKeys)
	if err := e.save(ctx, stored); err != nil {
		e.logger.Warn("tmp purge failed", "room", t.state.Room, "error", err)
	}
}

func classifyRequest(t *turn, step *domain.Step) ports.ClassifyRequest {
	return ports.ClassifyRequest{
		Question:     step.Question,
		Response:     t.response,
		Buckets:      step.Buckets.Strings(),
		Instructions: step.TokensForAI,
		Model:        t.classifierModel,
	}
}

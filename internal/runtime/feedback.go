package runtime

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

const userResponseKey = "user_response"

// FeedbackInput is everything feedback generation needs from one processed bucket.
type FeedbackInput struct {
	Bucket     string
	Step       *domain.Step
	Transition *domain.Transition
	Response   string
	Username   string
	Language   string
	Metadata   domain.Metadata
	Changed    domain.Metadata
	Model      string
}

// FeedbackCall is one request to the feedback generator and the sender name
// its reply is posted under.
type FeedbackCall struct {
	Name    string
	Request ports.FeedbackRequest
}

// Sender renders the chat username of a feedback message.
func (c FeedbackCall) Sender() string {
	// Casers carry state and are not shared.
	return "System (" + cases.Title(language.Und).String(c.Name) + ")"
}

// PlanFeedback builds the feedback requests for a bucket. Steps with feedback
// prompts produce one call per prompt that is not skipped; otherwise a single
// call is made when the step has feedback instructions and the transition
// asks for ai_feedback.
func PlanFeedback(in FeedbackInput) []FeedbackCall {
	langClause := fmt.Sprintf(" You must provide the feedback in the user's language: %s.", in.Language)
	base := ports.FeedbackRequest{
		Category: in.Bucket,
		Question: in.Step.Question,
		Response: in.Response,
		Username: in.Username,
		Changed:  in.Changed,
		Model:    in.Model,
	}

	if len(in.Step.FeedbackPrompts) == 0 {
		if in.Step.FeedbackTokensForAI == "" || in.Transition.AIFeedback == nil {
			return nil
		}
		req := base
		req.Instructions = in.Step.FeedbackTokensForAI + langClause + " " + in.Transition.AIFeedback.TokensForAI + "."
		req.Metadata = in.Transition.FeedbackFilter.Apply(in.Metadata)
		return []FeedbackCall{{Name: "Feedback", Request: req}}
	}

	full := in.Metadata.Clone()
	full[userResponseKey] = in.Response

	calls := make([]FeedbackCall, 0, len(in.Step.FeedbackPrompts))
	for _, p := range in.Step.FeedbackPrompts {
		visible := p.MetadataFilter.Apply(full)
		if p.MetadataFilter != nil && SkipFeedback(p.SkipCondition, visible) {
			continue
		}
		instructions := p.TokensForAI
		if in.Step.FeedbackTokensForAI != "" {
			instructions = in.Step.FeedbackTokensForAI + " " + instructions
		}
		instructions += langClause
		if in.Transition.AIFeedback != nil {
			instructions += " " + in.Transition.AIFeedback.TokensForAI
		}

		req := base
		req.Instructions = instructions
		req.Metadata = visible
		if p.MetadataFilter != nil && !p.MetadataFilter.Has(userResponseKey) {
			req.Response = ""
		}
		name := p.Name
		if name == "" {
			name = "unnamed"
		}
		calls = append(calls, FeedbackCall{Name: name, Request: req})
	}
	return calls
}

// SkipFeedback evaluates a prompt's skip_condition over its visible values.
// An empty value set satisfies every condition.
func SkipFeedback(condition string, visible domain.Metadata) bool {
	var match func(any) bool
	switch condition {
	case domain.SkipAllNull:
		match = func(v any) bool { return v == nil || v == "" || v == "None" }
	case domain.SkipAllFalse:
		match = func(v any) bool { return v == false || v == "False" }
	case domain.SkipAllTrue:
		match = func(v any) bool { return v == true || v == "True" }
	default:
		return false
	}
	for _, v := range visible {
		if !match(v) {
			return false
		}
	}
	return true
}

type feedbackMessage struct {
	sender  string
	content string
}

// generateFeedback runs the planned calls. Generator failures become inline
// "Error: ..." messages; blank replies are dropped.
func (e *Engine) generateFeedback(ctx context.Context, in FeedbackInput) []feedbackMessage {
	if e.deps.Feedback == nil {
		return nil
	}
	var out []feedbackMessage
	for _, call := range PlanFeedback(in) {
		text, err := e.deps.Feedback.Feedback(ctx, call.Request)
		if err != nil {
			e.logger.Warn("feedback failed", "bucket", in.Bucket, "prompt", call.Name, "error", err)
			text = "Error: " + err.Error()
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		out = append(out, feedbackMessage{sender: call.Sender(), content: text})
	}
	return out
}

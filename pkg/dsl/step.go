package dsl

import "github.com/aretw0/lattice/pkg/domain"

// StepBuilder provides a fluent API for configuring a step.
type StepBuilder struct {
	step        domain.Step
	transitions []*TransitionBuilder
}

// Text appends unconditional content blocks.
func (s *StepBuilder) Text(blocks ...string) *StepBuilder {
	s.step.ContentBlocks = append(s.step.ContentBlocks, domain.TextBlocks(blocks...)...)
	return s
}

// TextIf appends a content block shown only when the metadata matches cond.
func (s *StepBuilder) TextIf(text string, cond map[string]any) *StepBuilder {
	s.step.ContentBlocks = append(s.step.ContentBlocks, domain.ContentBlock{Text: text, ShowIf: cond})
	return s
}

// Question makes the step wait for a response.
func (s *StepBuilder) Question(text string) *StepBuilder {
	s.step.Question = text
	return s
}

// Classify sets the classifier instructions.
func (s *StepBuilder) Classify(tokens string) *StepBuilder {
	s.step.TokensForAI = tokens
	return s
}

// Feedback sets the step's default feedback instructions.
func (s *StepBuilder) Feedback(tokens string) *StepBuilder {
	s.step.FeedbackTokensForAI = tokens
	return s
}

// Hint adds help shown once the participant has made attempt tries.
func (s *StepBuilder) Hint(attempt int, text string) *StepBuilder {
	s.step.Hints = append(s.step.Hints, domain.Hint{Attempt: attempt, Text: text})
	return s
}

// PreScript sets the Lua run before classification.
func (s *StepBuilder) PreScript(source string) *StepBuilder {
	s.step.PreScript = source
	return s
}

// PostScript sets the Lua run by transitions that ask for it.
func (s *StepBuilder) PostScript(source string) *StepBuilder {
	s.step.PostScript = source
	return s
}

// On returns the transition for a string bucket, declaring the bucket on
// first use. Buckets keep the order they were declared in.
func (s *StepBuilder) On(bucket string) *TransitionBuilder {
	return s.OnLabel(domain.StringLabel(bucket))
}

// OnLabel is On for integer and boolean buckets.
func (s *StepBuilder) OnLabel(label domain.Label) *TransitionBuilder {
	for _, t := range s.transitions {
		if t.label == label {
			return t
		}
	}
	t := &TransitionBuilder{label: label}
	s.transitions = append(s.transitions, t)
	return t
}

// Random adds a bucket that triggers on its own with probability p.
func (s *StepBuilder) Random(bucket string, p float64) *StepBuilder {
	s.step.RandomBuckets = append(s.step.RandomBuckets, domain.RandomBucket{Name: bucket, Probability: p})
	return s
}

func (s *StepBuilder) build() domain.Step {
	st := s.step
	if len(s.transitions) == 0 {
		return st
	}
	st.Buckets = make(domain.Labels, 0, len(s.transitions))
	st.Transitions = make(domain.Transitions, len(s.transitions))
	for _, t := range s.transitions {
		st.Buckets = append(st.Buckets, t.label)
		st.Transitions[t.label] = t.tr
	}
	return st
}

// TransitionBuilder configures what one bucket does.
type TransitionBuilder struct {
	label domain.Label
	tr    domain.Transition
}

// Say appends content blocks shown when the bucket is chosen.
func (t *TransitionBuilder) Say(blocks ...string) *TransitionBuilder {
	t.tr.ContentBlocks = append(t.tr.ContentBlocks, domain.TextBlocks(blocks...)...)
	return t
}

// Go navigates to a "section:step" target.
func (t *TransitionBuilder) Go(target string) *TransitionBuilder {
	t.tr.Next = &domain.Navigation{Target: target}
	return t
}

// If starts or extends a conditional navigation chain. The first call adds
// the "if" arm and later calls add "elif" arms.
func (t *TransitionBuilder) If(cond map[string]any, target string) *TransitionBuilder {
	kind := domain.BranchElif
	if t.tr.Next == nil || len(t.tr.Next.Branches) == 0 {
		t.tr.Next = &domain.Navigation{}
		kind = domain.BranchIf
	}
	t.tr.Next.Branches = append(t.tr.Next.Branches, domain.Branch{Kind: kind, When: cond, Goto: target})
	return t
}

// Else closes a conditional navigation chain.
func (t *TransitionBuilder) Else(target string) *TransitionBuilder {
	if t.tr.Next == nil {
		t.tr.Next = &domain.Navigation{}
	}
	t.tr.Next.Branches = append(t.tr.Next.Branches, domain.Branch{Kind: domain.BranchElse, Goto: target})
	return t
}

// When requires the metadata to match before the transition applies.
func (t *TransitionBuilder) When(cond map[string]any) *TransitionBuilder {
	t.tr.Conditions = cond
	return t
}

// Set adds a metadata_add entry.
func (t *TransitionBuilder) Set(key string, value any) *TransitionBuilder {
	t.tr.Add = append(t.tr.Add, domain.KeyValue{Key: key, Value: value})
	return t
}

// SetTmp adds a metadata_tmp_add entry.
func (t *TransitionBuilder) SetTmp(key string, value any) *TransitionBuilder {
	t.tr.TmpAdd = append(t.tr.TmpAdd, domain.KeyValue{Key: key, Value: value})
	return t
}

// Append adds a metadata_append entry.
func (t *TransitionBuilder) Append(key string, value any) *TransitionBuilder {
	t.tr.Append = append(t.tr.Append, domain.KeyValue{Key: key, Value: value})
	return t
}

// Remove lists keys for metadata_remove.
func (t *TransitionBuilder) Remove(keys ...string) *TransitionBuilder {
	t.tr.Remove = append(t.tr.Remove, keys...)
	return t
}

// AIFeedback asks the model for feedback with these instructions.
func (t *TransitionBuilder) AIFeedback(tokens string) *TransitionBuilder {
	t.tr.AIFeedback = &domain.AIFeedback{TokensForAI: tokens}
	return t
}

// Free marks the transition as not counting an attempt.
func (t *TransitionBuilder) Free() *TransitionBuilder {
	no := false
	t.tr.CountsAsAttempt = &no
	return t
}

// RunScript runs the step's post script after the transition.
func (t *TransitionBuilder) RunScript() *TransitionBuilder {
	t.tr.RunPostScript = true
	return t
}

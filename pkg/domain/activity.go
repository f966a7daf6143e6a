package domain

import (
	"fmt"
	"strings"
)

const (
	// DefaultMaxAttempts applies when a document sets no default_max_attempts_per_step.
	DefaultMaxAttempts = 3
	// DefaultModel is the model alias used when neither the step nor the document names one.
	DefaultModel = "MODEL_0"
	// DefaultLanguage is the language assumed when metadata carries none.
	DefaultLanguage = "English"
)

// ActivityDefinition is one declarative activity document.
type ActivityDefinition struct {
	// Path is the location the document was loaded from. It is not part of the YAML.
	Path string `yaml:"-"`

	Sections           []Section `yaml:"sections"`
	DefaultMaxAttempts int       `yaml:"default_max_attempts_per_step,omitempty"`
	ClassifierModel    string    `yaml:"classifier_model,omitempty"`
	FeedbackModel      string    `yaml:"feedback_model,omitempty"`
	Rubric             string    `yaml:"tokens_for_ai_rubric,omitempty"`
}

// Section is an ordered group of steps.
type Section struct {
	ID    string `yaml:"section_id"`
	Title string `yaml:"title"`
	Steps []Step `yaml:"steps"`
}

// Step is the atomic unit of an activity.
type Step struct {
	ID    string `yaml:"step_id"`
	Title string `yaml:"title"`

	ContentBlocks []ContentBlock `yaml:"content_blocks,omitempty"`
	Question      string         `yaml:"question,omitempty"`

	Buckets       Labels        `yaml:"buckets,omitempty"`
	Transitions   Transitions   `yaml:"transitions,omitempty"`
	RandomBuckets RandomBuckets `yaml:"random_buckets,omitempty"`

	// TokensForAI is the classifier instruction text.
	TokensForAI         string           `yaml:"tokens_for_ai,omitempty"`
	FeedbackTokensForAI string           `yaml:"feedback_tokens_for_ai,omitempty"`
	FeedbackPrompts     []FeedbackPrompt `yaml:"feedback_prompts,omitempty"`

	ClassifierModel string `yaml:"classifier_model,omitempty"`
	FeedbackModel   string `yaml:"feedback_model,omitempty"`

	PreScript        string `yaml:"pre_script,omitempty"`
	PostScript       string `yaml:"post_script,omitempty"`
	ProcessingScript string `yaml:"processing_script,omitempty"`

	Hints []Hint `yaml:"hints,omitempty"`
}

// HasQuestion reports whether the step waits for a response.
func (s *Step) HasQuestion() bool { return s.Question != "" }

// Script returns the post-transition script; processing_script is the older name.
func (s *Step) Script() string {
	if s.PostScript != "" {
		return s.PostScript
	}
	return s.ProcessingScript
}

// Transition is the effect bound to one bucket at one step.
type Transition struct {
	Directives `yaml:",inline"`

	Next           *Navigation    `yaml:"next_section_and_step,omitempty"`
	Conditions     map[string]any `yaml:"metadata_conditions,omitempty"`
	FeedbackFilter KeyFilter      `yaml:"metadata_feedback_filter,omitempty"`
	AIFeedback     *AIFeedback    `yaml:"ai_feedback,omitempty"`
	ContentBlocks  []ContentBlock `yaml:"content_blocks,omitempty"`

	CountsAsAttempt     *bool `yaml:"counts_as_attempt,omitempty"`
	RunPostScript       bool  `yaml:"run_post_script,omitempty"`
	RunProcessingScript bool  `yaml:"run_processing_script,omitempty"`
}

// CountsAttempt defaults to true.
func (t *Transition) CountsAttempt() bool {
	return t.CountsAsAttempt == nil || *t.CountsAsAttempt
}

// RunsScript reports whether the step's post script should run for this transition.
func (t *Transition) RunsScript() bool {
	return t.RunPostScript || t.RunProcessingScript
}

// Directives are the metadata mutations of a transition, in application order.
type Directives struct {
	Add               KeyValues          `yaml:"metadata_add,omitempty"`
	TmpAdd            KeyValues          `yaml:"metadata_tmp_add,omitempty"`
	Append            KeyValues          `yaml:"metadata_append,omitempty"`
	TmpAppend         KeyValues          `yaml:"metadata_tmp_append,omitempty"`
	Remove            StringList         `yaml:"metadata_remove,omitempty"`
	Random            KeyValues          `yaml:"metadata_random,omitempty"`
	TmpRandom         KeyValues          `yaml:"metadata_tmp_random,omitempty"`
	WeightedRandom    WeightedDirectives `yaml:"metadata_weighted_random,omitempty"`
	TmpWeightedRandom WeightedDirectives `yaml:"metadata_tmp_weighted_random,omitempty"`
	Clear             bool               `yaml:"metadata_clear,omitempty"`
}

// AIFeedback carries per-transition feedback instructions.
type AIFeedback struct {
	TokensForAI string `yaml:"tokens_for_ai,omitempty"`
}

// FeedbackPrompt is one named feedback instruction bundle.
type FeedbackPrompt struct {
	Name           string    `yaml:"name"`
	TokensForAI    string    `yaml:"tokens_for_ai"`
	MetadataFilter KeyFilter `yaml:"metadata_filter,omitempty"`
	SkipCondition  string    `yaml:"skip_condition,omitempty"`
}

// Skip conditions for feedback prompts.
const (
	SkipAllNull  = "all_null"
	SkipAllFalse = "all_false"
	SkipAllTrue  = "all_true"
)

// Hint is attempt-indexed help shown on retry.
type Hint struct {
	Attempt         int    `yaml:"attempt"`
	Text            string `yaml:"text"`
	CountsAsAttempt bool   `yaml:"counts_as_attempt,omitempty"`
}

// WeightedOption is one entry of a weighted draw. Weight defaults to 1.
type WeightedOption struct {
	Value  any      `yaml:"value"`
	Weight *float64 `yaml:"weight,omitempty"`
}

// EffectiveWeight applies the default weight.
func (o WeightedOption) EffectiveWeight() float64 {
	if o.Weight == nil {
		return 1
	}
	return *o.Weight
}

// MaxAttempts returns the per-step attempt limit for new runs.
func (a *ActivityDefinition) MaxAttempts() int {
	if a.DefaultMaxAttempts > 0 {
		return a.DefaultMaxAttempts
	}
	return DefaultMaxAttempts
}

// Models returns the document-level classifier and feedback model aliases.
func (a *ActivityDefinition) Models() (classifier, feedback string) {
	classifier, feedback = a.ClassifierModel, a.FeedbackModel
	if classifier == "" {
		classifier = DefaultModel
	}
	if feedback == "" {
		feedback = DefaultModel
	}
	return classifier, feedback
}

// First returns the entry position of the document.
func (a *ActivityDefinition) First() (*Section, *Step, error) {
	if len(a.Sections) == 0 || len(a.Sections[0].Steps) == 0 {
		return nil, nil, fmt.Errorf("%w: activity has no steps", ErrStepNotFound)
	}
	return &a.Sections[0], &a.Sections[0].Steps[0], nil
}

// Locate finds a step by section and step id.
func (a *ActivityDefinition) Locate(sectionID, stepID string) (*Section, *Step, error) {
	for i := range a.Sections {
		sec := &a.Sections[i]
		if sec.ID != sectionID {
			continue
		}
		for j := range sec.Steps {
			if sec.Steps[j].ID == stepID {
				return sec, &sec.Steps[j], nil
			}
		}
	}
	return nil, nil, fmt.Errorf("%w: %s:%s", ErrStepNotFound, sectionID, stepID)
}

// Next returns the structurally next step: the next step in the section, else the
// first step of the next section. ok is false at the end of the document.
func (a *ActivityDefinition) Next(sectionID, stepID string) (sec *Section, step *Step, ok bool) {
	for i := range a.Sections {
		cur := &a.Sections[i]
		if cur.ID != sectionID {
			continue
		}
		for j := range cur.Steps {
			if cur.Steps[j].ID != stepID {
				continue
			}
			if j+1 < len(cur.Steps) {
				return cur, &cur.Steps[j+1], true
			}
			if i+1 < len(a.Sections) && len(a.Sections[i+1].Steps) > 0 {
				nxt := &a.Sections[i+1]
				return nxt, &nxt.Steps[0], true
			}
			return nil, nil, false
		}
	}
	return nil, nil, false
}

// ParseTarget splits a "section:step" navigation target.
func ParseTarget(target string) (sectionID, stepID string, err error) {
	sectionID, stepID, found := strings.Cut(target, ":")
	if !found || sectionID == "" || stepID == "" || strings.Contains(stepID, ":") {
		return "", "", fmt.Errorf("%w: %q is not in section_id:step_id form", ErrInvalidTarget, target)
	}
	return sectionID, stepID, nil
}

package domain

import (
	"strings"
	"time"
)

// TmpPrefix marks metadata keys that only live for one turn by convention.
const TmpPrefix = "tmp_"

// Placeholders resolved when a directive is applied.
const (
	UsersResponse = "the-users-response"
	LLMsResponse  = "the-llms-response"
)

// Metadata is the JSON-shaped key/value store of one activity run.
type Metadata map[string]any

// Clone deep-copies nested maps and slices.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = cloneValue(x)
		}
		return out
	case Metadata:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = cloneValue(x)
		}
		return out
	default:
		return v
	}
}

// ActivityState is the single in-progress run for a room.
type ActivityState struct {
	Room         string `json:"room"`
	ActivityPath string `json:"activity_path"`

	SectionID   string `json:"section_id"`
	StepID      string `json:"step_id"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`

	Metadata Metadata `json:"metadata"`

	ClassifierModel string `json:"classifier_model,omitempty"`
	FeedbackModel   string `json:"feedback_model,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState positions a fresh run at the first step of def.
func NewState(room string, def *ActivityDefinition) (*ActivityState, error) {
	sec, step, err := def.First()
	if err != nil {
		return nil, err
	}
	classifier, feedback := def.Models()
	now := time.Now().UTC()
	return &ActivityState{
		Room:            room,
		ActivityPath:    def.Path,
		SectionID:       sec.ID,
		StepID:          step.ID,
		MaxAttempts:     def.MaxAttempts(),
		Metadata:        Metadata{},
		ClassifierModel: classifier,
		FeedbackModel:   feedback,
		StartedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Clone returns an independent copy.
func (s *ActivityState) Clone() *ActivityState {
	cp := *s
	cp.Metadata = s.Metadata.Clone()
	return &cp
}

// MoveTo changes position and resets the attempt counter.
func (s *ActivityState) MoveTo(sectionID, stepID string) {
	s.SectionID = sectionID
	s.StepID = stepID
	s.Attempts = 0
}

// Position renders "section:step".
func (s *ActivityState) Position() string {
	return s.SectionID + ":" + s.StepID
}

// Language is the translation target stored in metadata.
func (s *ActivityState) Language() string {
	if lang, ok := s.Metadata["language"].(string); ok && strings.TrimSpace(lang) != "" {
		return lang
	}
	return DefaultLanguage
}

// ScriptOutcome is what a script hook left behind.
type ScriptOutcome struct {
	Metadata Metadata
	// Result is nil when the script did not assign script_result.
	Result map[string]any
}

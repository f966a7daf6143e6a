package ports

import (
	"context"

	"github.com/aretw0/lattice/pkg/domain"
)

// ClassifyRequest is the input of one classification.
type ClassifyRequest struct {
	Question     string
	Response     string
	Buckets      []string
	Instructions string
	Model        string
}

// Classifier maps free text to one bucket label.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (string, error)
}

// FeedbackRequest is the input of one feedback generation.
type FeedbackRequest struct {
	Instructions string
	Category     string
	Question     string
	Response     string
	Username     string
	Metadata     domain.Metadata
	Changed      domain.Metadata
	Model        string
}

// FeedbackGenerator produces a narrative feedback message.
type FeedbackGenerator interface {
	Feedback(ctx context.Context, req FeedbackRequest) (string, error)
}

// Translator renders text in a target language.
type Translator interface {
	Translate(ctx context.Context, text, language, model string) (string, error)
}

// GradeRequest is the input of the completion grading pass.
type GradeRequest struct {
	History []domain.Message
	Rubric  string
	Model   string
}

// Grader grades a transcript against a rubric.
type Grader interface {
	Grade(ctx context.Context, req GradeRequest) (string, error)
}

// ScriptRunner executes an author-supplied hook. The metadata argument is not
// modified; the outcome carries the script's view of it.
type ScriptRunner interface {
	Run(ctx context.Context, source string, md domain.Metadata) (domain.ScriptOutcome, error)
}

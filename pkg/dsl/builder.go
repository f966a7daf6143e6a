package dsl

import (
	"fmt"

	"github.com/aretw0/lattice/internal/validator"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
)

// Builder assembles one activity document.
type Builder struct {
	def      domain.ActivityDefinition
	sections []*SectionBuilder
}

// New starts a document that will be served under path.
func New(path string) *Builder {
	return &Builder{def: domain.ActivityDefinition{Path: path}}
}

// MaxAttempts sets default_max_attempts_per_step.
func (b *Builder) MaxAttempts(n int) *Builder {
	b.def.DefaultMaxAttempts = n
	return b
}

// Models sets the document-level classifier and feedback model aliases.
func (b *Builder) Models(classifier, feedback string) *Builder {
	b.def.ClassifierModel, b.def.FeedbackModel = classifier, feedback
	return b
}

// Rubric sets the grading instructions used on completion.
func (b *Builder) Rubric(text string) *Builder {
	b.def.Rubric = text
	return b
}

// Section appends a section. Calling it again with the same id returns the
// existing section.
func (b *Builder) Section(id, title string) *SectionBuilder {
	for _, s := range b.sections {
		if s.section.ID == id {
			return s
		}
	}
	s := &SectionBuilder{section: domain.Section{ID: id, Title: title}}
	b.sections = append(b.sections, s)
	return s
}

// Definition assembles the document without validating it.
func (b *Builder) Definition() *domain.ActivityDefinition {
	def := b.def
	def.Sections = make([]domain.Section, 0, len(b.sections))
	for _, s := range b.sections {
		def.Sections = append(def.Sections, s.build())
	}
	return &def
}

// Build assembles and validates the document. Validator warnings are ignored.
func (b *Builder) Build() (*domain.ActivityDefinition, error) {
	def := b.Definition()
	if err := validator.Validate(def).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", def.Path, err)
	}
	return def, nil
}

// Loader builds every document and serves them from memory.
func Loader(builders ...*Builder) (*memory.Loader, error) {
	defs := make([]*domain.ActivityDefinition, 0, len(builders))
	for _, b := range builders {
		def, err := b.Build()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return memory.NewFromDefinitions(defs...)
}

// SectionBuilder collects the steps of one section.
type SectionBuilder struct {
	section domain.Section
	steps   []*StepBuilder
}

// Step appends a step, or returns the existing one with the same id.
func (s *SectionBuilder) Step(id, title string) *StepBuilder {
	for _, st := range s.steps {
		if st.step.ID == id {
			return st
		}
	}
	st := &StepBuilder{step: domain.Step{ID: id, Title: title}}
	s.steps = append(s.steps, st)
	return st
}

func (s *SectionBuilder) build() domain.Section {
	sec := s.section
	sec.Steps = make([]domain.Step, 0, len(s.steps))
	for _, st := range s.steps {
		sec.Steps = append(sec.Steps, st.build())
	}
	return sec
}

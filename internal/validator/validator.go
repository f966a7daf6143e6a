// Package validator lints activity documents without running them.
package validator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/script"
)

var (
	jinjaControl      = regexp.MustCompile(`\{%\s*(if|for|elif|else|endif|endfor|block|endblock|macro|endmacro|set|include|extends)\s`)
	handlebarsControl = regexp.MustCompile(`\{\{#(if|each|unless|with)|\{\{/(if|each|unless|with)\}\}|\{\{else\}\}`)
)

// Report collects the findings for one document. Errors make the document
// unusable; warnings flag likely authoring mistakes.
type Report struct {
	Path     string
	Errors   []string
	Warnings []string
}

// OK reports whether the document has no errors.
func (r *Report) OK() bool { return len(r.Errors) == 0 }

// Err summarises the errors, or returns nil.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("found %d errors:\n- %s", len(r.Errors), strings.Join(r.Errors, "\n- "))
}

func (r *Report) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidateBytes parses and validates a raw document. Decoding failures,
// including fields of the wrong type, are reported as errors.
func ValidateBytes(path string, data []byte) *Report {
	def, err := domain.ParseActivity(data)
	if err != nil {
		return &Report{Path: path, Errors: []string{err.Error()}}
	}
	def.Path = path
	return Validate(def)
}

// Validate checks a parsed document.
func Validate(def *domain.ActivityDefinition) *Report {
	r := &Report{Path: def.Path}
	if def.DefaultMaxAttempts < 0 {
		r.errorf("default_max_attempts_per_step must be a positive integer")
	}
	checkTemplate(r, "tokens_for_ai_rubric", def.Rubric)

	if len(def.Sections) == 0 {
		r.errorf("At least one section is required")
		return r
	}

	targets := make(map[string]bool)
	for _, sec := range def.Sections {
		for _, st := range sec.Steps {
			targets[sec.ID+":"+st.ID] = true
		}
	}

	sectionIDs := make(map[string]bool)
	for i := range def.Sections {
		sec := &def.Sections[i]
		name := sec.ID
		if name == "" {
			name = fmt.Sprintf("section_%d", i)
			r.errorf("Section %d: Missing required field 'section_id'", i)
		} else if sectionIDs[sec.ID] {
			r.errorf("Duplicate section_id: %s", sec.ID)
		}
		sectionIDs[sec.ID] = true
		if sec.Title == "" {
			r.errorf("Section %s: Missing required field 'title'", name)
		}
		if len(sec.Steps) == 0 {
			r.errorf("Section %s: At least one step is required", name)
			continue
		}

		stepIDs := make(map[string]bool)
		for j := range sec.Steps {
			st := &sec.Steps[j]
			if st.ID != "" && stepIDs[st.ID] {
				r.errorf("Section %s: Duplicate step_id '%s'", name, st.ID)
			}
			stepIDs[st.ID] = true
			terminal := i == len(def.Sections)-1 && j == len(sec.Steps)-1
			validateStep(r, name, j, st, targets, terminal)
		}
	}

	for _, unreachable := range unreachableSteps(def) {
		r.warnf("Step %s is unreachable from the first step", unreachable)
	}
	return r
}

func validateStep(r *Report, section string, index int, st *domain.Step, targets map[string]bool, last bool) {
	id := st.ID
	if id == "" {
		id = fmt.Sprintf("step_%d", index)
		r.errorf("Section %s, step %s: Missing required field 'step_id'", section, id)
	}
	at := fmt.Sprintf("Section %s, step %s", section, id)
	if st.Title == "" {
		r.errorf("%s: Missing required field 'title'", at)
	}
	if len(st.ContentBlocks) == 0 && !st.HasQuestion() {
		r.errorf("%s: Must have either 'content_blocks' or 'question'", at)
	}
	validateBlocks(r, at+": content_blocks", st.ContentBlocks)
	checkTemplate(r, at+": 'question'", st.Question)
	checkTemplate(r, at+": 'tokens_for_ai'", st.TokensForAI)
	checkTemplate(r, at+": 'feedback_tokens_for_ai'", st.FeedbackTokensForAI)

	validateFeedbackPrompts(r, at, st.FeedbackPrompts)
	validateHints(r, at, st.Hints)
	validateScripts(r, at, st)

	if st.Buckets != nil && len(st.Buckets) == 0 {
		r.warnf("%s: Empty buckets list", at)
	}
	validateRandomBuckets(r, at, st)
	validateTransitions(r, at, st, targets)

	if last && !continues(st) {
		if st.HasQuestion() {
			r.errorf("%s: Final/terminal steps cannot have questions", at)
		}
		if len(st.Buckets) > 0 {
			r.errorf("%s: Final/terminal steps should not have buckets", at)
		}
	}
}

// continues reports whether any transition names an explicit next step.
func continues(st *domain.Step) bool {
	for _, tr := range st.Transitions {
		if !tr.Next.IsZero() {
			return true
		}
	}
	return false
}

func validateBlocks(r *Report, at string, blocks []domain.ContentBlock) {
	for i, b := range blocks {
		loc := fmt.Sprintf("%s[%d]", at, i)
		if b.Text == "" && b.ShowIf != nil {
			r.errorf("%s dict must have 'text' field", loc)
		}
		checkTemplate(r, loc, b.Text)
	}
}

func validateFeedbackPrompts(r *Report, at string, prompts []domain.FeedbackPrompt) {
	if prompts == nil {
		return
	}
	if len(prompts) == 0 {
		r.errorf("%s: 'feedback_prompts' cannot be empty", at)
		return
	}
	names := make(map[string]bool)
	for i, p := range prompts {
		loc := fmt.Sprintf("%s: feedback_prompts[%d]", at, i)
		if p.Name == "" {
			r.errorf("%s missing required field 'name'", loc)
		} else if names[p.Name] {
			r.errorf("%s: duplicate feedback prompt name '%s'", at, p.Name)
		}
		names[p.Name] = true
		if p.TokensForAI == "" {
			r.errorf("%s missing required field 'tokens_for_ai'", loc)
		}
		checkTemplate(r, loc+".tokens_for_ai", p.TokensForAI)
		switch p.SkipCondition {
		case "", domain.SkipAllNull, domain.SkipAllFalse, domain.SkipAllTrue:
		default:
			r.errorf("%s.skip_condition must be one of %s, %s, %s", loc, domain.SkipAllNull, domain.SkipAllFalse, domain.SkipAllTrue)
		}
		if p.SkipCondition != "" && p.MetadataFilter == nil {
			r.warnf("%s: skip_condition has no effect without metadata_filter", loc)
		}
	}
}

func validateHints(r *Report, at string, hints []domain.Hint) {
	if hints == nil {
		return
	}
	if len(hints) == 0 {
		r.warnf("%s: Empty hints list", at)
		return
	}
	for i, h := range hints {
		loc := fmt.Sprintf("%s: hints[%d]", at, i)
		if h.Attempt < 1 {
			r.errorf("%s['attempt'] must be a positive integer", loc)
		}
		if h.Text == "" {
			r.errorf("%s missing required field 'text'", loc)
		}
		checkTemplate(r, loc+"['text']", h.Text)
	}
}

func validateScripts(r *Report, at string, st *domain.Step) {
	if st.PreScript != "" && !st.HasQuestion() {
		r.warnf("%s: pre_script typically used with question steps", at)
	}
	scripts := []struct{ field, src string }{
		{"pre_script", st.PreScript},
		{"post_script", st.PostScript},
		{"processing_script", st.ProcessingScript},
	}
	for _, s := range scripts {
		if s.src == "" {
			continue
		}
		if err := script.Check(s.src); err != nil {
			r.errorf("%s: %s: Lua syntax error - %v", at, s.field, err)
		}
	}
	if st.PostScript != "" && st.ProcessingScript != "" {
		r.warnf("%s: both post_script and processing_script are set; post_script is used", at)
	}
}

func validateRandomBuckets(r *Report, at string, st *domain.Step) {
	total := 0.0
	for _, rb := range st.RandomBuckets {
		if !st.Buckets.Contains(domain.StringLabel(rb.Name)) && !containsCandidate(st.Buckets, rb.Name) {
			r.errorf("%s: random_buckets key '%s' not found in buckets list", at, rb.Name)
			continue
		}
		if rb.Probability < 0 || rb.Probability > 1 {
			r.errorf("%s: random_buckets['%s'].probability must be between 0 and 1 (got %v)", at, rb.Name, rb.Probability)
			continue
		}
		total += rb.Probability
	}
	if total > 1.0 {
		r.warnf("%s: Total probability of random_buckets is %.2f (>1.0). Multiple events can trigger in the same turn.", at, total)
	}
}

func containsCandidate(buckets domain.Labels, raw string) bool {
	for _, c := range domain.Candidates(raw) {
		if buckets.Contains(c) {
			return true
		}
	}
	return false
}

func validateTransitions(r *Report, at string, st *domain.Step, targets map[string]bool) {
	if len(st.Buckets) > 0 && st.Transitions == nil {
		r.errorf("%s: buckets declared without transitions", at)
		return
	}
	for _, b := range st.Buckets {
		if _, ok := st.Transitions[b]; !ok {
			r.errorf("%s: Missing transition for bucket '%s'", at, b)
		}
	}
	for _, label := range sortedLabels(st.Transitions) {
		tr := st.Transitions[label]
		if !st.Buckets.Contains(label) {
			r.warnf("%s: Unused transition '%s'", at, label)
		}
		loc := fmt.Sprintf("%s, bucket %s", at, label)
		validateNavigation(r, loc, tr.Next, targets)
		validateBlocks(r, loc+": content_blocks", tr.ContentBlocks)
		if tr.AIFeedback != nil {
			checkTemplate(r, loc+": ai_feedback.tokens_for_ai", tr.AIFeedback.TokensForAI)
		}
		if tr.FeedbackFilter != nil && st.FeedbackTokensForAI == "" && len(st.FeedbackPrompts) == 0 {
			r.warnf("%s: metadata_feedback_filter used but no feedback_tokens_for_ai or feedback_prompts defined", at)
		}
		if tr.RunsScript() && st.Script() == "" {
			r.warnf("%s: run_post_script is set but the step has no post_script", loc)
		}
	}
}

func validateNavigation(r *Report, at string, nav *domain.Navigation, targets map[string]bool) {
	if nav.IsZero() {
		return
	}
	if nav.Target != "" {
		checkTarget(r, at, "'next_section_and_step'", nav.Target, targets)
		return
	}
	hasElse := false
	for i, b := range nav.Branches {
		loc := fmt.Sprintf("navigation[%d]['goto']", i)
		if b.Kind == domain.BranchElse {
			hasElse = true
		} else if len(b.When) == 0 {
			r.errorf("%s: navigation[%d]['%s'] must be a non-empty dict", at, i, b.Kind)
		}
		if b.Goto == "" {
			r.errorf("%s: navigation[%d] missing required field 'goto'", at, i)
			continue
		}
		checkTarget(r, at, loc, b.Goto, targets)
	}
	if len(nav.Branches) > 0 && nav.Branches[0].Kind != domain.BranchIf {
		r.errorf("%s: conditional navigation must start with an 'if' branch", at)
	}
	if !hasElse {
		r.warnf("%s: conditional navigation has no 'else' clause - may not always resolve", at)
	}
}

func checkTarget(r *Report, at, field, target string, targets map[string]bool) {
	if _, _, err := domain.ParseTarget(target); err != nil {
		r.errorf("%s: %s must be in format 'section_id:step_id'", at, field)
		return
	}
	if !targets[target] {
		r.errorf("%s: Invalid transition target '%s'", at, target)
	}
}

func checkTemplate(r *Report, at, text string) {
	if text == "" {
		return
	}
	if m := jinjaControl.FindString(text); m != "" {
		r.errorf("%s: Jinja2 control structures ({%% %%}) are not supported. Found: '%s...'. Use 'show_if' conditions or pre-compute values in scripts instead.", at, m)
	}
	if m := handlebarsControl.FindString(text); m != "" {
		r.errorf("%s: Handlebars control structures ({{#}}) are not supported. Found: '%s...'. Use 'show_if' conditions or pre-compute values in scripts instead.", at, m)
	}
}

// ValidateLoader validates every document the loader lists. Documents that
// fail to load are reported with the load error.
func ValidateLoader(ctx context.Context, loader ports.ActivityLoader) ([]*Report, error) {
	paths, err := loader.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	reports := make([]*Report, 0, len(paths))
	for _, path := range paths {
		def, err := loader.Load(ctx, path)
		if err != nil {
			reports = append(reports, &Report{Path: path, Errors: []string{err.Error()}})
			continue
		}
		reports = append(reports, Validate(def))
	}
	return reports, nil
}

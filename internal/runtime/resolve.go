package runtime

import (
	"github.com/aretw0/lattice/pkg/domain"
)

// NonAdvancing lists categories that keep the run on the current step.
var NonAdvancing = map[string]bool{
	"partial_understanding":       true,
	"limited_effort":              true,
	"asking_clarifying_questions": true,
	"set_language":                true,
	"off_topic":                   true,
}

// ActiveBuckets orders the buckets processed in one turn: the classified
// category first, then triggered random buckets in document order.
func ActiveBuckets(category string, triggered []string) []string {
	out := make([]string, 0, 1+len(triggered))
	out = append(out, category)
	return append(out, triggered...)
}

// ResolveTransition finds the transition for a raw label, trying the literal
// string, then the integer key of a digit string, then the boolean key of
// yes/true or no/false.
func ResolveTransition(step *domain.Step, raw string) (domain.Label, *domain.Transition, bool) {
	for _, candidate := range domain.Candidates(raw) {
		if tr, ok := step.Transitions[candidate]; ok {
			return candidate, &tr, true
		}
	}
	return domain.Label{}, nil, false
}

// FinalNavigation returns the last non-empty target.
func FinalNavigation(targets []string) string {
	final := ""
	for _, t := range targets {
		if t != "" {
			final = t
		}
	}
	return final
}

// CountsAsAttempt is true when any processed transition counts. An empty
// list counts nothing.
func CountsAsAttempt(processed []*domain.Transition) bool {
	for _, tr := range processed {
		if tr.CountsAttempt() {
			return true
		}
	}
	return false
}

// ShouldAdvance decides whether the run leaves the current step.
func ShouldAdvance(category string, attempts, maxAttempts int, navigation string) bool {
	return !NonAdvancing[category] || attempts >= maxAttempts || navigation != ""
}

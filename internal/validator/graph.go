package validator

import (
	"sort"

	"github.com/aretw0/lattice/pkg/domain"
)

// unreachableSteps crawls from the first step along explicit targets and
// structural fall-through, and returns every position never visited.
func unreachableSteps(def *domain.ActivityDefinition) []string {
	first, firstStep, err := def.First()
	if err != nil {
		return nil
	}
	start := first.ID + ":" + firstStep.ID
	visited := map[string]bool{}
	queue := []string{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true

		sectionID, stepID, err := domain.ParseTarget(current)
		if err != nil {
			continue
		}
		_, st, err := def.Locate(sectionID, stepID)
		if err != nil {
			continue
		}
		for _, tr := range st.Transitions {
			for _, target := range tr.Next.Targets() {
				if !visited[target] {
					queue = append(queue, target)
				}
			}
		}
		if fallsThrough(st) {
			if sec, next, ok := def.Next(sectionID, stepID); ok {
				queue = append(queue, sec.ID+":"+next.ID)
			}
		}
	}

	var out []string
	for _, sec := range def.Sections {
		for _, st := range sec.Steps {
			pos := sec.ID + ":" + st.ID
			if !visited[pos] {
				out = append(out, pos)
			}
		}
	}
	return out
}

// fallsThrough reports whether a step can continue to its structural
// successor: content steps always do, question steps do when some bucket
// has no guaranteed target.
func fallsThrough(st *domain.Step) bool {
	if !st.HasQuestion() || len(st.Transitions) == 0 {
		return true
	}
	for _, b := range st.Buckets {
		tr, ok := st.Transitions[b]
		if !ok || tr.Next.IsZero() {
			return true
		}
		if tr.Next.Target == "" && !hasElse(tr.Next) {
			return true
		}
	}
	return false
}

func hasElse(nav *domain.Navigation) bool {
	for _, b := range nav.Branches {
		if b.Kind == domain.BranchElse {
			return true
		}
	}
	return false
}

func sortedLabels(t domain.Transitions) []domain.Label {
	out := make([]domain.Label, 0, len(t))
	for l := range t {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Value < out[j].Value
	})
	return out
}

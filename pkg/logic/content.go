package logic

import "github.com/aretw0/lattice/pkg/domain"

// Rand is the randomness consumed by draws. *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// FilterContentBlocks renders the blocks whose show_if holds, in order.
func FilterContentBlocks(blocks []domain.ContentBlock, md domain.Metadata, tc TemplateContext) []string {
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if len(b.ShowIf) > 0 && !CheckAll(md, b.ShowIf) {
			continue
		}
		out = append(out, Render(b.Text, tc))
	}
	return out
}

// ResolveNavigation returns the literal target, or the goto of the first
// branch that passes. An else branch always passes. It returns "" when nothing
// matches.
func ResolveNavigation(nav *domain.Navigation, md domain.Metadata) string {
	if nav == nil {
		return ""
	}
	if nav.Target != "" {
		return nav.Target
	}
	for _, b := range nav.Branches {
		switch b.Kind {
		case domain.BranchIf, domain.BranchElif:
			if CheckAll(md, b.When) {
				return b.Goto
			}
		case domain.BranchElse:
			return b.Goto
		}
	}
	return ""
}

// WeightedPick draws one value. Negative weights count as zero; ok is false
// for an empty list or when every weight is zero.
func WeightedPick(options []domain.WeightedOption, rng Rand) (value any, ok bool) {
	total := 0.0
	for _, o := range options {
		total += max(0, o.EffectiveWeight())
	}
	if total <= 0 {
		return nil, false
	}
	roll := rng.Float64() * total
	for _, o := range options {
		w := max(0, o.EffectiveWeight())
		if w == 0 {
			continue
		}
		if roll < w {
			return o.Value, true
		}
		roll -= w
	}
	// Float rounding can leave roll just past the last bucket.
	for i := len(options) - 1; i >= 0; i-- {
		if options[i].EffectiveWeight() > 0 {
			return options[i].Value, true
		}
	}
	return nil, false
}

// ProgressiveHint returns the hint whose attempt equals attempt exactly, with
// its text rendered.
func ProgressiveHint(hints []domain.Hint, attempt int, tc TemplateContext) (domain.Hint, bool) {
	for _, h := range hints {
		if h.Attempt == attempt {
			h.Text = Render(h.Text, tc)
			return h, true
		}
	}
	return domain.Hint{}, false
}

package logic_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/logic"
)

func TestFilterContentBlocks(t *testing.T) {
	md := domain.Metadata{"score": 3}
	tc := logic.NewTemplateContext(md, 0, 3, "s", "t", "")
	blocks := []domain.ContentBlock{
		{Text: "Always {{metadata.score}}"},
		{Text: "High", ShowIf: map[string]any{"score_gte": 5}},
		{Text: "Low", ShowIf: map[string]any{"score_lt": 5}},
	}
	assert.Equal(t, []string{"Always 3", "Low"}, logic.FilterContentBlocks(blocks, md, tc))
}

func TestResolveNavigation(t *testing.T) {
	chain := &domain.Navigation{Branches: []domain.Branch{
		{Kind: domain.BranchIf, When: map[string]any{"score_gte": 10}, Goto: "s:high"},
		{Kind: domain.BranchElif, When: map[string]any{"score_gte": 5}, Goto: "s:mid"},
		{Kind: domain.BranchElse, Goto: "s:low"},
	}}

	assert.Equal(t, "s:high", logic.ResolveNavigation(chain, domain.Metadata{"score": 12}))
	assert.Equal(t, "s:mid", logic.ResolveNavigation(chain, domain.Metadata{"score": 6}))
	assert.Equal(t, "s:low", logic.ResolveNavigation(chain, domain.Metadata{}))
	assert.Equal(t, "a:b", logic.ResolveNavigation(&domain.Navigation{Target: "a:b"}, nil))
	assert.Equal(t, "", logic.ResolveNavigation(nil, nil))

	noElse := &domain.Navigation{Branches: chain.Branches[:2]}
	assert.Equal(t, "", logic.ResolveNavigation(noElse, domain.Metadata{"score": 1}))
}

func TestWeightedPick(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	_, ok := logic.WeightedPick(nil, rng)
	assert.False(t, ok)

	zero := 0.0
	options := []domain.WeightedOption{
		{Value: "never", Weight: &zero},
		{Value: "always"},
	}
	for range 100 {
		v, ok := logic.WeightedPick(options, rng)
		require.True(t, ok)
		assert.Equal(t, "always", v)
	}

	_, ok = logic.WeightedPick([]domain.WeightedOption{{Value: "x", Weight: &zero}}, rng)
	assert.False(t, ok)
}

func TestWeightedPick_Distribution(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	heavy, light := 9.0, 1.0
	options := []domain.WeightedOption{{Value: "heavy", Weight: &heavy}, {Value: "light", Weight: &light}}

	counts := map[any]int{}
	for range 2000 {
		v, _ := logic.WeightedPick(options, rng)
		counts[v]++
	}
	assert.Greater(t, counts["heavy"], counts["light"]*3)
	assert.Positive(t, counts["light"])
}

func TestProgressiveHint(t *testing.T) {
	hints := []domain.Hint{
		{Attempt: 1, Text: "Think about {{metadata.topic}}"},
		{Attempt: 2, Text: "Second", CountsAsAttempt: true},
	}
	tc := logic.NewTemplateContext(domain.Metadata{"topic": "loops"}, 1, 3, "", "", "")

	h, ok := logic.ProgressiveHint(hints, 1, tc)
	require.True(t, ok)
	assert.Equal(t, "Think about loops", h.Text)
	assert.False(t, h.CountsAsAttempt)

	h, ok = logic.ProgressiveHint(hints, 2, tc)
	require.True(t, ok)
	assert.True(t, h.CountsAsAttempt)

	_, ok = logic.ProgressiveHint(hints, 3, tc)
	assert.False(t, ok, "hints match the attempt exactly")
}

package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/domain"
)

const doc = `
default_max_attempts_per_step: 2
feedback_model: MODEL_1
sections:
  - section_id: s1
    title: One
    steps:
      - step_id: q1
        title: Question
        content_blocks:
          - "Plain"
          - text: "Only when rich"
            show_if: { gold_gte: 10 }
        question: "Pick"
        buckets: [correct, 1, true, "2"]
        random_buckets:
          storm: { probability: 0.25 }
          calm: { probability: "1" }
        transitions:
          correct:
            next_section_and_step: s2:end
            metadata_add: { score: "n+1", who: the-users-response }
            metadata_remove: temp
            counts_as_attempt: false
          1:
            next_section_and_step:
              - if: { score_gte: 5 }
                goto: s2:end
              - else:
                goto: s1:q1
          true:
            metadata_remove: [a, b]
            metadata_weighted_random:
              loot:
                - { value: gem, weight: 3 }
                - { value: rock }
          "2":
            metadata_clear: true
            run_processing_script: true
        processing_script: "script_result = {}"
        hints:
          - { attempt: 1, text: "Try harder" }
  - section_id: s2
    title: Two
    steps:
      - step_id: end
        title: End
`

func TestParseActivity(t *testing.T) {
	def, err := domain.ParseActivity([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, 2, def.MaxAttempts())
	classifier, feedback := def.Models()
	assert.Equal(t, "MODEL_0", classifier)
	assert.Equal(t, "MODEL_1", feedback)

	_, step, err := def.Locate("s1", "q1")
	require.NoError(t, err)

	assert.Equal(t, domain.Labels{
		domain.StringLabel("correct"), domain.IntLabel(1), domain.BoolLabel(true), domain.StringLabel("2"),
	}, step.Buckets)
	require.Len(t, step.ContentBlocks, 2)
	assert.Equal(t, map[string]any{"gold_gte": 10}, step.ContentBlocks[1].ShowIf)

	assert.Equal(t, domain.RandomBuckets{{Name: "storm", Probability: 0.25}, {Name: "calm", Probability: 1}}, step.RandomBuckets)

	correct := step.Transitions[domain.StringLabel("correct")]
	assert.Equal(t, "s2:end", correct.Next.Target)
	assert.Equal(t, []string{"score", "who"}, correct.Add.Keys())
	assert.Equal(t, domain.StringList{"temp"}, correct.Remove)
	assert.False(t, correct.CountsAttempt())

	one := step.Transitions[domain.IntLabel(1)]
	require.Len(t, one.Next.Branches, 2)
	assert.Equal(t, domain.BranchIf, one.Next.Branches[0].Kind)
	assert.Equal(t, domain.BranchElse, one.Next.Branches[1].Kind)
	assert.Equal(t, []string{"s2:end", "s1:q1"}, one.Next.Targets())
	assert.True(t, one.CountsAttempt())

	yes := step.Transitions[domain.BoolLabel(true)]
	assert.Equal(t, domain.StringList{"a", "b"}, yes.Remove)
	require.Len(t, yes.WeightedRandom, 1)
	assert.Equal(t, 3.0, yes.WeightedRandom[0].Options[0].EffectiveWeight())
	assert.Equal(t, 1.0, yes.WeightedRandom[0].Options[1].EffectiveWeight())

	two := step.Transitions[domain.StringLabel("2")]
	assert.True(t, two.Clear)
	assert.True(t, two.RunsScript())
	assert.Equal(t, "script_result = {}", step.Script())

	_, hasIntTwo := step.Transitions[domain.IntLabel(2)]
	assert.False(t, hasIntTwo, "quoted keys stay strings")
}

func TestParseActivity_Errors(t *testing.T) {
	_, err := domain.ParseActivity([]byte(""))
	assert.Error(t, err)
	_, err = domain.ParseActivity([]byte("sections: []"))
	assert.Error(t, err)
	_, err = domain.ParseActivity([]byte("sections: [{section_id: a, steps: [{step_id: b, transitions: {[x]: {}}}]}]"))
	assert.Error(t, err)
}

func TestCandidates(t *testing.T) {
	assert.Equal(t, []domain.Label{domain.StringLabel("3"), domain.IntLabel(3)}, domain.Candidates("3"))
	assert.Equal(t, []domain.Label{domain.StringLabel("Yes"), domain.BoolLabel(true)}, domain.Candidates("Yes"))
	assert.Equal(t, []domain.Label{domain.StringLabel("false"), domain.BoolLabel(false)}, domain.Candidates("false"))
	assert.Equal(t, []domain.Label{domain.StringLabel("correct")}, domain.Candidates("correct"))
}

func TestNavigationHelpers(t *testing.T) {
	def, err := domain.ParseActivity([]byte(doc))
	require.NoError(t, err)

	sec, step, ok := def.Next("s1", "q1")
	require.True(t, ok)
	assert.Equal(t, "s2", sec.ID)
	assert.Equal(t, "end", step.ID)

	_, _, ok = def.Next("s2", "end")
	assert.False(t, ok)

	_, _, err = def.Locate("s9", "x")
	assert.ErrorIs(t, err, domain.ErrStepNotFound)

	s, st, err := domain.ParseTarget("s2:end")
	require.NoError(t, err)
	assert.Equal(t, "s2", s)
	assert.Equal(t, "end", st)

	for _, bad := range []string{"s2", ":end", "s2:", "a:b:c"} {
		_, _, err := domain.ParseTarget(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidTarget, bad)
	}
}

func TestStateLifecycle(t *testing.T) {
	def, err := domain.ParseActivity([]byte(doc))
	require.NoError(t, err)
	def.Path = "doc.yaml"

	st, err := domain.NewState("room", def)
	require.NoError(t, err)
	assert.Equal(t, "s1:q1", st.Position())
	assert.Equal(t, 2, st.MaxAttempts)
	assert.Equal(t, "doc.yaml", st.ActivityPath)
	assert.Equal(t, domain.DefaultLanguage, st.Language())

	st.Attempts = 2
	st.MoveTo("s2", "end")
	assert.Equal(t, 0, st.Attempts)

	st.Metadata["language"] = "Spanish"
	cp := st.Clone()
	cp.Metadata["language"] = "French"
	assert.Equal(t, "Spanish", st.Language())
}

func TestKeyFilter(t *testing.T) {
	md := domain.Metadata{"a": 1, "b": 2}
	var unset domain.KeyFilter
	assert.Equal(t, md, unset.Apply(md))
	assert.Equal(t, domain.Metadata{}, domain.KeyFilter{}.Apply(md))
	assert.Equal(t, domain.Metadata{"b": 2}, domain.KeyFilter{"b", "zzz"}.Apply(md))
}

func TestMessageFlags(t *testing.T) {
	assert.True(t, domain.Message{Username: "System (Hint)"}.IsSystem())
	assert.True(t, domain.Message{Username: "System"}.IsSystem())
	assert.False(t, domain.Message{Username: "Systematic"}.IsSystem())
	assert.True(t, domain.Message{Content: `<img alt="Plot Image" src="data:image/png;base64,AAA">`}.IsInlineImage())
}

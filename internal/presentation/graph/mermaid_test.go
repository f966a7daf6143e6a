package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/internal/presentation/graph"
	"github.com/aretw0/lattice/pkg/domain"
)

const doc = `
sections:
  - section_id: intro
    title: Intro
    steps:
      - step_id: welcome
        title: Welcome
        content_blocks: ["Hi"]
      - step_id: ask
        title: Ask "colour"
        question: What colour is the sky?
        buckets: [blue, off_topic, other]
        transitions:
          blue:
            next_section_and_step: outro:bye
          off_topic:
            content_blocks: ["Stay on topic."]
          other:
            next_section_and_step:
              - if: {tries: 2}
                goto: intro:welcome
              - else: true
                goto: outro:bye
  - section_id: outro
    title: Outro
    steps:
      - step_id: bye
        title: Bye
        content_blocks: ["Bye"]
`

func TestGenerateMermaid(t *testing.T) {
	def, err := domain.ParseActivity([]byte(doc))
	require.NoError(t, err)

	out := graph.GenerateMermaid(def, nil)

	tests := []struct {
		name string
		want string
	}{
		{"header", "graph TD\n"},
		{"section subgraph", `subgraph section__intro["Intro"]`},
		{"entry is a circle", `intro__welcome(("Welcome"))`},
		{"question shape and escaping", `intro__ask[/"Ask 'colour'"/]`},
		{"content step falls through", "intro__welcome --> intro__ask"},
		{"bucket target", `intro__ask -- "blue" --> outro__bye`},
		{"non-advancing bucket loops", `intro__ask -- "off_topic" --> intro__ask`},
		{"branch chain", `intro__ask -. "other (if)" .-> intro__welcome`},
		{"else branch", `intro__ask -. "other (else)" .-> outro__bye`},
		{"last step ends", "outro__bye --> done"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, out, tt.want)
		})
	}
	assert.NotContains(t, out, "classDef current")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	def, err := domain.ParseActivity([]byte(doc))
	require.NoError(t, err)

	out := graph.GenerateMermaid(def, &graph.Overlay{SectionID: "intro", StepID: "ask"})

	assert.Contains(t, out, "classDef current")
	assert.Contains(t, out, "class intro__ask current;")
}

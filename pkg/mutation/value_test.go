package mutation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/lattice/pkg/mutation"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  any
		kind mutation.Kind
	}{
		{"the-users-response", mutation.KindUserResponse},
		{"the-llms-response", mutation.KindLLMResponse},
		{"n+random(1,6)", mutation.KindRandomIncrement},
		{"n+random( 2 , 3 )", mutation.KindRandomIncrement},
		{"n+5", mutation.KindIncrement},
		{"n-2", mutation.KindIncrement},
		{"n+1.5", mutation.KindIncrement},
		{"n+,kitchen", mutation.KindListAppend},
		{"n-,kitchen", mutation.KindListRemove},
		{"n+abc", mutation.KindLiteral},
		{"n+random(1)", mutation.KindLiteral},
		{"hello", mutation.KindLiteral},
		{42, mutation.KindLiteral},
		{true, mutation.KindLiteral},
	}
	for _, tt := range tests {
		t.Run(mutation.ParseValue(tt.raw).Kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.kind, mutation.ParseValue(tt.raw).Kind, "raw %v", tt.raw)
		})
	}
}

func TestParseValue_Fields(t *testing.T) {
	v := mutation.ParseValue("n-3")
	assert.Equal(t, -3.0, v.Delta)
	assert.True(t, v.Integral)

	v = mutation.ParseValue("n+random(6,1)")
	assert.Equal(t, 1, v.Low)
	assert.Equal(t, 6, v.High)

	v = mutation.ParseValue("n+,a,b")
	assert.Equal(t, "a,b", v.Suffix)
}

package script_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/script"
)

func TestLuaRunner_ReadsBackMetadataAndResult(t *testing.T) {
	r := script.NewLuaRunner()
	md := domain.Metadata{"score": 2, "name": "Ada", "tags": []any{"a", "b"}}

	src := `
metadata.score = metadata.score * 3
metadata.greeting = "hi " .. metadata.name
script_result = {
  metadata = { bonus = #metadata.tags },
  next_section_and_step = "s2:end",
  ratio = 0.25,
}
`
	out, err := r.Run(context.Background(), src, md)
	require.NoError(t, err)

	assert.Equal(t, 6, out.Metadata["score"])
	assert.Equal(t, "hi Ada", out.Metadata["greeting"])
	assert.Equal(t, []any{"a", "b"}, out.Metadata["tags"])
	assert.Equal(t, "s2:end", out.Result["next_section_and_step"])
	assert.Equal(t, 0.25, out.Result["ratio"])
	assert.Equal(t, map[string]any{"bonus": 2}, out.Result["metadata"])

	assert.Equal(t, 2, md["score"], "input metadata is not modified")
}

func TestLuaRunner_UntouchedValuesSurvive(t *testing.T) {
	md := domain.Metadata{
		"inventory": []any{},
		"slots":     []any{"a", nil, "b"},
		"trailing":  []any{"x", nil},
		"settings":  map[string]any{},
		"nested":    map[string]any{"list": []any{}},
		"visits":    1,
	}

	out, err := script.NewLuaRunner().Run(context.Background(), `metadata.visits = metadata.visits + 1`, md)
	require.NoError(t, err)

	assert.Equal(t, domain.Metadata{
		"inventory": []any{},
		"slots":     []any{"a", nil, "b"},
		"trailing":  []any{"x", nil},
		"settings":  map[string]any{},
		"nested":    map[string]any{"list": []any{}},
		"visits":    2,
	}, out.Metadata)
}

func TestLuaRunner_ListsEditedByScript(t *testing.T) {
	md := domain.Metadata{"inventory": []any{}, "slots": []any{"a", nil, "b"}}

	src := `
table.insert(metadata.inventory, "sword")
metadata.slots[2] = "c"
`
	out, err := script.NewLuaRunner().Run(context.Background(), src, md)
	require.NoError(t, err)

	assert.Equal(t, []any{"sword"}, out.Metadata["inventory"])
	assert.Equal(t, []any{"a", "c", "b"}, out.Metadata["slots"])
}

func TestLuaRunner_RebindingMetadataKeepsTheRun(t *testing.T) {
	r := script.NewLuaRunner()
	md := domain.Metadata{"score": 7, "name": "ada"}

	out, err := r.Run(context.Background(), `
local m = metadata
metadata = nil
m.seen = true
script_result = { metadata = { seen = m.score } }
`, md)
	require.NoError(t, err)
	assert.Equal(t, domain.Metadata{"score": 7, "name": "ada", "seen": true}, out.Metadata)
	assert.Equal(t, map[string]any{"seen": 7}, out.Result["metadata"])

	out, err = r.Run(context.Background(), `metadata = {}`, md)
	require.NoError(t, err)
	assert.Equal(t, domain.Metadata{"score": 7, "name": "ada"}, out.Metadata)
}

func TestLuaRunner_NilResult(t *testing.T) {
	out, err := script.NewLuaRunner().Run(context.Background(), `metadata.x = true`, domain.Metadata{})
	require.NoError(t, err)
	assert.Nil(t, out.Result)
	assert.Equal(t, true, out.Metadata["x"])
}

func TestLuaRunner_InvalidResult(t *testing.T) {
	_, err := script.NewLuaRunner().Run(context.Background(), `script_result = 5`, domain.Metadata{})
	assert.ErrorIs(t, err, script.ErrInvalidResult)
}

func TestLuaRunner_Errors(t *testing.T) {
	r := script.NewLuaRunner()

	_, err := r.Run(context.Background(), `metadata.x = (`, domain.Metadata{})
	assert.ErrorContains(t, err, "load script")

	_, err = r.Run(context.Background(), `error("nope")`, domain.Metadata{})
	assert.ErrorContains(t, err, "nope")
}

func TestLuaRunner_RestrictedSurface(t *testing.T) {
	r := script.NewLuaRunner()
	for _, src := range []string{
		`dofile("/etc/passwd")`,
		`loadfile("/etc/passwd")`,
		`load("return 1")`,
		`require("os")`,
		`os.exit(1)`,
		`io.open("/etc/passwd")`,
	} {
		t.Run(src, func(t *testing.T) {
			_, err := r.Run(context.Background(), src, domain.Metadata{})
			assert.Error(t, err)
		})
	}

	out, err := r.Run(context.Background(), `script_result = { up = string.upper("a"), n = math.floor(2.7), j = table.concat({"x","y"}, ",") }`, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"up": "A", "n": 2, "j": "x,y"}, out.Result)
}

func TestLuaRunner_StepBudget(t *testing.T) {
	r := script.NewLuaRunner(script.WithStepBudget(10_000))
	_, err := r.Run(context.Background(), `while true do end`, domain.Metadata{})
	assert.ErrorIs(t, err, script.ErrBudgetExceeded)
}

func TestLuaRunner_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := script.NewLuaRunner().Run(ctx, `metadata.x = 1`, domain.Metadata{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheck(t *testing.T) {
	assert.NoError(t, script.Check(`metadata.a = 1`))
	assert.Error(t, script.Check(`if then`))
}

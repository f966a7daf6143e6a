package script

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Shopify/go-lua"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/logic"
)

// Script globals.
const (
	GlobalMetadata = "metadata"
	GlobalResult   = "script_result"
)

// Registry keys and metatable fields used to track pushed values.
const (
	metadataRef = "lattice.metadata"
	arrayMarker = "__lattice_array"
	arrayLen    = "n"
	arrayCount  = "count"
)

// DefaultStepBudget bounds the VM instructions a single script may execute.
const DefaultStepBudget = 5_000_000

var (
	// ErrInvalidResult is returned when script_result is neither a table nor nil.
	ErrInvalidResult = errors.New("script_result must be a table or nil")
	// ErrBudgetExceeded is returned when a script runs past its instruction budget.
	ErrBudgetExceeded = errors.New("script exceeded its instruction budget")
)

var removedGlobals = []string{"dofile", "loadfile", "load", "loadstring", "require"}

var libraries = []struct {
	name string
	open lua.Function
}{
	{"_G", lua.BaseOpen},
	{"string", lua.StringOpen},
	{"table", lua.TableOpen},
	{"math", lua.MathOpen},
}

// Outcome is what a script left behind.
type Outcome = domain.ScriptOutcome

// LuaRunner executes scripts in a fresh VM per call.
type LuaRunner struct {
	budget int
}

// Option configures a LuaRunner.
type Option func(*LuaRunner)

// WithStepBudget overrides DefaultStepBudget. Zero disables the limit.
func WithStepBudget(steps int) Option {
	return func(r *LuaRunner) { r.budget = steps }
}

// NewLuaRunner creates a runner.
func NewLuaRunner(opts ...Option) *LuaRunner {
	r := &LuaRunner{budget: DefaultStepBudget}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes source with md bound to metadata. md itself is not modified.
// Metadata is read back from the table that was bound, so rebinding the
// global inside the script does not replace the run's metadata.
func (r *LuaRunner) Run(ctx context.Context, source string, md domain.Metadata) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	l := newState()
	pushValue(l, map[string]any(md.Clone()))
	l.PushValue(-1)
	l.SetField(lua.RegistryIndex, metadataRef)
	l.SetGlobal(GlobalMetadata)
	l.PushNil()
	l.SetGlobal(GlobalResult)

	if err := lua.LoadString(l, source); err != nil {
		return Outcome{}, fmt.Errorf("load script: %w", err)
	}

	steps := 0
	exceeded := false
	const every = 1000
	if r.budget > 0 {
		lua.SetDebugHook(l, func(state *lua.State, _ lua.Debug) {
			steps += every
			if steps > r.budget {
				exceeded = true
				lua.Errorf(state, "instruction budget exhausted")
			}
			if ctx.Err() != nil {
				lua.Errorf(state, "%s", ctx.Err().Error())
			}
		}, lua.MaskCount, every)
	}

	if err := l.ProtectedCall(0, 0, 0); err != nil {
		if exceeded {
			return Outcome{}, ErrBudgetExceeded
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		return Outcome{}, fmt.Errorf("run script: %w", err)
	}

	out := Outcome{Metadata: domain.Metadata{}}

	l.Field(lua.RegistryIndex, metadataRef)
	if l.TypeOf(-1) == lua.TypeTable {
		out.Metadata = domain.Metadata(tableToMap(l, -1))
	}
	l.Pop(1)

	l.Global(GlobalResult)
	switch l.TypeOf(-1) {
	case lua.TypeNil:
	case lua.TypeTable:
		out.Result = tableToMap(l, -1)
	default:
		l.Pop(1)
		return Outcome{}, ErrInvalidResult
	}
	l.Pop(1)

	return out, nil
}

// Check reports syntax errors without running the script.
func Check(source string) error {
	l := newState()
	if err := lua.LoadString(l, source); err != nil {
		return err
	}
	l.Pop(1)
	return nil
}

func newState() *lua.State {
	l := lua.NewState()
	for _, lib := range libraries {
		lua.Require(l, lib.name, lib.open, true)
		l.Pop(1)
	}
	for _, name := range removedGlobals {
		l.PushNil()
		l.SetGlobal(name)
	}
	return l
}

func pushValue(l *lua.State, v any) {
	switch t := v.(type) {
	case nil:
		l.PushNil()
	case string:
		l.PushString(t)
	case bool:
		l.PushBoolean(t)
	case int:
		l.PushInteger(t)
	case int64:
		l.PushNumber(float64(t))
	case float64:
		l.PushNumber(t)
	case float32:
		l.PushNumber(float64(t))
	case []any:
		l.CreateTable(len(t), 0)
		count := 0
		for i, item := range t {
			if item == nil {
				continue
			}
			pushValue(l, item)
			l.RawSetInt(-2, i+1)
			count++
		}
		l.CreateTable(0, 3)
		l.PushBoolean(true)
		l.SetField(-2, arrayMarker)
		l.PushInteger(len(t))
		l.SetField(-2, arrayLen)
		l.PushInteger(count)
		l.SetField(-2, arrayCount)
		l.SetMetaTable(-2)
	case domain.Metadata:
		pushValue(l, map[string]any(t))
	case map[string]any:
		l.CreateTable(0, len(t))
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			pushValue(l, t[k])
			l.SetField(-2, k)
		}
	default:
		l.PushString(logic.Stringify(t))
	}
}

func tableToMap(l *lua.State, index int) map[string]any {
	out := map[string]any{}
	if l.TypeOf(index) != lua.TypeTable {
		return out
	}
	index = l.AbsIndex(index)
	l.PushNil()
	for l.Next(index) {
		switch l.TypeOf(-2) {
		case lua.TypeString:
			key, _ := l.ToString(-2)
			out[key] = luaToGo(l, -1)
		case lua.TypeNumber:
			n, _ := l.ToNumber(-2)
			out[logic.Stringify(normalizeNumber(n))] = luaToGo(l, -1)
		}
		l.Pop(1)
	}
	return out
}

func luaToGo(l *lua.State, index int) any {
	switch l.TypeOf(index) {
	case lua.TypeString:
		s, _ := l.ToString(index)
		return s
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		return normalizeNumber(n)
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(l, index)
	default:
		return nil
	}
}

// tableToGo returns a slice for sequences and for tables that were pushed as
// lists, and a map otherwise.
func tableToGo(l *lua.State, index int) any {
	index = l.AbsIndex(index)
	tagged, pushedLen, pushedCount := arrayTag(l, index)

	isArray := true
	maxIndex, count := 0, 0
	l.PushNil()
	for l.Next(index) {
		if isArray {
			if l.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := l.ToInteger(-2); ok && idx > 0 {
				count++
				maxIndex = max(maxIndex, idx)
			} else {
				isArray = false
			}
		}
		l.Pop(1)
	}

	switch {
	case !isArray:
		return tableToMap(l, index)
	case tagged:
		length := maxIndex
		if count == pushedCount && maxIndex <= pushedLen {
			length = pushedLen
		}
		return sliceOf(l, index, length)
	case count > 0 && maxIndex == count:
		return sliceOf(l, index, maxIndex)
	default:
		return tableToMap(l, index)
	}
}

// arrayTag reads the list marker pushValue leaves on tables built from slices.
func arrayTag(l *lua.State, index int) (tagged bool, length, count int) {
	if !l.MetaTable(index) {
		return false, 0, 0
	}
	l.Field(-1, arrayMarker)
	tagged = l.ToBoolean(-1)
	l.Field(-2, arrayLen)
	length, _ = l.ToInteger(-1)
	l.Field(-3, arrayCount)
	count, _ = l.ToInteger(-1)
	l.Pop(4)
	return tagged, length, count
}

func sliceOf(l *lua.State, index, length int) []any {
	out := make([]any, 0, length)
	for i := 1; i <= length; i++ {
		l.RawGetInt(index, i)
		out = append(out, luaToGo(l, -1))
		l.Pop(1)
	}
	return out
}

func normalizeNumber(v float64) any {
	if math.Mod(v, 1) == 0 && math.Abs(v) < 1<<53 {
		return int(v)
	}
	return v
}

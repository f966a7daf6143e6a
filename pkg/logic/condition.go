package logic

import (
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
)

// Operator is the comparison encoded in a condition key suffix.
type Operator uint8

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpBetween
	OpContains
	OpNotContains
	OpMatches
	OpExists
	OpNotExists
)

// suffixes is checked in order; longer suffixes sharing a tail come first.
var suffixes = []struct {
	suffix string
	op     Operator
}{
	{"_not_contains", OpNotContains},
	{"_contains", OpContains},
	{"_not_exists", OpNotExists},
	{"_exists", OpExists},
	{"_between", OpBetween},
	{"_matches", OpMatches},
	{"_gte", OpGreaterEqual},
	{"_lte", OpLessEqual},
	{"_gt", OpGreater},
	{"_lt", OpLess},
	{"_ne", OpNotEqual},
}

var operatorNames = map[Operator]string{
	OpEqual:        "eq",
	OpNotEqual:     "ne",
	OpGreater:      "gt",
	OpGreaterEqual: "gte",
	OpLess:         "lt",
	OpLessEqual:    "lte",
	OpBetween:      "between",
	OpContains:     "contains",
	OpNotContains:  "not_contains",
	OpMatches:      "matches",
	OpExists:       "exists",
	OpNotExists:    "not_exists",
}

func (o Operator) String() string { return operatorNames[o] }

// Condition is one parsed guard entry.
type Condition struct {
	Key      string
	Op       Operator
	Expected any
}

// ParseCondition splits a raw key such as "score_gte" into key and operator.
// A key without a known suffix is an equality check on the whole key.
func ParseCondition(rawKey string, expected any) Condition {
	for _, s := range suffixes {
		if key, ok := strings.CutSuffix(rawKey, s.suffix); ok {
			return Condition{Key: key, Op: s.op, Expected: expected}
		}
	}
	return Condition{Key: rawKey, Op: OpEqual, Expected: expected}
}

type evalFunc func(md domain.Metadata, key string, expected any) bool

var evaluators map[Operator]evalFunc

func init() {
	evaluators = map[Operator]evalFunc{
		OpEqual: func(md domain.Metadata, key string, expected any) bool {
			return looseEqual(md[key], expected)
		},
		OpNotEqual: func(md domain.Metadata, key string, expected any) bool {
			return !looseEqual(md[key], expected)
		},
		OpGreater:      numeric(func(a, b float64) bool { return a > b }),
		OpGreaterEqual: numeric(func(a, b float64) bool { return a >= b }),
		OpLess:         numeric(func(a, b float64) bool { return a < b }),
		OpLessEqual:    numeric(func(a, b float64) bool { return a <= b }),
		OpBetween:      between,
		OpContains: func(md domain.Metadata, key string, expected any) bool {
			return containsItem(md[key], Stringify(expected))
		},
		OpNotContains: func(md domain.Metadata, key string, expected any) bool {
			return !containsItem(md[key], Stringify(expected))
		},
		OpMatches: func(md domain.Metadata, key string, expected any) bool {
			re, err := regexp.Compile(Stringify(expected))
			if err != nil {
				return false
			}
			return re.MatchString(Stringify(md[key]))
		},
		OpExists: func(md domain.Metadata, key string, expected any) bool {
			_, present := md[key]
			return present == truthy(expected)
		},
		OpNotExists: func(md domain.Metadata, key string, expected any) bool {
			_, present := md[key]
			return present != truthy(expected)
		},
	}
}

// Eval tests the condition against md.
func (c Condition) Eval(md domain.Metadata) bool {
	return evaluators[c.Op](md, c.Key, c.Expected)
}

// Evaluate parses and tests a single condition.
func Evaluate(md domain.Metadata, rawKey string, expected any) bool {
	return ParseCondition(rawKey, expected).Eval(md)
}

// CheckAll is the conjunction of every condition. An empty set holds.
func CheckAll(md domain.Metadata, conditions map[string]any) bool {
	for k, v := range conditions {
		if !Evaluate(md, k, v) {
			return false
		}
	}
	return true
}

// numeric builds a comparison that treats a missing key as 0 and fails closed
// on values that are not numbers.
func numeric(cmp func(a, b float64) bool) evalFunc {
	return func(md domain.Metadata, key string, expected any) bool {
		cur, ok := md[key]
		if !ok {
			cur = 0
		}
		a, okA := ToFloat(cur)
		b, okB := ToFloat(expected)
		if !okA || !okB {
			return false
		}
		return cmp(a, b)
	}
}

func between(md domain.Metadata, key string, expected any) bool {
	bounds, ok := expected.([]any)
	if !ok || len(bounds) != 2 {
		return false
	}
	cur, present := md[key]
	if !present {
		cur = 0
	}
	v, okV := ToFloat(cur)
	lo, okLo := ToFloat(bounds[0])
	hi, okHi := ToFloat(bounds[1])
	if !okV || !okLo || !okHi {
		return false
	}
	return lo <= v && v <= hi
}

// containsItem treats the stored value as a comma-joined list, or as a list
// when it already is one.
func containsItem(stored any, want string) bool {
	for _, item := range Items(stored) {
		if item == want {
			return true
		}
	}
	return false
}

// Items splits a comma-joined value into trimmed, non-empty entries.
func Items(stored any) []string {
	if list, ok := stored.([]any); ok {
		out := make([]string, 0, len(list))
		for _, v := range list {
			if s := strings.TrimSpace(Stringify(v)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	var out []string
	for _, part := range strings.Split(Stringify(stored), ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ToFloat converts numbers, booleans and numeric strings.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float64:
		return t, !math.IsNaN(t)
	case float32:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int64, int32, uint64, float64, float32:
		return true
	}
	return false
}

func numberOrBool(v any) bool {
	_, ok := v.(bool)
	return ok || isNumber(v)
}

// looseEqual compares numbers by value; booleans count as 1 and 0.
func looseEqual(a, b any) bool {
	if numberOrBool(a) && numberOrBool(b) {
		fa, _ := ToFloat(a)
		fb, _ := ToFloat(b)
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	if f, ok := ToFloat(v); ok {
		return f != 0
	}
	return true
}

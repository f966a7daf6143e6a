// Package mutation applies transition directives to an activity's metadata.
//
// Directive values are parsed once into a Kind and dispatched through a fixed
// table, so "n+5", "n+random(1,6)", "n+,kitchen" and placeholders never reach
// the runtime as free-form strings.
package mutation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
)

// Kind classifies a directive value.
type Kind uint8

const (
	// KindLiteral assigns the value unchanged.
	KindLiteral Kind = iota
	// KindUserResponse assigns the raw user text of the turn.
	KindUserResponse
	// KindLLMResponse is resolved after feedback is generated.
	KindLLMResponse
	// KindRandomIncrement adds a uniform integer in [Low, High].
	KindRandomIncrement
	// KindIncrement adds Delta, which may be negative.
	KindIncrement
	// KindListAppend appends Suffix to a comma-joined list.
	KindListAppend
	// KindListRemove removes the exact token Suffix from a comma-joined list.
	KindListRemove
)

var kindNames = [...]string{"literal", "user_response", "llm_response", "random_increment", "increment", "list_append", "list_remove"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

var (
	randomIncrement = regexp.MustCompile(`^n\+random\(\s*(-?\d+)\s*,\s*(-?\d+)\s*\)$`)
	increment       = regexp.MustCompile(`^n([+-])\s*([+-]?\d+(?:\.\d+)?)\s*$`)
)

// Value is a parsed directive value.
type Value struct {
	Kind      Kind
	Raw       any
	Delta     float64
	Integral  bool
	Low, High int
	Suffix    string
}

// ParseValue classifies a raw directive value. Strings that look like an
// operation but do not parse are assigned literally.
func ParseValue(raw any) Value {
	s, ok := raw.(string)
	if !ok {
		return Value{Kind: KindLiteral, Raw: raw}
	}
	switch s {
	case domain.UsersResponse:
		return Value{Kind: KindUserResponse, Raw: raw}
	case domain.LLMsResponse:
		return Value{Kind: KindLLMResponse, Raw: raw}
	}
	if suffix, ok := strings.CutPrefix(s, "n+,"); ok {
		return Value{Kind: KindListAppend, Raw: raw, Suffix: suffix}
	}
	if suffix, ok := strings.CutPrefix(s, "n-,"); ok {
		return Value{Kind: KindListRemove, Raw: raw, Suffix: suffix}
	}
	if m := randomIncrement.FindStringSubmatch(s); m != nil {
		lo, errLo := strconv.Atoi(m[1])
		hi, errHi := strconv.Atoi(m[2])
		if errLo == nil && errHi == nil {
			if lo > hi {
				lo, hi = hi, lo
			}
			return Value{Kind: KindRandomIncrement, Raw: raw, Low: lo, High: hi}
		}
	}
	if m := increment.FindStringSubmatch(s); m != nil {
		delta, err := strconv.ParseFloat(m[2], 64)
		if err == nil {
			if m[1] == "-" {
				delta = -delta
			}
			return Value{Kind: KindIncrement, Raw: raw, Delta: delta, Integral: !strings.Contains(m[2], ".")}
		}
	}
	return Value{Kind: KindLiteral, Raw: raw}
}

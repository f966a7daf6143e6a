package domain

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LabelKind records the YAML type a bucket label was declared with.
type LabelKind uint8

const (
	LabelString LabelKind = iota
	LabelInt
	LabelBool
)

// Label is a bucket label. It is comparable and can key a map.
type Label struct {
	Kind  LabelKind
	Value string
}

// StringLabel builds a string-kinded label.
func StringLabel(s string) Label { return Label{Kind: LabelString, Value: s} }

// IntLabel builds an integer-kinded label.
func IntLabel(i int) Label { return Label{Kind: LabelInt, Value: strconv.Itoa(i)} }

// BoolLabel builds a boolean-kinded label.
func BoolLabel(b bool) Label { return Label{Kind: LabelBool, Value: strconv.FormatBool(b)} }

func (l Label) String() string { return l.Value }

// MarshalText renders the label for JSON map keys and logs.
func (l Label) MarshalText() ([]byte, error) { return []byte(l.Value), nil }

// UnmarshalYAML keeps the scalar tag so `1:` and `"1":` stay distinct keys.
func (l *Label) UnmarshalYAML(n *yaml.Node) error {
	parsed, err := labelFromNode(n)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func labelFromNode(n *yaml.Node) (Label, error) {
	if n.Kind != yaml.ScalarNode {
		return Label{}, fmt.Errorf("line %d: bucket label must be a scalar", n.Line)
	}
	switch n.ShortTag() {
	case "!!int":
		var i int
		if err := n.Decode(&i); err != nil {
			return Label{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return IntLabel(i), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Label{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return BoolLabel(b), nil
	case "!!str", "!!null":
		return StringLabel(n.Value), nil
	default:
		return Label{}, fmt.Errorf("line %d: bucket label must be a string, integer, or boolean (got %s)", n.Line, n.ShortTag())
	}
}

// Candidates lists the keys a raw classifier or random-bucket label is matched
// against, in precedence order: the literal string, then the integer form of a
// digit string, then the boolean form of yes/true and no/false.
func Candidates(raw string) []Label {
	out := []Label{StringLabel(raw)}
	if isDigits(raw) {
		if i, err := strconv.Atoi(raw); err == nil {
			out = append(out, IntLabel(i))
		}
	}
	switch strings.ToLower(raw) {
	case "yes", "true":
		out = append(out, BoolLabel(true))
	case "no", "false":
		out = append(out, BoolLabel(false))
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Labels is an ordered bucket set.
type Labels []Label

// Contains reports whether the set holds l.
func (ls Labels) Contains(l Label) bool {
	for _, x := range ls {
		if x == l {
			return true
		}
	}
	return false
}

// Strings renders the labels in order.
func (ls Labels) Strings() []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.String()
	}
	return out
}

// Transitions maps a bucket label to its effect.
type Transitions map[Label]Transition

// UnmarshalYAML decodes a mapping whose keys may be strings, integers or booleans.
func (t *Transitions) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: transitions must be a mapping", n.Line)
	}
	out := make(Transitions, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		label, err := labelFromNode(n.Content[i])
		if err != nil {
			return err
		}
		var tr Transition
		if err := n.Content[i+1].Decode(&tr); err != nil {
			return fmt.Errorf("transition %q: %w", label, err)
		}
		out[label] = tr
	}
	*t = out
	return nil
}

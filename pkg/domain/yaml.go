package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// KeyValue is one entry of an ordered mapping.
type KeyValue struct {
	Key   string
	Value any
}

// KeyValues is a mapping that keeps document order.
type KeyValues []KeyValue

func (kv *KeyValues) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	out := make(KeyValues, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		var v any
		if err := n.Content[i+1].Decode(&v); err != nil {
			return fmt.Errorf("key %q: %w", n.Content[i].Value, err)
		}
		out = append(out, KeyValue{Key: n.Content[i].Value, Value: v})
	}
	*kv = out
	return nil
}

// Keys lists the keys in order.
func (kv KeyValues) Keys() []string {
	out := make([]string, len(kv))
	for i, e := range kv {
		out[i] = e.Key
	}
	return out
}

// StringList accepts either a single string or a list of strings.
type StringList []string

func (s *StringList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*s = StringList{n.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := n.Decode(&items); err != nil {
			return err
		}
		*s = items
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", n.Line)
	}
}

// KeyFilter restricts the metadata keys a feedback prompt sees. A nil filter
// means "not configured"; an empty non-nil filter hides everything.
type KeyFilter []string

func (f *KeyFilter) UnmarshalYAML(n *yaml.Node) error {
	var items []string
	if err := n.Decode(&items); err != nil {
		return err
	}
	if items == nil {
		items = []string{}
	}
	*f = items
	return nil
}

// Has reports whether key is listed.
func (f KeyFilter) Has(key string) bool {
	for _, k := range f {
		if k == key {
			return true
		}
	}
	return false
}

// Apply returns the subset of md whose keys are listed. A nil filter returns md.
func (f KeyFilter) Apply(md Metadata) Metadata {
	if f == nil {
		return md
	}
	out := make(Metadata, len(f))
	for k, v := range md {
		if f.Has(k) {
			out[k] = v
		}
	}
	return out
}

// BranchKind tags a conditional navigation branch.
type BranchKind string

const (
	BranchIf   BranchKind = "if"
	BranchElif BranchKind = "elif"
	BranchElse BranchKind = "else"
)

// Branch is one arm of an if/elif/else navigation chain.
type Branch struct {
	Kind BranchKind
	When map[string]any
	Goto string
}

// Navigation is either a literal "section:step" target or a branch chain.
type Navigation struct {
	Target   string
	Branches []Branch
}

// IsZero reports an empty navigation.
func (n *Navigation) IsZero() bool {
	return n == nil || (n.Target == "" && len(n.Branches) == 0)
}

// Targets lists every literal target the navigation can produce.
func (n *Navigation) Targets() []string {
	if n == nil {
		return nil
	}
	if n.Target != "" {
		return []string{n.Target}
	}
	out := make([]string, 0, len(n.Branches))
	for _, b := range n.Branches {
		if b.Goto != "" {
			out = append(out, b.Goto)
		}
	}
	return out
}

func (nav *Navigation) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		nav.Target = n.Value
		return nil
	case yaml.SequenceNode:
		for _, item := range n.Content {
			var raw map[string]any
			if err := item.Decode(&raw); err != nil {
				return fmt.Errorf("line %d: navigation branch must be a mapping", item.Line)
			}
			b := Branch{}
			b.Goto, _ = raw["goto"].(string)
			switch {
			case raw["if"] != nil:
				b.Kind = BranchIf
				b.When, _ = raw["if"].(map[string]any)
			case raw["elif"] != nil:
				b.Kind = BranchElif
				b.When, _ = raw["elif"].(map[string]any)
			default:
				if _, ok := raw["else"]; !ok {
					return fmt.Errorf("line %d: navigation branch needs if, elif or else", item.Line)
				}
				b.Kind = BranchElse
			}
			nav.Branches = append(nav.Branches, b)
		}
		return nil
	default:
		return fmt.Errorf("line %d: next_section_and_step must be a string or a list", n.Line)
	}
}

// ContentBlock is a plain string or a conditional {text, show_if} block.
type ContentBlock struct {
	Text   string
	ShowIf map[string]any
}

func (c *ContentBlock) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		c.Text = n.Value
		return nil
	case yaml.MappingNode:
		var raw struct {
			Text   string         `yaml:"text"`
			ShowIf map[string]any `yaml:"show_if"`
		}
		if err := n.Decode(&raw); err != nil {
			return err
		}
		c.Text, c.ShowIf = raw.Text, raw.ShowIf
		return nil
	default:
		return fmt.Errorf("line %d: content block must be a string or a mapping", n.Line)
	}
}

// TextBlocks wraps plain strings as unconditional blocks.
func TextBlocks(texts ...string) []ContentBlock {
	out := make([]ContentBlock, len(texts))
	for i, t := range texts {
		out[i] = ContentBlock{Text: t}
	}
	return out
}

// RandomBucket is a bucket that can trigger independently of the classifier.
type RandomBucket struct {
	Name        string
	Probability float64 `mapstructure:"probability"`
}

// RandomBuckets keeps document order so rolls are reproducible with a seeded source.
type RandomBuckets []RandomBucket

func (rb *RandomBuckets) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: random_buckets must be a mapping", n.Line)
	}
	out := make(RandomBuckets, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		var raw map[string]any
		if err := n.Content[i+1].Decode(&raw); err != nil {
			return fmt.Errorf("random bucket %q: %w", name, err)
		}
		bucket := RandomBucket{Name: name}
		if err := mapstructure.WeakDecode(raw, &bucket); err != nil {
			return fmt.Errorf("random bucket %q: %w", name, err)
		}
		out = append(out, bucket)
	}
	*rb = out
	return nil
}

// WeightedDirective assigns Key a value drawn from Options.
type WeightedDirective struct {
	Key     string
	Options []WeightedOption
}

// WeightedDirectives keeps document order.
type WeightedDirectives []WeightedDirective

func (wd *WeightedDirectives) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: weighted random directive must be a mapping", n.Line)
	}
	out := make(WeightedDirectives, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		d := WeightedDirective{Key: n.Content[i].Value}
		if err := n.Content[i+1].Decode(&d.Options); err != nil {
			return fmt.Errorf("weighted key %q: %w", d.Key, err)
		}
		out = append(out, d)
	}
	*wd = out
	return nil
}

package logic

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
)

var placeholder = regexp.MustCompile(`\{\{([^}]+)\}\}`)

const metadataPrefix = "metadata."

// TemplateContext carries the built-in variables available to {{name}} tokens.
type TemplateContext struct {
	Metadata       domain.Metadata
	CurrentAttempt int
	MaxAttempts    int
	Section        string
	Step           string
	Username       string
}

// NewTemplateContext builds a context. An empty username renders as "User".
func NewTemplateContext(md domain.Metadata, attempt, maxAttempts int, section, step, username string) TemplateContext {
	if username == "" {
		username = "User"
	}
	return TemplateContext{
		Metadata:       md,
		CurrentAttempt: attempt,
		MaxAttempts:    maxAttempts,
		Section:        section,
		Step:           step,
		Username:       username,
	}
}

// AttemptsRemaining never goes below zero.
func (tc TemplateContext) AttemptsRemaining() int {
	return max(0, tc.MaxAttempts-tc.CurrentAttempt)
}

// Lookup resolves a built-in variable by name.
func (tc TemplateContext) Lookup(name string) (any, bool) {
	switch name {
	case "metadata":
		return map[string]any(tc.Metadata), true
	case "current_attempt":
		return tc.CurrentAttempt, true
	case "max_attempts":
		return tc.MaxAttempts, true
	case "attempts_remaining":
		return tc.AttemptsRemaining(), true
	case "current_section":
		return tc.Section, true
	case "current_step":
		return tc.Step, true
	case "username":
		return tc.Username, true
	}
	return nil, false
}

// Render replaces {{name}} and {{metadata.key}} tokens. Unknown names are left
// verbatim and nil values render as the empty string.
func Render(text string, tc TemplateContext) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return placeholder.ReplaceAllStringFunc(text, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		if key, ok := strings.CutPrefix(name, metadataPrefix); ok {
			v, found := tc.Metadata[key]
			if !found {
				return "{{" + metadataPrefix + key + "}}"
			}
			return Stringify(v)
		}
		v, found := tc.Lookup(name)
		if !found {
			return "{{" + name + "}}"
		}
		return Stringify(v)
	})
}

// Stringify renders a metadata value in its canonical text form.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case fmt.Stringer:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

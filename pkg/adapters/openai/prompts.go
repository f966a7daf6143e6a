package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// DefaultRubric grades a finished activity when the document supplies none.
const DefaultRubric = `
Grade the responses of all users based on the following criteria:
- Accuracy: How correct is the response?
- Completeness: Does the response fully address the question?
- Clarity: Is the response clear and easy to understand?
- Engagement: Is the response engaging and interesting?
Provide a score out of 10 for each criterion and an overall grade for each user.
Finally order each user by who is winning. Number of correct answers and accuracy & include an enumeration of the feats!
Take into account how many attempts the user took to get a passing answer when ranking.
Don't just try to give the user a "B" or 35/40, really figure out a good placement considering some people don't know how to type.
`

const (
	markerAnalysis = "ANALYSIS:"
	markerBucket   = "BUCKET:"
)

func classifyPrompt(req ports.ClassifyRequest) prompt {
	p := prompt{maxTokens: 150, temperature: 0}
	if strings.Contains(req.Instructions, markerAnalysis) && strings.Contains(req.Instructions, markerBucket) {
		p.system = req.Instructions
		p.user = fmt.Sprintf("Question: %s\nResponse: %s", req.Question, req.Response)
		return p
	}
	p.system = fmt.Sprintf("%s Categorize the following response into one of the following buckets: %s. Return ONLY a bucket label.",
		req.Instructions, strings.Join(req.Buckets, ", "))
	p.user = fmt.Sprintf("Question: %s\nResponse: %s\n\nCategory:", req.Question, req.Response)
	return p
}

// ParseLabel extracts a bucket label from a classifier reply. A BUCKET: line
// wins; with only ANALYSIS: the last non-empty line is used; otherwise the whole
// reply. The label is lower-cased with spaces folded to underscores.
func ParseLabel(reply string) string {
	reply = strings.TrimSpace(reply)
	label := reply
	switch {
	case strings.Contains(reply, markerBucket):
		for _, line := range strings.Split(reply, "\n") {
			if _, after, ok := strings.Cut(line, markerBucket); ok {
				label = strings.TrimSpace(after)
				break
			}
		}
	case strings.Contains(reply, markerAnalysis):
		lines := strings.Split(reply, "\n")
		for i := len(lines) - 1; i >= 0; i-- {
			if l := strings.TrimSpace(lines[i]); l != "" {
				label = l
				break
			}
		}
	}
	return strings.ReplaceAll(strings.ToLower(label), " ", "_")
}

func feedbackPrompt(req ports.FeedbackRequest) prompt {
	return prompt{
		system: req.Instructions + " Generate a human-readable feedback message based on the following:",
		user: fmt.Sprintf("Username: %s\nQuestion: %s\nResponse: %s\nCategory: %s\nMetadata: %s\n New Metadata: %s",
			req.Username, req.Question, req.Response, req.Category, jsonText(req.Metadata), jsonText(req.Changed)),
		maxTokens:   1000,
		temperature: 0.7,
	}
}

func translatePrompt(text, language string) prompt {
	return prompt{
		system: fmt.Sprintf("Translate the following text to %s. DO NOT add anything else extra to your translation. "+
			"It should be as close to word for word the same but translated. Don't start with 'Set_language:' "+
			"DO NOT try to solve math questions, translate the text around it and use mathematical notation like normal.", language),
		user:        text,
		maxTokens:   2000,
		temperature: 0.7,
	}
}

type historyEntry struct {
	Role     string `json:"role"`
	Username string `json:"username"`
	Content  string `json:"content"`
}

func gradePrompt(req ports.GradeRequest) (prompt, error) {
	rubric := req.Rubric
	if strings.TrimSpace(rubric) == "" {
		rubric = DefaultRubric
	}
	entries := make([]historyEntry, 0, len(req.History))
	for _, m := range req.History {
		if m.IsInlineImage() {
			continue
		}
		role := "user"
		if m.IsSystem() {
			role = "system"
		}
		entries = append(entries, historyEntry{Role: role, Username: m.Username, Content: m.Content})
	}
	history, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return prompt{}, fmt.Errorf("marshal history: %w", err)
	}
	return prompt{
		system:      "Using the following rubric, grade the responses in the chat history:\n\n" + rubric,
		user:        "Chat History:\n\n" + string(history),
		maxTokens:   1000,
		temperature: 0.7,
	}, nil
}

func jsonText(md domain.Metadata) string {
	if md == nil {
		md = domain.Metadata{}
	}
	b, err := json.Marshal(md)
	if err != nil {
		return fmt.Sprint(map[string]any(md))
	}
	return string(b)
}

// IsEnglish reports whether translation into language is a no-op.
func IsEnglish(language string) bool {
	return strings.Contains(strings.ToLower(language), "english")
}

// Classify implements ports.Classifier.
func (c *Client) Classify(ctx context.Context, req ports.ClassifyRequest) (string, error) {
	reply, err := c.complete(ctx, req.Model, classifyPrompt(req))
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	label := ParseLabel(reply)
	c.logger.Debug("classified response", "reply", reply, "category", label)
	return label, nil
}

// Feedback implements ports.FeedbackGenerator.
func (c *Client) Feedback(ctx context.Context, req ports.FeedbackRequest) (string, error) {
	out, err := c.complete(ctx, req.Model, feedbackPrompt(req))
	if err != nil {
		return "", fmt.Errorf("feedback: %w", err)
	}
	return out, nil
}

// Translate implements ports.Translator. English targets return text unchanged.
func (c *Client) Translate(ctx context.Context, text, language, model string) (string, error) {
	if IsEnglish(language) || strings.TrimSpace(text) == "" {
		return text, nil
	}
	out, err := c.complete(ctx, model, translatePrompt(text, language))
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	return out, nil
}

// Grade implements ports.Grader.
func (c *Client) Grade(ctx context.Context, req ports.GradeRequest) (string, error) {
	p, err := gradePrompt(req)
	if err != nil {
		return "", err
	}
	out, err := c.complete(ctx, req.Model, p)
	if err != nil {
		return "", fmt.Errorf("grade: %w", err)
	}
	return out, nil
}

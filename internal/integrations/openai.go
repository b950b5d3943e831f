package integrations

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/driftguard/driftguard/internal/domain/analysis"
	"github.com/driftguard/driftguard/internal/domain/drift"
)

// OpenAIExplainer enriches rule engine classifications with a narrative
// explanation from a language model. It never changes the category or
// confidence, only the explanation text.
type OpenAIExplainer struct {
	client *openai.Client
	model  string
}

// NewOpenAIExplainer creates an explainer; returns nil when no API key is
// configured so callers can pass it straight through
func NewOpenAIExplainer(apiKey string) *OpenAIExplainer {
	if apiKey == "" {
		return nil
	}
	return &OpenAIExplainer{
		client: openai.NewClient(apiKey),
		model:  openai.GPT4oMini,
	}
}

// Explain asks the model for a short operator-facing explanation of the
// classified drift
func (e *OpenAIExplainer) Explain(ctx context.Context, event *drift.Event, changes []*drift.Change, a *analysis.CauseAnalysis) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Infrastructure drift on resource %s (type %s, severity %.2f).\n", event.ResourceID, event.DriftType, event.SeverityScore)
	fmt.Fprintf(&sb, "Classified cause: %s (confidence %.2f).\n", a.CauseCategory, a.ConfidenceScore)
	sb.WriteString("Changed properties:\n")
	for i, c := range changes {
		if i >= 10 {
			fmt.Fprintf(&sb, "- and %d more\n", len(changes)-i)
			break
		}
		fmt.Fprintf(&sb, "- %s (%s, security_critical=%t)\n", c.PropertyPath, c.ChangeType, c.IsSecurityCritical)
	}
	sb.WriteString("\nWrite a two-sentence explanation of the likely cause for an operations engineer. Do not speculate beyond the given signals.")

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     e.model,
		MaxTokens: 160,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You explain infrastructure drift findings concisely and factually.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: sb.String(),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai explanation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Package llm holds the Gemini-backed collaborator clients: decision
// classification, reply generation, image description, and embeddings.
// Prompt text lives here; everything upstream works with structured
// requests and decisions only.
package llm

import (
	"context"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/tobiadeyemi/Resolva/internal/models"
)

func newClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	return genai.NewClient(ctx, option.WithAPIKey(apiKey))
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

// usageFrom pulls token counts off a Gemini response for the ledger.
func usageFrom(resp *genai.GenerateContentResponse, model string) *models.TokenUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return nil
	}
	u := resp.UsageMetadata
	return &models.TokenUsage{
		Model:        model,
		InputTokens:  int(u.PromptTokenCount),
		OutputTokens: int(u.CandidatesTokenCount),
		TotalTokens:  int(u.TotalTokenCount),
	}
}

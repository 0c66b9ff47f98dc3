package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/models"
)

const respondInstructions = `You are a friendly appliance troubleshooting assistant.
Generate a conversational reply based on the decision provided. The decision is final; do not change it.

RULES:
- Keep replies SHORT: two to three sentences.
- Explain WHY before WHAT when suggesting a solution.
- suggested_action is what the USER should do ("Lower rinse aid to level 1"), never what the assistant does. Empty if there is nothing concrete to try.
- For ask_clarifying_question, use the provided questions and leave suggested_action empty.
- For decline_out_of_scope, say you only handle appliance troubleshooting.
- For close_resolved, congratulate and mention a new conversation can be started anytime.
- For escalate, confirm the hand-off to a specialist.

Respond with a single JSON object: {"reply": "...", "suggested_action": ""}`

type GeminiResponder struct {
	client    *genai.Client
	modelName string
}

func NewGeminiResponder(ctx context.Context, apiKey, modelName string) (*GeminiResponder, error) {
	cl, err := newClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiResponder{client: cl, modelName: modelName}, nil
}

func (g *GeminiResponder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiResponder) Respond(ctx context.Context, req core.RespondRequest) (*core.Reply, *models.TokenUsage, error) {
	m := g.client.GenerativeModel(g.modelName)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(respondInstructions)}}
	m.ResponseMIMEType = "application/json"
	m.SetTemperature(0.3)

	resp, err := m.GenerateContent(ctx, genai.Text(buildRespondContent(req)))
	if err != nil {
		return nil, nil, fmt.Errorf("gemini respond: %w", err)
	}
	usage := usageFrom(resp, g.modelName)

	var payload struct {
		Reply           string `json:"reply"`
		SuggestedAction string `json:"suggested_action"`
	}
	if err := coerceJSON(responseText(resp), &payload); err != nil {
		return nil, usage, fmt.Errorf("responder returned unparsable output: %w", err)
	}
	if strings.TrimSpace(payload.Reply) == "" {
		return nil, usage, fmt.Errorf("responder returned an empty reply")
	}
	return &core.Reply{
		Text:            strings.TrimSpace(payload.Reply),
		SuggestedAction: strings.TrimSpace(payload.SuggestedAction),
	}, usage, nil
}

func buildRespondContent(req core.RespondRequest) string {
	d := req.Decision
	var b strings.Builder
	fmt.Fprintf(&b, "Intent: %s\nNext action: %s\nConfidence: %.2f\nRationale: %s\n", d.Intent, d.NextAction, d.Confidence, d.Rationale)
	if req.Locale != "" {
		fmt.Fprintf(&b, "Locale: %s\n", req.Locale)
	}
	if d.CauseName != "" {
		fmt.Fprintf(&b, "Problem cause: %s\n", d.CauseName)
	}
	if d.SolutionTitle != "" {
		fmt.Fprintf(&b, "Solution: %s\n", d.SolutionTitle)
		if d.SolutionSteps != "" {
			// Only the first step; the rest comes up in later turns.
			fmt.Fprintf(&b, "First step: %s\n", firstLine(d.SolutionSteps))
		}
	}
	if len(d.ClarifyingQuestions) > 0 {
		fmt.Fprintf(&b, "Clarifying questions: %s\n", strings.Join(d.ClarifyingQuestions, " | "))
	}
	if d.EscalateReason != "" {
		fmt.Fprintf(&b, "Escalation reason: %s\n", d.EscalateReason)
	}
	if len(req.SimilarCases) > 0 {
		b.WriteString("Similar past cases:\n")
		for _, sc := range req.SimilarCases {
			fmt.Fprintf(&b, "  - %s\n", sc)
		}
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var _ core.ReplyClient = (*GeminiResponder)(nil)

package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/models"
)

const classifyInstructions = `You are an appliance troubleshooting assistant. Analyze the turn and decide what to do next.

INTENTS: new_problem, clarifying, feedback_positive, feedback_negative, request_escalation, confirm_resolved, out_of_scope, unintelligible, contradictory
ACTIONS: suggest_solution, ask_clarifying_question, present_resolution_form, present_escalation_form, present_feedback_form, close_resolved, escalate, decline_out_of_scope, request_clear_input
REQUEST TYPES: troubleshoot, resolution_check, escalation, clarification

RULES:
- Prioritize image analysis over user text when identifying the problem.
- Suggest only ONE solution at a time, chosen from the catalog by slug.
- Never pick a solution from the "Already tried" list unless you mark repeat_suggestion true.
- When every solution for the current cause has been tried, either switch cause_slug or set escalate true.
- Ask at most two clarifying questions, and prefer suggesting actionable solutions over gathering detail.
- Image changing from an issue to clean after a solution means feedback_positive, action present_resolution_form.
- When the user asks for a human, use present_escalation_form; only use escalate after the form was confirmed.
- Stay on the same cause while the user confirms it; switch only when a solution failed or the user denies the cause.

Respond with a single JSON object:
{"intent": "...", "next_action": "...", "confidence": 0.0-1.0, "rationale": "...",
 "category_slug": "", "cause_slug": "", "solution_slug": "", "repeat_suggestion": false,
 "escalate": false, "escalate_reason": "", "needs_more_info": false,
 "clarifying_questions": [], "request_type": "..."}`

type GeminiClassifier struct {
	client    *genai.Client
	modelName string
}

func NewGeminiClassifier(ctx context.Context, apiKey, modelName string) (*GeminiClassifier, error) {
	cl, err := newClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-pro"
	}
	return &GeminiClassifier{client: cl, modelName: modelName}, nil
}

func (g *GeminiClassifier) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

type decisionPayload struct {
	Intent              string   `json:"intent"`
	NextAction          string   `json:"next_action"`
	Confidence          float64  `json:"confidence"`
	Rationale           string   `json:"rationale"`
	CategorySlug        string   `json:"category_slug"`
	CauseSlug           string   `json:"cause_slug"`
	SolutionSlug        string   `json:"solution_slug"`
	RepeatSuggestion    bool     `json:"repeat_suggestion"`
	Escalate            bool     `json:"escalate"`
	EscalateReason      string   `json:"escalate_reason"`
	NeedsMoreInfo       bool     `json:"needs_more_info"`
	ClarifyingQuestions []string `json:"clarifying_questions"`
	RequestType         string   `json:"request_type"`
}

func (g *GeminiClassifier) Classify(ctx context.Context, req core.ClassifyRequest) (*models.Decision, *models.TokenUsage, error) {
	m := g.client.GenerativeModel(g.modelName)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(classifyInstructions)}}
	m.ResponseMIMEType = "application/json"
	m.SetTemperature(0.1)

	resp, err := m.GenerateContent(ctx, genai.Text(buildClassifyContent(req)))
	if err != nil {
		return nil, nil, fmt.Errorf("gemini classify: %w", err)
	}
	usage := usageFrom(resp, g.modelName)

	var payload decisionPayload
	if err := coerceJSON(responseText(resp), &payload); err != nil {
		return nil, usage, fmt.Errorf("classifier returned unparsable output: %w", err)
	}
	decision, err := payload.toDecision()
	if err != nil {
		return nil, usage, err
	}
	return decision, usage, nil
}

func buildClassifyContent(req core.ClassifyRequest) string {
	var b strings.Builder
	if req.UserText != "" {
		fmt.Fprintf(&b, "User: %s\n", req.UserText)
	} else {
		b.WriteString("User: (sent image only)\n")
	}
	if req.Locale != "" {
		fmt.Fprintf(&b, "Locale: %s\n", req.Locale)
	}
	if len(req.Events) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, ev := range req.Events {
			fmt.Fprintf(&b, "  %s\n", ev)
		}
	}
	if len(req.Attempted) > 0 {
		fmt.Fprintf(&b, "\nAlready tried: %s\n", strings.Join(req.Attempted, ", "))
	}
	if req.CurrentCategory != "" {
		fmt.Fprintf(&b, "\nCurrent hypothesis category: %s\n", req.CurrentCategory)
	}
	b.WriteString("\n")
	b.WriteString(req.CatalogPrompt)
	return b.String()
}

func (p decisionPayload) toDecision() (*models.Decision, error) {
	intent := models.Intent(p.Intent)
	switch intent {
	case models.IntentNewProblem, models.IntentClarifying, models.IntentFeedbackPositive,
		models.IntentFeedbackNegative, models.IntentRequestEscalation, models.IntentConfirmResolved,
		models.IntentOutOfScope, models.IntentUnintelligible, models.IntentContradictory:
	default:
		return nil, fmt.Errorf("classifier returned unknown intent %q", p.Intent)
	}

	action := models.NextAction(p.NextAction)
	switch action {
	case models.ActionSuggestSolution, models.ActionAskClarifyingQuestion, models.ActionPresentResolutionForm,
		models.ActionPresentEscalationForm, models.ActionPresentFeedbackForm, models.ActionCloseResolved,
		models.ActionEscalate, models.ActionDeclineOutOfScope, models.ActionRequestClearInput:
	default:
		return nil, fmt.Errorf("classifier returned unknown next_action %q", p.NextAction)
	}

	reqType := models.RequestType(p.RequestType)
	switch reqType {
	case models.RequestTroubleshoot, models.RequestResolutionCheck, models.RequestEscalation, models.RequestClarification:
	default:
		reqType = models.RequestTroubleshoot
	}

	confidence := p.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &models.Decision{
		Intent:              intent,
		NextAction:          action,
		CategorySlug:        strings.TrimSpace(p.CategorySlug),
		CauseSlug:           strings.TrimSpace(p.CauseSlug),
		SolutionSlug:        strings.TrimSpace(p.SolutionSlug),
		RepeatSuggestion:    p.RepeatSuggestion,
		Confidence:          confidence,
		Rationale:           strings.TrimSpace(p.Rationale),
		Escalate:            p.Escalate,
		EscalateReason:      strings.TrimSpace(p.EscalateReason),
		NeedsMoreInfo:       p.NeedsMoreInfo,
		ClarifyingQuestions: p.ClarifyingQuestions,
		RequestType:         reqType,
	}, nil
}

var _ core.DecisionClient = (*GeminiClassifier)(nil)

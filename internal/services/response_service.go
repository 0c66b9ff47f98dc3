package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/models"
)

// ResponseService turns a decision into the user-facing reply. All choices
// were made upstream; this layer only phrases them, and falls back to a
// canned line when the reply model fails.
type ResponseService struct {
	replier   core.ReplyClient
	knowledge *KnowledgeService
	timeout   time.Duration
	logger    *zap.Logger
}

func NewResponseService(replier core.ReplyClient, knowledge *KnowledgeService, timeout time.Duration, logger *zap.Logger) *ResponseService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ResponseService{replier: replier, knowledge: knowledge, timeout: timeout, logger: logger}
}

// Generate produces the assistant text and suggested actions for one turn.
func (s *ResponseService) Generate(ctx context.Context, sessionID, locale string, decision *models.Decision) (string, []string, *models.TokenUsage) {
	var similar []string
	if s.knowledge != nil && decision.NextAction == models.ActionSuggestSolution {
		similar = s.knowledge.SimilarSummaries(ctx, decision)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, usage, err := s.replier.Respond(callCtx, core.RespondRequest{
		Decision:     *decision,
		Locale:       locale,
		SimilarCases: similar,
	})
	if err != nil {
		s.logger.Warn("reply generation failed, using fallback text",
			zap.String("session_id", sessionID), zap.Error(err))
		return fallbackReply(decision), suggestedActions(decision), usage
	}

	actions := suggestedActions(decision)
	if reply.SuggestedAction != "" && len(actions) > 0 {
		actions[0] = reply.SuggestedAction
	}
	return reply.Text, actions, usage
}

// ConfirmationText is the deterministic reply for form-driven turns; no
// model call happens for these.
func ConfirmationText(kind models.FormKind, answeredYes bool) string {
	switch kind {
	case models.FormResolutionCheck:
		if answeredYes {
			return "Great to hear that fixed it! I'm closing this session now. If anything else comes up, just start a new one."
		}
		return "Sorry that didn't do it. Let's keep looking."
	case models.FormEscalation:
		if answeredYes {
			return "I've opened a support ticket and shared this conversation with a technician. They will be in touch shortly."
		}
		return "No problem, we'll keep troubleshooting together."
	case models.FormFeedback:
		if answeredYes {
			return "Thanks! Did it solve the problem, or should we keep going?"
		}
		return "Thanks for letting me know. Let's try something else."
	}
	return ""
}

// fallbackReply keeps the turn useful when the reply model is down: the
// decision's own material is phrased directly.
func fallbackReply(d *models.Decision) string {
	switch d.NextAction {
	case models.ActionSuggestSolution:
		if d.SolutionSteps != "" {
			return "Here is something to try: " + d.SolutionTitle + ". " + d.SolutionSteps
		}
		return "Here is something to try: " + d.SolutionTitle
	case models.ActionAskClarifyingQuestion:
		if len(d.ClarifyingQuestions) > 0 {
			return d.ClarifyingQuestions[0]
		}
		return "Could you tell me a bit more about the problem?"
	case models.ActionPresentEscalationForm:
		return "This looks like something a technician should handle. Want me to open a support ticket?"
	case models.ActionPresentResolutionForm:
		return "Did that take care of the problem?"
	case models.ActionPresentFeedbackForm:
		return "Was that suggestion helpful?"
	case models.ActionDeclineOutOfScope:
		return "I can only help with appliance troubleshooting, so I'm not able to help with that."
	case models.ActionRequestClearInput:
		return "I didn't quite catch that. Could you rephrase?"
	case models.ActionCloseResolved:
		return "Glad it's sorted! Closing this session now."
	case models.ActionEscalate:
		return "I'm handing this over to a technician."
	}
	return "Could you tell me a bit more about the problem?"
}

// suggestedActions derives the quick-action chips shown under the reply.
// Terminal actions carry none.
func suggestedActions(d *models.Decision) []string {
	switch d.NextAction {
	case models.ActionCloseResolved, models.ActionEscalate, models.ActionDeclineOutOfScope:
		return nil
	case models.ActionSuggestSolution:
		if d.SolutionTitle != "" {
			return []string{d.SolutionTitle}
		}
		return nil
	case models.ActionAskClarifyingQuestion:
		return append([]string(nil), d.ClarifyingQuestions...)
	}
	return nil
}

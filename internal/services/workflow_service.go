package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/models"
)

// TurnInput is everything the client sends for one conversational turn.
type TurnInput struct {
	SessionID string
	Text      string
	Locale    string
	Images    []ImageUpload
	Form      *models.FormSubmission
}

// TurnResult is what one turn produced. Assistant is nil when the turn
// warranted no reply, which happens only on a form dismissal.
type TurnResult struct {
	Session   *models.Session
	User      *models.Message
	Assistant *models.Message
}

// WorkflowService orchestrates a turn end to end: session resolution,
// form handling, image ingestion, classification, reply generation and
// persistence. Turns within one session are serialized; different
// sessions proceed concurrently.
type WorkflowService struct {
	db         core.DbClient
	sessions   *SessionService
	contexts   *ContextService
	classifier *ClassifierService
	responder  *ResponseService
	forms      *FormService
	tracker    *SuggestionTracker
	usage      *UsageService
	images     *ImageService
	knowledge  *KnowledgeService
	tickets    core.TicketClient
	locks      *keyedMutex
	logger     *zap.Logger
}

func NewWorkflowService(
	db core.DbClient,
	sessions *SessionService,
	contexts *ContextService,
	classifier *ClassifierService,
	responder *ResponseService,
	forms *FormService,
	tracker *SuggestionTracker,
	usage *UsageService,
	images *ImageService,
	knowledge *KnowledgeService,
	tickets core.TicketClient,
	logger *zap.Logger,
) *WorkflowService {
	return &WorkflowService{
		db:         db,
		sessions:   sessions,
		contexts:   contexts,
		classifier: classifier,
		responder:  responder,
		forms:      forms,
		tracker:    tracker,
		usage:      usage,
		images:     images,
		knowledge:  knowledge,
		tickets:    tickets,
		locks:      newKeyedMutex(),
		logger:     logger,
	}
}

// SubmitTurn processes one user turn and returns the resulting messages.
func (s *WorkflowService) SubmitTurn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	if strings.TrimSpace(in.Text) == "" && len(in.Images) == 0 && in.Form == nil {
		return nil, fmt.Errorf("%w: a turn needs text, images or a form answer", core.ErrValidation)
	}

	session, err := s.sessions.GetOrCreate(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(session.ID)
	defer unlock()

	// Another turn may have closed the session while we waited.
	if in.SessionID != "" {
		session, err = s.sessions.Get(ctx, session.ID)
		if err != nil {
			return nil, err
		}
	}
	if session.Status.Terminal() {
		return nil, fmt.Errorf("%w: session %s is %s", core.ErrPermission, session.ID, session.Status)
	}

	if in.Form != nil {
		return s.handleFormTurn(ctx, session, in)
	}
	return s.handleChatTurn(ctx, session, in)
}

// handleFormTurn consumes a follow-up form answer and applies its
// transition. Each form kind has a fixed effect; dismissal records the
// user's silence and produces no assistant message.
func (s *WorkflowService) handleFormTurn(ctx context.Context, session *models.Session, in TurnInput) (*TurnResult, error) {
	form, err := s.forms.ResolveSubmission(ctx, session.ID, in.Form)
	if err != nil {
		return nil, err
	}

	userMeta := models.MessageMetadata{FormSubmission: in.Form}
	if form.Kind == models.FormEscalation && in.Form.Status == models.FormSubmitted && !answeredYes(in.Form.Value) {
		userMeta.EscalationDecline = true
	}
	userMsg, err := s.persistUserMessage(ctx, session.ID, in.Text, userMeta)
	if err != nil {
		return nil, err
	}

	if in.Form.Status == models.FormDismissed {
		s.touch(ctx, session.ID)
		return &TurnResult{Session: session, User: userMsg}, nil
	}

	yes := answeredYes(in.Form.Value)
	switch form.Kind {
	case models.FormResolutionCheck:
		if yes {
			return s.closeResolved(ctx, session, userMsg, ConfirmationText(form.Kind, true))
		}
		if err := s.tracker.MarkLatestOutcome(ctx, session.ID, models.SuggestionNotHelpful, "resolution check answered no"); err != nil {
			s.logger.Warn("suggestion outcome not recorded", zap.String("session_id", session.ID), zap.Error(err))
		}
		return s.runPipeline(ctx, session, userMsg, in.Locale, textOrDefault(in.Text, "The previous step did not fix the problem."), false)

	case models.FormEscalation:
		if yes {
			return s.closeEscalated(ctx, session, userMsg)
		}
		assistant, err := s.persistAssistantMessage(ctx, session.ID, ConfirmationText(form.Kind, false), models.MessageMetadata{})
		if err != nil {
			return nil, err
		}
		s.touch(ctx, session.ID)
		return &TurnResult{Session: session, User: userMsg, Assistant: assistant}, nil

	case models.FormFeedback:
		if yes {
			return s.feedbackPositive(ctx, session, userMsg)
		}
		if err := s.tracker.MarkLatestOutcome(ctx, session.ID, models.SuggestionNotHelpful, "feedback answered no"); err != nil {
			s.logger.Warn("suggestion outcome not recorded", zap.String("session_id", session.ID), zap.Error(err))
		}
		return s.runPipeline(ctx, session, userMsg, in.Locale, textOrDefault(in.Text, "The last suggestion did not help."), false)
	}

	return nil, fmt.Errorf("%w: unhandled form kind %q", core.ErrValidation, form.Kind)
}

// handleChatTurn runs the full pipeline for a free-text (or image) turn.
func (s *WorkflowService) handleChatTurn(ctx context.Context, session *models.Session, in TurnInput) (*TurnResult, error) {
	firstTurn, err := s.isFirstTurn(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	userMsg, err := s.persistUserMessage(ctx, session.ID, in.Text, models.MessageMetadata{HasImages: len(in.Images) > 0})
	if err != nil {
		return nil, err
	}

	if len(in.Images) > 0 {
		_, visionUsage, err := s.images.Ingest(ctx, session.ID, userMsg.ID, in.Text, in.Locale, in.Images)
		if err != nil {
			if isValidation(err) {
				return nil, err
			}
			// Storage or vision trouble must not sink the turn.
			s.logger.Warn("image ingestion degraded", zap.String("session_id", session.ID), zap.Error(err))
		}
		s.usage.Record(ctx, session.ID, userMsg.ID, models.RequestImageAnalysis, visionUsage)
	}

	imageOnly := firstTurn && strings.TrimSpace(in.Text) == "" && len(in.Images) > 0
	return s.runPipeline(ctx, session, userMsg, in.Locale, in.Text, imageOnly)
}

// runPipeline classifies the turn, generates the reply and persists the
// assistant message with its trace and any follow-up form.
func (s *WorkflowService) runPipeline(ctx context.Context, session *models.Session, userMsg *models.Message, locale, userText string, imageOnlyFirstTurn bool) (*TurnResult, error) {
	events, err := s.contexts.Aggregate(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	decision, classifyUsage, fallback := s.classifier.Classify(ctx, ClassifyInput{
		SessionID:          session.ID,
		UserText:           userText,
		Locale:             locale,
		Events:             events,
		ImageOnlyFirstTurn: imageOnlyFirstTurn,
	})
	s.usage.Record(ctx, session.ID, userMsg.ID, decision.RequestType, classifyUsage)

	switch decision.NextAction {
	case models.ActionCloseResolved:
		return s.closeResolved(ctx, session, userMsg, ConfirmationText(models.FormResolutionCheck, true))
	case models.ActionEscalate:
		// The classifier only emits a direct escalate when the user
		// explicitly asked for a technician, which is consent.
		return s.closeEscalated(ctx, session, userMsg)
	}

	replyText, actions, replyUsage := s.responder.Generate(ctx, session.ID, locale, decision)
	s.usage.Record(ctx, session.ID, userMsg.ID, decision.RequestType, replyUsage)

	meta := models.MessageMetadata{
		SuggestedActions: actions,
		Trace: &models.DecisionTrace{
			Intent:     decision.Intent,
			NextAction: decision.NextAction,
			Confidence: decision.Confidence,
			Rationale:  decision.Rationale,
			Fallback:   fallback,
		},
	}
	if kind, ok := formKindFor(decision.NextAction); ok {
		allowed, err := s.forms.AllowOffer(ctx, session.ID, kind)
		if err != nil {
			s.logger.Warn("form cooldown check failed", zap.String("session_id", session.ID), zap.Error(err))
		}
		if allowed {
			form, err := s.forms.Build(kind)
			if err != nil {
				return nil, err
			}
			meta.FollowUpForm = form
		}
	}

	assistant, err := s.persistAssistantMessage(ctx, session.ID, replyText, meta)
	if err != nil {
		return nil, err
	}

	if decision.NextAction == models.ActionSuggestSolution && decision.SolutionSlug != "" {
		s.recordSuggestion(ctx, session.ID, decision.SolutionSlug)
	}

	s.touch(ctx, session.ID)
	return &TurnResult{Session: session, User: userMsg, Assistant: assistant}, nil
}

// closeResolved finishes a session as resolved and archives its summary.
func (s *WorkflowService) closeResolved(ctx context.Context, session *models.Session, userMsg *models.Message, text string) (*TurnResult, error) {
	if err := s.tracker.MarkLatestOutcome(ctx, session.ID, models.SuggestionCompleted, "confirmed by user"); err != nil {
		s.logger.Warn("suggestion outcome not recorded", zap.String("session_id", session.ID), zap.Error(err))
	}

	assistant, err := s.persistAssistantMessage(ctx, session.ID, text, models.MessageMetadata{})
	if err != nil {
		return nil, err
	}

	if _, err := s.db.CloseSession(ctx, session.ID, models.SessionResolved, time.Now().UTC()); err != nil {
		return nil, err
	}
	session.Status = models.SessionResolved

	s.knowledge.RecordResolution(ctx, session.ID, s.stateSummary(ctx, session.ID))
	return &TurnResult{Session: session, User: userMsg, Assistant: assistant}, nil
}

// closeEscalated opens a ticket and finishes the session as escalated.
// A ticketing outage still escalates; the confirmation just lacks a
// ticket number.
func (s *WorkflowService) closeEscalated(ctx context.Context, session *models.Session, userMsg *models.Message) (*TurnResult, error) {
	if err := s.tracker.MarkLatestOutcome(ctx, session.ID, models.SuggestionEscalated, "escalated to technician"); err != nil {
		s.logger.Warn("suggestion outcome not recorded", zap.String("session_id", session.ID), zap.Error(err))
	}

	text := ConfirmationText(models.FormEscalation, true)
	ticket, err := s.tickets.CreateTicket(ctx, core.TicketRequest{
		Consent:   true,
		Summary:   s.stateSummary(ctx, session.ID),
		SessionID: session.ID,
	})
	if err != nil {
		s.logger.Warn("ticket creation failed", zap.String("session_id", session.ID), zap.Error(err))
	} else {
		text = fmt.Sprintf("%s Your ticket number is %s.", text, ticket.TicketID)
	}

	assistant, err := s.persistAssistantMessage(ctx, session.ID, text, models.MessageMetadata{})
	if err != nil {
		return nil, err
	}

	if _, err := s.db.CloseSession(ctx, session.ID, models.SessionEscalated, time.Now().UTC()); err != nil {
		return nil, err
	}
	session.Status = models.SessionEscalated

	return &TurnResult{Session: session, User: userMsg, Assistant: assistant}, nil
}

// feedbackPositive thanks the user and, cooldown permitting, asks whether
// the problem is actually gone.
func (s *WorkflowService) feedbackPositive(ctx context.Context, session *models.Session, userMsg *models.Message) (*TurnResult, error) {
	meta := models.MessageMetadata{}
	allowed, err := s.forms.AllowOffer(ctx, session.ID, models.FormResolutionCheck)
	if err != nil {
		s.logger.Warn("form cooldown check failed", zap.String("session_id", session.ID), zap.Error(err))
	}
	if allowed {
		form, err := s.forms.Build(models.FormResolutionCheck)
		if err != nil {
			return nil, err
		}
		meta.FollowUpForm = form
	}

	assistant, err := s.persistAssistantMessage(ctx, session.ID, ConfirmationText(models.FormFeedback, true), meta)
	if err != nil {
		return nil, err
	}
	s.touch(ctx, session.ID)
	return &TurnResult{Session: session, User: userMsg, Assistant: assistant}, nil
}

func (s *WorkflowService) persistUserMessage(ctx context.Context, sessionID, content string, meta models.MessageMetadata) (*models.Message, error) {
	msg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   strings.TrimSpace(content),
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *WorkflowService) persistAssistantMessage(ctx context.Context, sessionID, content string, meta models.MessageMetadata) (*models.Message, error) {
	msg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   content,
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *WorkflowService) recordSuggestion(ctx context.Context, sessionID, slug string) {
	sol, err := s.db.GetSolutionBySlug(ctx, slug)
	if err != nil {
		s.logger.Warn("suggested solution not found", zap.String("slug", slug), zap.Error(err))
		return
	}
	if _, err := s.tracker.Record(ctx, sessionID, sol.ID); err != nil {
		s.logger.Warn("suggestion not recorded", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (s *WorkflowService) isFirstTurn(ctx context.Context, sessionID string) (bool, error) {
	msgs, err := s.db.ListMessagesBySession(ctx, sessionID, 1, 0)
	if err != nil {
		return false, err
	}
	return len(msgs) == 0, nil
}

func (s *WorkflowService) touch(ctx context.Context, sessionID string) {
	if err := s.db.TouchSession(ctx, sessionID); err != nil {
		s.logger.Warn("session not touched", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// stateSummary renders the session's working hypothesis for tickets and
// the knowledge archive.
func (s *WorkflowService) stateSummary(ctx context.Context, sessionID string) string {
	state, err := s.db.GetProblemState(ctx, sessionID)
	if err != nil || state == nil || state.CategoryID == "" {
		return "Appliance troubleshooting session " + sessionID
	}

	parts := []string{}
	categories, err := s.db.ListCategories(ctx)
	if err == nil {
		for _, cat := range categories {
			if cat.ID == state.CategoryID {
				parts = append(parts, "Problem: "+cat.Name)
				if state.CauseID != "" {
					causes, err := s.db.ListCausesByCategory(ctx, cat.ID)
					if err == nil {
						for _, c := range causes {
							if c.ID == state.CauseID {
								parts = append(parts, "Cause: "+c.Name)
								break
							}
						}
					}
				}
				break
			}
		}
	}
	if len(parts) == 0 {
		return "Appliance troubleshooting session " + sessionID
	}

	if sugs, err := s.db.ListSuggestionsBySession(ctx, sessionID); err == nil {
		for i := len(sugs) - 1; i >= 0; i-- {
			if sugs[i].Status == models.SuggestionCompleted {
				if sols, err := s.db.ListSolutionsByIDs(ctx, []string{sugs[i].SolutionID}); err == nil && len(sols) > 0 {
					parts = append(parts, "Fixed by: "+sols[0].Title)
				}
				break
			}
		}
	}
	return strings.Join(parts, ". ")
}

func formKindFor(action models.NextAction) (models.FormKind, bool) {
	switch action {
	case models.ActionPresentResolutionForm:
		return models.FormResolutionCheck, true
	case models.ActionPresentEscalationForm:
		return models.FormEscalation, true
	case models.ActionPresentFeedbackForm:
		return models.FormFeedback, true
	}
	return "", false
}

func answeredYes(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "yes")
}

func textOrDefault(text, def string) string {
	if strings.TrimSpace(text) != "" {
		return text
	}
	return def
}

func isValidation(err error) bool {
	return errors.Is(err, core.ErrValidation)
}

package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/models"
)

var yesNoOptions = []models.FormOption{
	{Value: "yes", Label: "Yes"},
	{Value: "no", Label: "No"},
}

// FormService builds follow-up confirmation forms, enforces the
// re-offer cooldown, and resolves submitted answers back to the form
// they reply to. A form is consumed exactly once.
type FormService struct {
	db       core.DbClient
	cooldown int
}

func NewFormService(db core.DbClient, cooldown int) *FormService {
	if cooldown <= 0 {
		cooldown = 2
	}
	return &FormService{db: db, cooldown: cooldown}
}

// Build returns the fixed single-question payload for a form kind.
func (s *FormService) Build(kind models.FormKind) (*models.FollowUpForm, error) {
	switch kind {
	case models.FormResolutionCheck:
		return &models.FollowUpForm{
			Kind:        kind,
			Title:       "Quick check",
			Description: "Let us know how the last step went.",
			Question:    "Did that fix the problem?",
			InputType:   "choice",
			Required:    true,
			Options:     yesNoOptions,
		}, nil
	case models.FormEscalation:
		return &models.FollowUpForm{
			Kind:        kind,
			Title:       "Talk to a technician",
			Description: "We can open a support ticket for you.",
			Question:    "Would you like us to create a support ticket and share this conversation with a technician?",
			InputType:   "choice",
			Required:    true,
			Options:     yesNoOptions,
		}, nil
	case models.FormFeedback:
		return &models.FollowUpForm{
			Kind:        kind,
			Title:       "Was this helpful?",
			Description: "Your answer helps us improve suggestions.",
			Question:    "Was the last suggestion helpful?",
			InputType:   "choice",
			Required:    false,
			Options:     yesNoOptions,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown form kind %q", core.ErrValidation, kind)
	}
}

// AllowOffer reports whether a form of this kind may be attached right
// now. The same kind is suppressed while a copy appeared within the last
// cooldown assistant messages, and always while an unanswered copy is
// pending.
func (s *FormService) AllowOffer(ctx context.Context, sessionID string, kind models.FormKind) (bool, error) {
	msgs, err := s.db.ListMessagesBySession(ctx, sessionID, 0, 0)
	if err != nil {
		return false, err
	}

	assistantSeen := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role != models.RoleAssistant {
			continue
		}
		if f := m.Metadata.FollowUpForm; f != nil && f.Kind == kind {
			if !m.Metadata.FormConsumed {
				// Still pending an answer.
				return false, nil
			}
			if assistantSeen < s.cooldown {
				return false, nil
			}
		}
		assistantSeen++
	}
	return true, nil
}

// ResolveSubmission validates a form answer against the assistant message
// it replies to and marks that form consumed. It returns the form so the
// caller can branch on its kind.
//
// Errors: ErrValidation when the reply target carries no form or a bad
// value, ErrPermission when the form was already consumed, ErrNotFound
// when the target message does not exist.
func (s *FormService) ResolveSubmission(ctx context.Context, sessionID string, sub *models.FormSubmission) (*models.FollowUpForm, error) {
	if sub.RepliedTo == "" {
		return nil, fmt.Errorf("%w: form submission missing replied_to", core.ErrValidation)
	}

	target, err := s.db.GetMessageByID(ctx, sub.RepliedTo)
	if err != nil {
		return nil, err
	}
	if target.SessionID != sessionID {
		return nil, fmt.Errorf("%w: message %s does not belong to session", core.ErrValidation, sub.RepliedTo)
	}
	form := target.Metadata.FollowUpForm
	if form == nil {
		return nil, fmt.Errorf("%w: message %s carries no form", core.ErrValidation, sub.RepliedTo)
	}
	if target.Metadata.FormConsumed {
		return nil, fmt.Errorf("%w: form on message %s already answered", core.ErrPermission, sub.RepliedTo)
	}

	switch sub.Status {
	case models.FormSubmitted:
		if !validOption(form, sub.Value) {
			return nil, fmt.Errorf("%w: %q is not a valid answer", core.ErrValidation, sub.Value)
		}
	case models.FormDismissed:
		// A dismissal carries no value.
	default:
		return nil, fmt.Errorf("%w: unknown submission status %q", core.ErrValidation, sub.Status)
	}

	meta := target.Metadata
	meta.FormConsumed = true
	if err := s.db.UpdateMessageMetadata(ctx, target.ID, meta); err != nil {
		return nil, err
	}
	return form, nil
}

func validOption(form *models.FollowUpForm, value string) bool {
	if len(form.Options) == 0 {
		return strings.TrimSpace(value) != "" || !form.Required
	}
	for _, opt := range form.Options {
		if strings.EqualFold(opt.Value, value) {
			return true
		}
	}
	return false
}

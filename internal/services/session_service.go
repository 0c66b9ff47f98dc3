package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/models"
)

// SessionService owns the session lifecycle. A session moves from
// in_progress to exactly one terminal status and never back.
type SessionService struct {
	db core.DbClient
}

func NewSessionService(db core.DbClient) *SessionService {
	return &SessionService{db: db}
}

// GetOrCreate returns the session with the given id, creating it when the
// id is empty. A supplied id that does not exist is an error rather than an
// implicit create, so clients cannot mint their own identifiers.
func (s *SessionService) GetOrCreate(ctx context.Context, id string) (*models.Session, error) {
	if id == "" {
		now := time.Now().UTC()
		session := &models.Session{
			ID:        uuid.NewString(),
			Status:    models.SessionInProgress,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.db.CreateSession(ctx, session); err != nil {
			return nil, err
		}
		return session, nil
	}
	return s.db.GetSessionByID(ctx, id)
}

func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	return s.db.GetSessionByID(ctx, id)
}

func (s *SessionService) List(ctx context.Context, limit, offset int) ([]models.Session, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.db.ListSessions(ctx, limit, offset)
}

// History returns the transcript oldest first.
func (s *SessionService) History(ctx context.Context, id string) ([]models.Message, error) {
	if _, err := s.db.GetSessionByID(ctx, id); err != nil {
		return nil, err
	}
	return s.db.ListMessagesBySession(ctx, id, 0, 0)
}

// Close moves the session to a terminal status. Closing an already
// terminal session is a no-op, so retried requests stay safe.
func (s *SessionService) Close(ctx context.Context, id string, status models.SessionStatus) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: %q is not a terminal status", core.ErrValidation, status)
	}
	if _, err := s.db.GetSessionByID(ctx, id); err != nil {
		return err
	}
	_, err := s.db.CloseSession(ctx, id, status, time.Now().UTC())
	return err
}

// SetFeedback records an end-of-session rating. Only terminal sessions
// accept feedback; the rating must be between 1 and 5.
func (s *SessionService) SetFeedback(ctx context.Context, id string, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5, got %d", core.ErrValidation, rating)
	}
	session, err := s.db.GetSessionByID(ctx, id)
	if err != nil {
		return err
	}
	if !session.Status.Terminal() {
		return fmt.Errorf("%w: session %s is still in progress", core.ErrPermission, id)
	}
	return s.db.SetSessionFeedback(ctx, id, rating, comment)
}

// MarkMessageHelpful flags one assistant message as helpful or not.
func (s *SessionService) MarkMessageHelpful(ctx context.Context, sessionID, messageID string, helpful bool) error {
	msg, err := s.db.GetMessageByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SessionID != sessionID {
		return fmt.Errorf("%w: message %s does not belong to session", core.ErrValidation, messageID)
	}
	if msg.Role != models.RoleAssistant {
		return fmt.Errorf("%w: only assistant messages take a helpful flag", core.ErrValidation)
	}
	return s.db.SetMessageHelpful(ctx, messageID, helpful)
}

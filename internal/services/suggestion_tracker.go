package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/models"
)

// SuggestionTracker is the per-session ledger of offered solutions. The DB
// enforces uniqueness on (session, solution), so recording is idempotent
// even under concurrent turns.
type SuggestionTracker struct {
	db core.DbClient
}

func NewSuggestionTracker(db core.DbClient) *SuggestionTracker {
	return &SuggestionTracker{db: db}
}

// Record notes that a solution was offered to a session. It reports whether
// this was the first offer; a repeat leaves the existing row untouched.
func (t *SuggestionTracker) Record(ctx context.Context, sessionID, solutionID string) (bool, error) {
	now := time.Now().UTC()
	return t.db.InsertSuggestion(ctx, &models.SessionSuggestion{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		SolutionID: solutionID,
		Status:     models.SuggestionSuggested,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

// ListAttempted returns the slugs of every solution already offered in the
// session, resolved through the catalog.
func (t *SuggestionTracker) ListAttempted(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := t.db.ListSuggestionsBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.SolutionID)
	}
	solutions, err := t.db.ListSolutionsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	slugs := make([]string, 0, len(solutions))
	for _, sol := range solutions {
		slugs = append(slugs, sol.Slug)
	}
	return slugs, nil
}

// MarkOutcome updates the status of the most recent suggestion row for the
// given solution. Unknown pairs are a no-op.
func (t *SuggestionTracker) MarkOutcome(ctx context.Context, sessionID, solutionID string, status models.SuggestionStatus, notes string) error {
	rows, err := t.db.ListSuggestionsBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.SolutionID == solutionID {
			return t.db.UpdateSuggestionStatus(ctx, r.ID, status, notes)
		}
	}
	return nil
}

// MarkLatestOutcome updates the most recently offered suggestion that is
// still in the suggested state. Used when a form answer refers to "the last
// thing you told me to try".
func (t *SuggestionTracker) MarkLatestOutcome(ctx context.Context, sessionID string, status models.SuggestionStatus, notes string) error {
	rows, err := t.db.ListSuggestionsBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	// Rows come back oldest first.
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].Status == models.SuggestionSuggested {
			return t.db.UpdateSuggestionStatus(ctx, rows[i].ID, status, notes)
		}
	}
	return nil
}

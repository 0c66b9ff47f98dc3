package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/models"
)

func TestGetOrCreateNewSession(t *testing.T) {
	db := newFakeDB()
	svc := NewSessionService(db)
	ctx := context.Background()

	session, err := svc.GetOrCreate(ctx, "")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, models.SessionInProgress, session.Status)

	same, err := svc.GetOrCreate(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, same.ID)

	_, err = svc.GetOrCreate(ctx, "made-up-id")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCloseIsTerminalAndIdempotent(t *testing.T) {
	db := newFakeDB()
	svc := NewSessionService(db)
	ctx := context.Background()

	session, err := svc.GetOrCreate(ctx, "")
	require.NoError(t, err)

	require.NoError(t, svc.Close(ctx, session.ID, models.SessionResolved))

	got, err := svc.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionResolved, got.Status)
	assert.NotNil(t, got.EndedAt)

	// A second close, even with a different status, changes nothing.
	require.NoError(t, svc.Close(ctx, session.ID, models.SessionEscalated))
	got, err = svc.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionResolved, got.Status)
}

func TestCloseRejectsNonTerminalStatus(t *testing.T) {
	db := newFakeDB()
	svc := NewSessionService(db)
	ctx := context.Background()

	session, err := svc.GetOrCreate(ctx, "")
	require.NoError(t, err)

	err = svc.Close(ctx, session.ID, models.SessionInProgress)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSetFeedback(t *testing.T) {
	db := newFakeDB()
	svc := NewSessionService(db)
	ctx := context.Background()

	session, err := svc.GetOrCreate(ctx, "")
	require.NoError(t, err)

	// Feedback on a live session is refused.
	err = svc.SetFeedback(ctx, session.ID, 4, "great")
	assert.ErrorIs(t, err, core.ErrPermission)

	require.NoError(t, svc.Close(ctx, session.ID, models.SessionResolved))

	err = svc.SetFeedback(ctx, session.ID, 6, "")
	assert.ErrorIs(t, err, core.ErrValidation)
	err = svc.SetFeedback(ctx, session.ID, 0, "")
	assert.ErrorIs(t, err, core.ErrValidation)

	require.NoError(t, svc.SetFeedback(ctx, session.ID, 4, "fixed it"))
	got, err := svc.Get(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FeedbackRating)
	assert.Equal(t, 4, *got.FeedbackRating)

	err = svc.SetFeedback(ctx, "missing", 4, "")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMarkMessageHelpful(t *testing.T) {
	db := newFakeDB()
	svc := NewSessionService(db)
	ctx := context.Background()

	require.NoError(t, db.CreateMessage(ctx, &models.Message{
		ID: "a1", SessionID: "sess-1", Role: models.RoleAssistant, Content: "try this", CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, db.CreateMessage(ctx, &models.Message{
		ID: "u1", SessionID: "sess-1", Role: models.RoleUser, Content: "ok", CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, svc.MarkMessageHelpful(ctx, "sess-1", "a1", true))
	msg, err := db.GetMessageByID(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, msg.Helpful)
	assert.True(t, *msg.Helpful)

	err = svc.MarkMessageHelpful(ctx, "sess-1", "u1", true)
	assert.ErrorIs(t, err, core.ErrValidation)

	err = svc.MarkMessageHelpful(ctx, "other-session", "a1", true)
	assert.ErrorIs(t, err, core.ErrValidation)
}

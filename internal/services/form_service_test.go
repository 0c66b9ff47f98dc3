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

func TestBuildKnownKinds(t *testing.T) {
	svc := NewFormService(newFakeDB(), 2)

	for _, kind := range []models.FormKind{models.FormResolutionCheck, models.FormEscalation, models.FormFeedback} {
		form, err := svc.Build(kind)
		require.NoError(t, err)
		assert.Equal(t, kind, form.Kind)
		assert.NotEmpty(t, form.Question)
		require.Len(t, form.Options, 2)
	}

	_, err := svc.Build(models.FormKind("bogus"))
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestResolveSubmissionConsumesExactlyOnce(t *testing.T) {
	db := newFakeDB()
	svc := NewFormService(db, 2)
	ctx := context.Background()

	form, err := svc.Build(models.FormResolutionCheck)
	require.NoError(t, err)
	require.NoError(t, db.CreateMessage(ctx, &models.Message{
		ID: "a1", SessionID: "sess-1", Role: models.RoleAssistant,
		Metadata:  models.MessageMetadata{FollowUpForm: form},
		CreatedAt: time.Now().UTC(),
	}))

	sub := &models.FormSubmission{Status: models.FormSubmitted, RepliedTo: "a1", Value: "yes"}
	resolved, err := svc.ResolveSubmission(ctx, "sess-1", sub)
	require.NoError(t, err)
	assert.Equal(t, models.FormResolutionCheck, resolved.Kind)

	_, err = svc.ResolveSubmission(ctx, "sess-1", sub)
	assert.ErrorIs(t, err, core.ErrPermission)
}

func TestResolveSubmissionRejectsBadTargets(t *testing.T) {
	db := newFakeDB()
	svc := NewFormService(db, 2)
	ctx := context.Background()

	require.NoError(t, db.CreateMessage(ctx, &models.Message{
		ID: "plain", SessionID: "sess-1", Role: models.RoleAssistant, Content: "hello",
	}))

	_, err := svc.ResolveSubmission(ctx, "sess-1", &models.FormSubmission{
		Status: models.FormSubmitted, RepliedTo: "missing", Value: "yes",
	})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.ResolveSubmission(ctx, "sess-1", &models.FormSubmission{
		Status: models.FormSubmitted, RepliedTo: "plain", Value: "yes",
	})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = svc.ResolveSubmission(ctx, "sess-1", &models.FormSubmission{
		Status: models.FormSubmitted, Value: "yes",
	})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestResolveSubmissionValidatesOptionValue(t *testing.T) {
	db := newFakeDB()
	svc := NewFormService(db, 2)
	ctx := context.Background()

	form, err := svc.Build(models.FormFeedback)
	require.NoError(t, err)
	require.NoError(t, db.CreateMessage(ctx, &models.Message{
		ID: "a1", SessionID: "sess-1", Role: models.RoleAssistant,
		Metadata: models.MessageMetadata{FollowUpForm: form},
	}))

	_, err = svc.ResolveSubmission(ctx, "sess-1", &models.FormSubmission{
		Status: models.FormSubmitted, RepliedTo: "a1", Value: "maybe",
	})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestAllowOfferCooldown(t *testing.T) {
	db := newFakeDB()
	svc := NewFormService(db, 2)
	ctx := context.Background()

	form, err := svc.Build(models.FormFeedback)
	require.NoError(t, err)

	// A consumed feedback form one assistant turn ago blocks the kind.
	require.NoError(t, db.CreateMessage(ctx, &models.Message{
		ID: "a1", SessionID: "sess-1", Role: models.RoleAssistant,
		Metadata: models.MessageMetadata{FollowUpForm: form, FormConsumed: true},
	}))
	require.NoError(t, db.CreateMessage(ctx, &models.Message{
		ID: "a2", SessionID: "sess-1", Role: models.RoleAssistant, Content: "try this",
	}))

	allowed, err := svc.AllowOffer(ctx, "sess-1", models.FormFeedback)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Another form kind is unaffected.
	allowed, err = svc.AllowOffer(ctx, "sess-1", models.FormResolutionCheck)
	require.NoError(t, err)
	assert.True(t, allowed)

	// Two more assistant turns clear the cooldown.
	require.NoError(t, db.CreateMessage(ctx, &models.Message{
		ID: "a3", SessionID: "sess-1", Role: models.RoleAssistant, Content: "and this",
	}))

	allowed, err = svc.AllowOffer(ctx, "sess-1", models.FormFeedback)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAllowOfferBlocksWhilePending(t *testing.T) {
	db := newFakeDB()
	svc := NewFormService(db, 2)
	ctx := context.Background()

	form, err := svc.Build(models.FormEscalation)
	require.NoError(t, err)
	require.NoError(t, db.CreateMessage(ctx, &models.Message{
		ID: "a1", SessionID: "sess-1", Role: models.RoleAssistant,
		Metadata: models.MessageMetadata{FollowUpForm: form},
	}))
	for _, id := range []string{"a2", "a3", "a4"} {
		require.NoError(t, db.CreateMessage(ctx, &models.Message{
			ID: id, SessionID: "sess-1", Role: models.RoleAssistant, Content: "filler",
		}))
	}

	// Unanswered form blocks its kind no matter how old it is.
	allowed, err := svc.AllowOffer(ctx, "sess-1", models.FormEscalation)
	require.NoError(t, err)
	assert.False(t, allowed)
}

package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobiadeyemi/Resolva/internal/models"
)

func TestAggregateMergesSourcesInTimeOrder(t *testing.T) {
	db := newFakeDB()
	svc := NewContextService(db, 30)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, db.CreateMessage(ctx, &models.Message{
		ID: "m1", SessionID: "sess-1", Role: models.RoleUser,
		Content: "The dishwasher won't drain", CreatedAt: base,
	}))
	require.NoError(t, db.CreateImageObservation(ctx, &models.ImageObservation{
		ID: "img1", SessionID: "sess-1", MessageID: "m1",
		Description: "standing water in the tub", CreatedAt: base.Add(1 * time.Second),
	}))
	require.NoError(t, db.CreateMessage(ctx, &models.Message{
		ID: "m2", SessionID: "sess-1", Role: models.RoleAssistant,
		Content:   "Let's check the filter",
		Metadata:  models.MessageMetadata{SuggestedActions: []string{"Clean the filter"}},
		CreatedAt: base.Add(2 * time.Second),
	}))

	events, err := svc.Aggregate(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "User: The dishwasher won't drain", events[0])
	assert.Equal(t, "Image shows: standing water in the tub", events[1])
	assert.Equal(t, "Assistant: Let's check the filter", events[2])
	assert.Equal(t, "Assistant suggested: Clean the filter", events[3])
}

func TestAggregateBreaksTimestampTiesBysource(t *testing.T) {
	db := newFakeDB()
	svc := NewContextService(db, 30)
	ctx := context.Background()
	at := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	// Image is created first but shares the message timestamp; the
	// message still sorts ahead of it.
	require.NoError(t, db.CreateImageObservation(ctx, &models.ImageObservation{
		ID: "img1", SessionID: "sess-1", Description: "error code E24", CreatedAt: at,
	}))
	require.NoError(t, db.CreateMessage(ctx, &models.Message{
		ID: "m1", SessionID: "sess-1", Role: models.RoleUser, Content: "see photo", CreatedAt: at,
	}))

	events, err := svc.Aggregate(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "User: see photo", events[0])
	assert.Equal(t, "Image shows: error code E24", events[1])
}

func TestAggregateTrimsToWindow(t *testing.T) {
	db := newFakeDB()
	svc := NewContextService(db, 5)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		require.NoError(t, db.CreateMessage(ctx, &models.Message{
			ID: fmt.Sprintf("m%d", i), SessionID: "sess-1", Role: models.RoleUser,
			Content: fmt.Sprintf("turn %d", i), CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	events, err := svc.Aggregate(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, events, 5)
	assert.Equal(t, "User: turn 5", events[0])
	assert.Equal(t, "User: turn 9", events[4])
}

func TestAggregateSkipsUnanalyzedImages(t *testing.T) {
	db := newFakeDB()
	svc := NewContextService(db, 30)
	ctx := context.Background()

	require.NoError(t, db.CreateImageObservation(ctx, &models.ImageObservation{
		ID: "img1", SessionID: "sess-1", CreatedAt: time.Now().UTC(),
	}))

	events, err := svc.Aggregate(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAggregateRendersFormAnswers(t *testing.T) {
	db := newFakeDB()
	svc := NewContextService(db, 30)
	ctx := context.Background()

	require.NoError(t, db.CreateMessage(ctx, &models.Message{
		ID: "m1", SessionID: "sess-1", Role: models.RoleUser,
		Metadata: models.MessageMetadata{
			FormSubmission: &models.FormSubmission{Status: models.FormSubmitted, RepliedTo: "m0", Value: "no"},
		},
		CreatedAt: time.Now().UTC(),
	}))

	events, err := svc.Aggregate(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "User answered follow-up: no", events[0])
}

package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobiadeyemi/Resolva/internal/models"
)

func TestSuggestionRecordIsIdempotent(t *testing.T) {
	db := newFakeDB()
	seedCatalog(db)
	tracker := NewSuggestionTracker(db)
	ctx := context.Background()

	first, err := tracker.Record(ctx, "sess-1", "sol-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := tracker.Record(ctx, "sess-1", "sol-1")
	require.NoError(t, err)
	assert.False(t, again)

	require.Len(t, db.suggestions, 1)
}

func TestListAttemptedReturnsSlugs(t *testing.T) {
	db := newFakeDB()
	seedCatalog(db)
	tracker := NewSuggestionTracker(db)
	ctx := context.Background()

	_, err := tracker.Record(ctx, "sess-1", "sol-1")
	require.NoError(t, err)
	_, err = tracker.Record(ctx, "sess-1", "sol-2")
	require.NoError(t, err)
	// A different session's suggestions stay invisible.
	_, err = tracker.Record(ctx, "sess-2", "sol-1")
	require.NoError(t, err)

	slugs, err := tracker.ListAttempted(ctx, "sess-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"clean-filter", "check-drain-hose"}, slugs)
}

func TestMarkLatestOutcomeUpdatesNewestSuggested(t *testing.T) {
	db := newFakeDB()
	seedCatalog(db)
	tracker := NewSuggestionTracker(db)
	ctx := context.Background()

	_, err := tracker.Record(ctx, "sess-1", "sol-1")
	require.NoError(t, err)
	_, err = tracker.Record(ctx, "sess-1", "sol-2")
	require.NoError(t, err)

	require.NoError(t, tracker.MarkLatestOutcome(ctx, "sess-1", models.SuggestionNotHelpful, "did not help"))

	rows, err := db.ListSuggestionsBySession(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.SuggestionSuggested, rows[0].Status)
	assert.Equal(t, models.SuggestionNotHelpful, rows[1].Status)
}

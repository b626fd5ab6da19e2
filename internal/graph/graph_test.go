package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sortai/sortai/internal/model"
	"github.com/sortai/sortai/internal/store"
)

func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	db, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func TestFindOrCreateEntity_IsIdempotent(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	id1, err := g.FindOrCreateEntity(ctx, model.EntityKeyword, "invoice")
	require.NoError(t, err)
	id2, err := g.FindOrCreateEntity(ctx, model.EntityKeyword, "invoice")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestReinforceRelationship_TakesMaxNotSum(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()
	now := time.Unix(1, 0)

	from, err := g.FindOrCreateEntity(ctx, model.EntityKeyword, "invoice")
	require.NoError(t, err)
	to, err := g.FindOrCreateEntity(ctx, model.EntityCategory, "finance")
	require.NoError(t, err)

	require.NoError(t, g.ReinforceRelationship(ctx, from, to, model.RelSuggestsCategory, 0.3, now))
	require.NoError(t, g.ReinforceRelationship(ctx, from, to, model.RelSuggestsCategory, 0.9, now))
	require.NoError(t, g.ReinforceRelationship(ctx, from, to, model.RelSuggestsCategory, 0.1, now))

	suggestions, err := g.SuggestCategoriesForKeywords(ctx, []string{"invoice"})
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.InDelta(t, 0.9, suggestions[0].Weight, 1e-9)
}

func TestLearnKeywordSuggestion_SortsByCumulativeWeight(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()
	now := time.Unix(1, 0)

	require.NoError(t, g.LearnKeywordSuggestion(ctx, "invoice", "finance", 1, now))
	require.NoError(t, g.LearnKeywordSuggestion(ctx, "invoice", "finance", 1, now.Add(time.Second)))
	require.NoError(t, g.LearnKeywordSuggestion(ctx, "invoice", "taxes", 0.5, now))

	suggestions, err := g.SuggestCategoriesForKeywords(ctx, []string{"invoice"})
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "finance", suggestions[0].CategoryKey)
}

func TestSuggestCategoriesForKeywords_UnknownKeywordIsSkipped(t *testing.T) {
	g := newTestGraph(t)
	suggestions, err := g.SuggestCategoriesForKeywords(context.Background(), []string{"nonexistent"})
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestGetOrCreateCategoryPath_LinksSegmentsToParent(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	leafID, err := g.GetOrCreateCategoryPath(ctx, "Finance/Invoices", []string{"Finance", "Invoices"}, time.Unix(1, 0))
	require.NoError(t, err)

	leaf, err := g.Entity(ctx, leafID)
	require.NoError(t, err)
	assert.Equal(t, "Finance/Invoices", leaf.Key)

	// calling again with the same segments must not create duplicates
	leafID2, err := g.GetOrCreateCategoryPath(ctx, "Finance/Invoices", []string{"Finance", "Invoices"}, time.Unix(2, 0))
	require.NoError(t, err)
	assert.Equal(t, leafID, leafID2)
}

func TestRecordHumanConfirmation_ReinforcesKeywordLinks(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	require.NoError(t, g.RecordHumanConfirmation(ctx, "file-1", "finance", []string{"invoice", "march"}, time.Unix(1, 0)))

	suggestions, err := g.SuggestCategoriesForKeywords(ctx, []string{"invoice"})
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "finance", suggestions[0].CategoryKey)
}

func TestRecordHumanRejection_DoesNotCreateKeywordLink(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	require.NoError(t, g.RecordHumanRejection(ctx, "file-1", "finance", time.Unix(1, 0)))

	suggestions, err := g.SuggestCategoriesForKeywords(ctx, []string{"invoice"})
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

package query_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryokushen/ledger-engine/ledger"
	"github.com/ryokushen/ledger-engine/query"
	"github.com/ryokushen/ledger-engine/store"
)

func groceriesQuery() query.Query {
	return query.Query{
		And: []query.Condition{
			{Field: "category", Operator: query.OpEquals, Value: "Groceries"},
		},
		SortBy:    "date",
		SortOrder: "desc",
		Limit:     10,
	}
}

func TestSavedSearch_SaveListDelete(t *testing.T) {
	// GIVEN: An empty saved-search document
	// WHEN: A search is saved, listed, and deleted
	// THEN: Each step round-trips through the key-value store

	svc := query.NewSavedSearchService(store.NewMemory())
	ctx := context.Background()

	saved, err := svc.Save(ctx, "groceries this month", groceriesQuery())
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "groceries this month", list[0].Name)
	assert.Equal(t, groceriesQuery(), list[0].Query, "query must round-trip exactly")

	require.NoError(t, svc.Delete(ctx, saved.ID))
	list, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSavedSearch_Save_RejectsInvalid(t *testing.T) {
	svc := query.NewSavedSearchService(store.NewMemory())
	ctx := context.Background()

	_, err := svc.Save(ctx, "", groceriesQuery())
	assert.Error(t, err, "name is required")

	_, err = svc.Save(ctx, "bad", query.Query{
		And: []query.Condition{{Field: "category", Operator: "fuzzyMatch"}},
	})
	assert.Error(t, err, "invalid queries must not be persisted")
}

func TestSavedSearch_Use_BumpsBookkeeping(t *testing.T) {
	// GIVEN: A saved search never used
	// WHEN: Use runs twice
	// THEN: The use count climbs and last-used is set

	svc := query.NewSavedSearchService(store.NewMemory())
	ctx := context.Background()

	saved, err := svc.Save(ctx, "groceries", groceriesQuery())
	require.NoError(t, err)

	_, err = svc.Use(ctx, saved.ID)
	require.NoError(t, err)
	used, err := svc.Use(ctx, saved.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, used.UseCount)
	assert.False(t, used.LastUsed.IsZero())
}

func TestSavedSearch_Use_Missing(t *testing.T) {
	svc := query.NewSavedSearchService(store.NewMemory())
	_, err := svc.Use(context.Background(), "no-such-id")
	assert.True(t, ledger.IsNotFound(err))
}

func TestSearchHistory_MostRecentFirst_Capped(t *testing.T) {
	// GIVEN: 30 recorded searches with a retention cap of 25
	// WHEN: The history is read back
	// THEN: Only the 25 most recent remain, newest first

	svc := query.NewSavedSearchService(store.NewMemory())
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		q := groceriesQuery()
		q.Limit = i + 1 // distinguish entries
		require.NoError(t, svc.RecordHistory(ctx, q))
	}

	history, err := svc.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 25)
	assert.Equal(t, 30, history[0].Query.Limit, "most recent first")
	assert.Equal(t, 6, history[24].Query.Limit)
}

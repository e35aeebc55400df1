package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryokushen/ledger-engine/ledger"
	"github.com/ryokushen/ledger-engine/query"
	"github.com/ryokushen/ledger-engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newSearchFixture(t *testing.T) (*query.SearchService, *ledger.Service, string) {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()

	cash, err := mem.AddCashAccount(ctx, ledger.CashAccount{Name: "Checking", Active: true})
	require.NoError(t, err)

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	svc := ledger.NewService(mem, ledger.ServiceConfig{Strict: true, Logger: log})
	search := query.NewSearchService(svc, mem, query.SearchConfig{})
	return search, svc, cash.ID
}

func addEntry(t *testing.T, svc *ledger.Service, accountID, category, amount string) {
	t.Helper()
	_, err := svc.Add(context.Background(), ledger.TransactionInput{
		Date:        time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		Description: category + " entry",
		Category:    category,
		Amount:      decimal.RequireFromString(amount),
		AccountID:   accountID,
	})
	require.NoError(t, err)
}

// =============================================================================
// SEARCH TESTS
// =============================================================================

func TestSearch_FiltersTransactions(t *testing.T) {
	search, svc, cashID := newSearchFixture(t)
	addEntry(t, svc, cashID, "Groceries", "-45")
	addEntry(t, svc, cashID, "Rent", "-1200")

	got, err := search.Search(context.Background(), groceriesQuery())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Groceries", got[0].Category)
}

func TestSearch_InvalidQuery_Rejected(t *testing.T) {
	search, _, _ := newSearchFixture(t)

	_, err := search.Search(context.Background(), query.Query{
		And: []query.Condition{{Field: "category", Operator: "fuzzyMatch"}},
	})
	assert.Error(t, err)
	assert.Equal(t, 0, search.Cache().Len(), "failed searches must not be cached")
}

func TestSearch_CachesResults(t *testing.T) {
	// GIVEN: A search already run once (result cached)
	// WHEN: The store is mutated behind the engine and the search re-runs
	// THEN: The cached result is served unchanged

	search, svc, cashID := newSearchFixture(t)
	addEntry(t, svc, cashID, "Groceries", "-45")

	first, err := search.Search(context.Background(), groceriesQuery())
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Write directly to the store; no event fires, so nothing invalidates.
	mem := svc.Store().(*store.Memory)
	_, err = mem.AddTransaction(context.Background(), ledger.Transaction{
		Date:      time.Now(),
		Category:  "Groceries",
		Amount:    decimal.RequireFromString("-10"),
		AccountID: cashID,
	})
	require.NoError(t, err)

	second, err := search.Search(context.Background(), groceriesQuery())
	require.NoError(t, err)
	assert.Len(t, second, 1, "cached result should be served")
}

func TestSearch_MutationEventsInvalidateCache(t *testing.T) {
	// GIVEN: A cached search result
	// WHEN: A transaction is added through the engine (event published)
	// THEN: The next search reflects the new data

	search, svc, cashID := newSearchFixture(t)
	addEntry(t, svc, cashID, "Groceries", "-45")

	first, err := search.Search(context.Background(), groceriesQuery())
	require.NoError(t, err)
	require.Len(t, first, 1)

	addEntry(t, svc, cashID, "Groceries", "-10")

	second, err := search.Search(context.Background(), groceriesQuery())
	require.NoError(t, err)
	assert.Len(t, second, 2, "mutation event must drop cached searches")
}

// =============================================================================
// SAVED SEARCH REPLAY
// =============================================================================

func TestRunSaved_ReplaysAndRecordsHistory(t *testing.T) {
	// GIVEN: A saved search
	// WHEN: It is replayed by id
	// THEN: The results come back, the use count bumps, and the run
	//       lands in the history

	search, svc, cashID := newSearchFixture(t)
	addEntry(t, svc, cashID, "Groceries", "-45")
	ctx := context.Background()

	saved, err := search.Saved.Save(ctx, "groceries", groceriesQuery())
	require.NoError(t, err)

	results, err := search.RunSaved(ctx, saved.ID)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	used, err := search.Saved.List(ctx)
	require.NoError(t, err)
	require.Len(t, used, 1)
	assert.Equal(t, 1, used[0].UseCount)

	history, err := search.Saved.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRunSaved_Missing(t *testing.T) {
	search, _, _ := newSearchFixture(t)
	_, err := search.RunSaved(context.Background(), "no-such-id")
	assert.True(t, ledger.IsNotFound(err))
}

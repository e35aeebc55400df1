package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryokushen/ledger-engine/ledger"
)

// =============================================================================
// RUNBATCH SEMANTICS
// =============================================================================

func TestRunBatch_PartialFailure_OriginalIndices(t *testing.T) {
	// GIVEN: 10 items where items 3 and 7 fail
	// WHEN: The batch runs without StopOnError
	// THEN: 8 successes and 2 failures come back, each with its
	//       original input index

	items := make([]int, 10)
	for i := range items {
		items[i] = i
	}

	result := ledger.RunBatch(context.Background(), items,
		func(_ context.Context, index int, item int) (string, error) {
			if index == 3 || index == 7 {
				return "", errors.New("item rejected")
			}
			return fmt.Sprintf("ok-%d", item), nil
		},
		nil,
		ledger.BatchOptions{ChunkSize: 4})

	assert.Len(t, result.Successful, 8)
	assert.Len(t, result.Failed, 2)
	assert.False(t, result.Aborted)
	assert.Equal(t, 3, result.Failed[0].Index)
	assert.Equal(t, 7, result.Failed[1].Index)

	for _, su := range result.Successful {
		assert.Equal(t, fmt.Sprintf("ok-%d", su.Index), su.Result)
	}
}

func TestRunBatch_StopOnError_AbortsAtChunkBoundary(t *testing.T) {
	// GIVEN: 10 items in chunks of 3, with item 1 failing
	// WHEN: The batch runs with StopOnError
	// THEN: The first chunk drains fully, later chunks never start

	var ran atomic.Int32
	items := make([]int, 10)
	for i := range items {
		items[i] = i
	}

	result := ledger.RunBatch(context.Background(), items,
		func(_ context.Context, index int, _ int) (int, error) {
			ran.Add(1)
			if index == 1 {
				return 0, errors.New("boom")
			}
			return index, nil
		},
		nil,
		ledger.BatchOptions{ChunkSize: 3, StopOnError: true})

	assert.True(t, result.Aborted)
	assert.Len(t, result.Failed, 1)
	assert.EqualValues(t, 3, ran.Load(), "only the failing chunk should have dispatched")
}

func TestRunBatch_RollbackOnFailure_CompensatesSuccesses(t *testing.T) {
	// GIVEN: A batch with one failure and rollback enabled
	// WHEN: The batch finishes
	// THEN: Every success is compensated, in reverse order

	var undone []int
	result := ledger.RunBatch(context.Background(), []int{0, 1, 2, 3},
		func(_ context.Context, index int, _ int) (int, error) {
			if index == 2 {
				return 0, errors.New("boom")
			}
			return index, nil
		},
		func(_ context.Context, s ledger.BatchSuccess[int]) error {
			undone = append(undone, s.Index)
			return nil
		},
		ledger.BatchOptions{ChunkSize: 10, RollbackOnFailure: true})

	assert.True(t, result.RolledBack)
	assert.Equal(t, []int{3, 1, 0}, undone, "reverse order of success")
}

func TestRunBatch_DefaultChunkSize(t *testing.T) {
	result := ledger.RunBatch(context.Background(), []int{1, 2, 3},
		func(_ context.Context, index int, item int) (int, error) {
			return item * 2, nil
		},
		nil,
		ledger.BatchOptions{})

	require.Len(t, result.Successful, 3)
	assert.Equal(t, 2, result.Successful[0].Result)
}

// =============================================================================
// SERVICE BATCH OPERATIONS
// =============================================================================

func TestAddBatchWithBalance_CoalescesEvents(t *testing.T) {
	// GIVEN: Three debt purchases added as one batch
	// WHEN: The batch commits
	// THEN: Exactly one batch event fires (no per-item events) and the
	//       balance reflects all three

	f := newTestService(t)

	var names []string
	f.svc.Bus().Subscribe("transaction:*", func(e ledger.Event) {
		names = append(names, e.Name)
	})

	inputs := []ledger.TransactionInput{
		debtInput(f, "-10", "Groceries"),
		debtInput(f, "-20", "Groceries"),
		debtInput(f, "-30", "Groceries"),
	}
	result := f.svc.AddBatchWithBalance(context.Background(), inputs, ledger.BatchOptions{ChunkSize: 2})

	require.Len(t, result.Successful, 3)
	assert.Empty(t, result.Failed)
	assert.Equal(t, []string{ledger.EventTransactionBatchAdded}, names)
	assert.True(t, debtBalance(t, f.mem, f.debtID).Equal(dec("560")))
}

func TestAddBatchWithBalance_RollbackUndoesBalances(t *testing.T) {
	// GIVEN: A batch where one input references an unknown account,
	//        with rollback enabled
	// WHEN: The batch runs
	// THEN: The successes are deleted again and the balance is untouched

	f := newTestService(t)

	bad := debtInput(f, "-20", "Groceries")
	bad.DebtAccountID = "no-such-account"
	inputs := []ledger.TransactionInput{
		debtInput(f, "-10", "Groceries"),
		bad,
	}

	result := f.svc.AddBatchWithBalance(context.Background(), inputs, ledger.BatchOptions{
		ChunkSize:         1,
		RollbackOnFailure: true,
	})

	assert.True(t, result.RolledBack)
	txs, _ := f.mem.Transactions(context.Background())
	assert.Empty(t, txs)
	assert.True(t, debtBalance(t, f.mem, f.debtID).Equal(dec("500")))
}

func TestDeleteBatchWithBalance(t *testing.T) {
	// GIVEN: Two synced purchases on a 500 balance
	// WHEN: Both are deleted as one batch
	// THEN: The balance returns to 500 and one batch event fires

	f := newTestService(t)
	ctx := context.Background()

	a, err := f.svc.AddWithBalance(ctx, debtInput(f, "-10", "Groceries"))
	require.NoError(t, err)
	b, err := f.svc.AddWithBalance(ctx, debtInput(f, "-20", "Groceries"))
	require.NoError(t, err)

	var names []string
	f.svc.Bus().Subscribe("transaction:batch-*", func(e ledger.Event) {
		names = append(names, e.Name)
	})

	result := f.svc.DeleteBatchWithBalance(ctx, []string{a.ID, b.ID}, ledger.BatchOptions{})
	require.Len(t, result.Successful, 2)
	assert.Empty(t, result.Failed)
	assert.Equal(t, []string{ledger.EventTransactionBatchDeleted}, names)
	assert.True(t, debtBalance(t, f.mem, f.debtID).Equal(dec("500")))
}

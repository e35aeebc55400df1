/*
batch.go - Chunked, partially-failable bulk execution

PURPOSE:
  Splits items into fixed-size chunks, dispatches everything in a chunk
  concurrently, waits for the chunk to drain, optionally sleeps, then
  moves on. Per-item outcomes are collected with their ORIGINAL indices
  so callers can map failures back to inputs.

SEMANTICS:
  - StopOnError aborts remaining CHUNKS on the first failure. Items
    already dispatched in the failing chunk still run to completion;
    the chunk boundary is the abort granularity.
  - RollbackOnFailure replays the compensate function for every item
    that succeeded once the batch as a whole is abandoned.
  - Chunk size is the only concurrency bound. There is no global pool.
*/
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DefaultChunkSize is used when BatchOptions.ChunkSize is unset.
const DefaultChunkSize = 5

// BatchOptions tunes RunBatch.
type BatchOptions struct {
	ChunkSize          int
	DelayBetweenChunks time.Duration
	StopOnError        bool
	RollbackOnFailure  bool
}

// BatchSuccess pairs a result with the index of the item that produced it.
type BatchSuccess[R any] struct {
	Index  int
	Result R
}

// BatchItemError pairs a failure with the index of the item that caused it.
type BatchItemError struct {
	Index int
	Err   error
}

func (e BatchItemError) Error() string { return e.Err.Error() }

// BatchResult is the bookkeeping for one batch run.
type BatchResult[R any] struct {
	Successful []BatchSuccess[R]
	Failed     []BatchItemError

	// Aborted is true when StopOnError cut the batch short.
	Aborted bool

	// RolledBack is true when successes were compensated away.
	RolledBack bool
}

// RunBatch executes fn over items in concurrent chunks. compensate may be
// nil; it is required only when RollbackOnFailure is set, and is invoked
// with each successful result when the batch is abandoned.
func RunBatch[T, R any](
	ctx context.Context,
	items []T,
	fn func(ctx context.Context, index int, item T) (R, error),
	compensate func(ctx context.Context, s BatchSuccess[R]) error,
	opts BatchOptions,
) BatchResult[R] {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	var (
		mu     sync.Mutex
		result BatchResult[R]
	)

	for start := 0; start < len(items); start += opts.ChunkSize {
		end := start + opts.ChunkSize
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(index int, item T) {
				defer wg.Done()
				r, err := fn(ctx, index, item)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Failed = append(result.Failed, BatchItemError{Index: index, Err: err})
					return
				}
				result.Successful = append(result.Successful, BatchSuccess[R]{Index: index, Result: r})
			}(i, items[i])
		}
		wg.Wait()

		if opts.StopOnError && len(result.Failed) > 0 {
			result.Aborted = true
			break
		}
		if opts.DelayBetweenChunks > 0 && end < len(items) {
			time.Sleep(opts.DelayBetweenChunks)
		}
	}

	sort.Slice(result.Successful, func(i, j int) bool {
		return result.Successful[i].Index < result.Successful[j].Index
	})
	sort.Slice(result.Failed, func(i, j int) bool {
		return result.Failed[i].Index < result.Failed[j].Index
	})

	abandoned := result.Aborted || len(result.Failed) > 0
	if opts.RollbackOnFailure && abandoned && compensate != nil {
		// Undo in reverse order of success.
		for i := len(result.Successful) - 1; i >= 0; i-- {
			if err := compensate(ctx, result.Successful[i]); err != nil {
				result.Failed = append(result.Failed, BatchItemError{
					Index: result.Successful[i].Index,
					Err:   err,
				})
			}
		}
		result.RolledBack = true
	}

	return result
}

// =============================================================================
// SERVICE BATCH OPERATIONS
// =============================================================================

// AddBatchWithBalance runs AddWithBalance over each input in chunks.
// Individual events are coalesced into one batch event carrying every
// created record; rollback compensates with DeleteWithBalance.
func (s *Service) AddBatchWithBalance(ctx context.Context, inputs []TransactionInput, opts BatchOptions) BatchResult[*Transaction] {
	result := RunBatch(ctx, inputs,
		func(ctx context.Context, _ int, in TransactionInput) (*Transaction, error) {
			return s.addWithBalance(ctx, in, false)
		},
		func(ctx context.Context, success BatchSuccess[*Transaction]) error {
			return s.DeleteWithBalance(ctx, success.Result.ID)
		},
		opts)

	if len(result.Successful) > 0 && !result.RolledBack {
		created := make([]Transaction, len(result.Successful))
		for i, su := range result.Successful {
			created[i] = *su.Result
		}
		s.bus.Publish(Event{Name: EventTransactionBatchAdded, Payload: created})
	}
	return result
}

// DeleteBatchWithBalance runs DeleteWithBalance over the given ids in
// chunks and coalesces the per-item events into one batch event.
func (s *Service) DeleteBatchWithBalance(ctx context.Context, ids []string, opts BatchOptions) BatchResult[string] {
	result := RunBatch(ctx, ids,
		func(ctx context.Context, _ int, id string) (string, error) {
			if err := s.deleteWithBalance(ctx, id, false); err != nil {
				return "", err
			}
			return id, nil
		},
		nil, // deletion has no batch-level rollback
		opts)

	if len(result.Successful) > 0 {
		deleted := make([]string, len(result.Successful))
		for i, su := range result.Successful {
			deleted[i] = su.Result
		}
		s.bus.Publish(Event{Name: EventTransactionBatchDeleted, Payload: deleted})
	}
	return result
}

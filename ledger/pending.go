/*
pending.go - Registry of in-flight multi-step mutations

PURPOSE:
  Every composite operation records itself here before its forward step
  starts and removes itself once committed or compensated. Two things
  fall out of that bookkeeping:

  - Abandoned operations (process died mid-saga, handler leaked) can be
    purged after a timeout instead of accumulating forever.
  - Snapshot/Restore captures the in-flight set for checkpointing.

  The registry is process-local mutable state. It accelerates and tracks
  same-process operations only; it is not a cross-process journal.
*/
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultStaleAfter is how long a pending operation may sit in the
// registry before PurgeStale treats it as abandoned.
const DefaultStaleAfter = 5 * time.Minute

// PendingOperation describes one in-flight multi-step mutation.
type PendingOperation struct {
	ID        string
	Type      string // e.g. "create-with-balance"
	Payload   any
	Timestamp time.Time
	State     OpState
}

// PendingRegistry tracks in-flight operations. Safe for concurrent use.
type PendingRegistry struct {
	mu         sync.Mutex
	ops        map[string]PendingOperation
	staleAfter time.Duration

	// Now is the clock. Overridable in tests.
	Now func() time.Time
}

// NewPendingRegistry creates a registry; staleAfter <= 0 uses the default.
func NewPendingRegistry(staleAfter time.Duration) *PendingRegistry {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &PendingRegistry{
		ops:        make(map[string]PendingOperation),
		staleAfter: staleAfter,
		Now:        time.Now,
	}
}

// Track records a new pending operation and returns its id.
func (r *PendingRegistry) Track(opType string, payload any) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.NewString()
	r.ops[id] = PendingOperation{
		ID:        id,
		Type:      opType,
		Payload:   payload,
		Timestamp: r.Now(),
		State:     StateInit,
	}
	return id
}

// SetState moves a tracked operation to a new lifecycle state.
func (r *PendingRegistry) SetState(id string, state OpState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if op, ok := r.ops[id]; ok {
		op.State = state
		r.ops[id] = op
	}
}

// Complete removes a finished operation.
func (r *PendingRegistry) Complete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ops, id)
}

// PurgeStale removes operations older than the stale timeout and returns
// how many were dropped.
func (r *PendingRegistry) PurgeStale() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.Now().Add(-r.staleAfter)
	purged := 0
	for id, op := range r.ops {
		if op.Timestamp.Before(cutoff) {
			delete(r.ops, id)
			purged++
		}
	}
	return purged
}

// Snapshot returns a copy of the current in-flight set.
func (r *PendingRegistry) Snapshot() []PendingOperation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PendingOperation, 0, len(r.ops))
	for _, op := range r.ops {
		out = append(out, op)
	}
	return out
}

// Restore merges a snapshot back into the registry. Existing entries with
// the same id are overwritten.
func (r *PendingRegistry) Restore(ops []PendingOperation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, op := range ops {
		r.ops[op.ID] = op
	}
}

// Len reports the number of tracked operations.
func (r *PendingRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops)
}

/*
saga.go - Forward/compensate execution for multi-step mutations

PURPOSE:
  The store has no atomic multi-write. Every mutation that touches both a
  transaction record and a stored balance runs as a saga: execute the
  forward closure; if it fails, execute the compensation closure built
  from state captured BEFORE anything was written, then return the
  original error.

  If compensation itself fails, a CompensationError wrapping both
  failures is returned. That error is fatal by design - the external
  state is inconsistent and the engine cannot self-heal. It must reach
  an operator, never a log-and-ignore path.

STATE MACHINE (per composite operation):
  Init -> PrimaryMutated -> BalancesMutated -> Committed
  or, on failure at either mutation step:
  -> Compensating -> Compensated            (undo succeeded)
  -> Compensating -> FatalInconsistency     (undo failed too)

  No state exposes a partial commit to readers in any other ordering.

CANCELLATION:
  Once forward has started it runs to completion or failure; the saga
  does not abort mid-flight on context cancellation. Compensation runs
  with the same context it was given.
*/
package ledger

import "context"

// OpState tracks where a composite operation is in its lifecycle.
type OpState string

const (
	StateInit               OpState = "init"
	StatePrimaryMutated     OpState = "primary_mutated"
	StateBalancesMutated    OpState = "balances_mutated"
	StateCommitted          OpState = "committed"
	StateCompensating       OpState = "compensating"
	StateCompensated        OpState = "compensated"
	StateFatalInconsistency OpState = "fatal_inconsistency"
)

// RunWithCompensation executes forward; on error it executes compensate
// and returns the original error. If compensate also fails it returns a
// *CompensationError carrying both causes under the given label.
func RunWithCompensation(ctx context.Context, forward, compensate func(context.Context) error, label string) error {
	err := forward(ctx)
	if err == nil {
		return nil
	}
	if cerr := compensate(ctx); cerr != nil {
		return &CompensationError{Label: label, Original: err, CompensationErr: cerr}
	}
	return err
}

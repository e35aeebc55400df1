/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error kinds in one place. Callers distinguish four situations:

  1. ValidationError - bad input, never reaches the store
  2. ReferentialIntegrityError - referenced account does not exist,
     raised before any write
  3. StoreError - the external store rejected a read/write
  4. CompensationError - a forward step failed AND its compensation
     failed; the external state is inconsistent and requires manual
     reconciliation. Never swallow this one.

USAGE:
  if ledger.IsReferential(err) { ... }
  var comp *ledger.CompensationError
  if errors.As(err, &comp) { alertOperator(comp) }
*/
package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a record does not exist in the store.
	ErrNotFound = errors.New("record not found")

	// ErrValidation is the root of all validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrUnknownAccount is the root of referential-integrity failures.
	ErrUnknownAccount = errors.New("unknown account")

	// ErrCompensationFailed marks the fatal case: the forward step failed
	// and the compensating step failed too. The engine cannot self-heal
	// from this state.
	ErrCompensationFailed = errors.New("compensation failed: manual reconciliation required")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// Finding is a single validation problem on a named field.
type Finding struct {
	Field   string
	Message string
}

func (f Finding) String() string { return f.Field + ": " + f.Message }

// ValidationError carries every finding for a rejected input.
type ValidationError struct {
	Findings []Finding
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Findings))
	for i, f := range e.Findings {
		msgs[i] = f.String()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ReferentialIntegrityError reports a transaction referencing an account
// id the store has never seen. Raised before any write is attempted, so
// callers can tell "you pointed at nothing" apart from a store failure.
type ReferentialIntegrityError struct {
	AccountType AccountType
	AccountID   string
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("unknown %s account %q", e.AccountType, e.AccountID)
}

func (e *ReferentialIntegrityError) Unwrap() error { return ErrUnknownAccount }

// StoreError wraps a failure from the external store with the operation
// and entity that triggered it. Retry policy is the caller's concern.
type StoreError struct {
	Op     string // e.g. "add", "update-balance"
	Entity string // e.g. "transaction", "debt-account"
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// CompensationError is raised when a saga's compensate step fails after
// the forward step already failed. Both causes are preserved verbatim:
// Original is what broke the operation, CompensationErr is why the undo
// could not restore the prior state.
//
// Unwrap exposes the original failure so errors.Is/As keep working for
// the root cause, and errors.Is(err, ErrCompensationFailed) reports true.
type CompensationError struct {
	Label           string
	Original        error
	CompensationErr error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("%s: %v (compensation also failed: %v)",
		ErrCompensationFailed, e.Original, e.CompensationErr)
}

func (e *CompensationError) Unwrap() error { return e.Original }

func (e *CompensationError) Is(target error) bool {
	return target == ErrCompensationFailed
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true for schema or cross-field rule violations.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsReferential returns true when a referenced account id does not exist.
func IsReferential(err error) bool { return errors.Is(err, ErrUnknownAccount) }

// IsNotFound returns true when the requested record is missing.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsCompensationFailure returns true for the fatal two-sided failure.
// Callers must treat this as requiring manual reconciliation, never as a
// generic error to log and ignore.
func IsCompensationFailure(err error) bool { return errors.Is(err, ErrCompensationFailed) }

// IsClientError returns true if the error is due to invalid client input
// rather than an engine or store fault.
func IsClientError(err error) bool {
	return IsValidation(err) || IsReferential(err) || IsNotFound(err)
}

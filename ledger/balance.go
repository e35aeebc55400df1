/*
balance.go - Balance synchronizer for stored debt balances

PURPOSE:
  Applies, adjusts, and reverses the one stored scalar a transaction can
  touch: a debt account's balance. Cash directives are logged and skipped
  - cash balances are derived by summation and must never be written.

SIGN CONVENTION:
  Category "Debt" applies the amount as-is (paying down a loan).
  Every other category is negated (a -30 credit-card purchase grows the
  owed balance by +30). Reversal negates whatever the original rule
  produced, so apply-then-reverse is the identity. All three operations
  route through signFor; the branch exists exactly once.

COMPENSATION CAPTURE:
  Before any write, the current balance is recorded in a transient map
  keyed "accountType_accountId". RestoreAll writes those captures back,
  which is the undo for everything this instance did. Construct one
  Synchronizer per composite operation so captures never leak across
  operations.

KNOWN LIMITATION:
  There is no lock or version check on the stored balance. Two callers
  running composite operations against the same debt account can race
  and leave it short- or over-counted. This engine does not attempt
  cross-operation mutual exclusion.
*/
package ledger

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Synchronizer executes balance directives against the debt-account store.
// One instance per composite operation; the captured pre-mutation balances
// are that operation's compensation input.
type Synchronizer struct {
	store DebtAccountStore
	log   *logrus.Logger

	mu       sync.Mutex
	captured map[string]decimal.Decimal
}

// NewSynchronizer creates a synchronizer with an empty capture map.
// A nil logger falls back to the logrus standard logger.
func NewSynchronizer(store DebtAccountStore, log *logrus.Logger) *Synchronizer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Synchronizer{
		store:    store,
		log:      log,
		captured: make(map[string]decimal.Decimal),
	}
}

// Apply reads the current balance, adds the sign-adjusted delta, and
// writes the result. Returns the balance captured before the write.
func (s *Synchronizer) Apply(ctx context.Context, d BalanceDirective, category string) (decimal.Decimal, error) {
	if d.AccountType == AccountCash {
		s.skipCash(d, "apply")
		return decimal.Zero, nil
	}

	before, err := s.capture(ctx, d)
	if err != nil {
		return decimal.Zero, err
	}

	delta := d.Amount.Mul(signFor(category))
	if err := s.write(ctx, d.AccountID, before.Add(delta)); err != nil {
		return decimal.Zero, err
	}
	return before, nil
}

// Reverse undoes a prior Apply for the same directive and category:
// it writes the negation of whatever delta Apply would have produced.
func (s *Synchronizer) Reverse(ctx context.Context, d BalanceDirective, category string) (decimal.Decimal, error) {
	if d.AccountType == AccountCash {
		s.skipCash(d, "reverse")
		return decimal.Zero, nil
	}

	before, err := s.capture(ctx, d)
	if err != nil {
		return decimal.Zero, err
	}

	delta := d.Amount.Mul(signFor(category)).Neg()
	if err := s.write(ctx, d.AccountID, before.Add(delta)); err != nil {
		return decimal.Zero, err
	}
	return before, nil
}

// Adjust handles updates: it negates the effect of the prior amount using
// the ORIGINAL transaction's category, then applies the new amount using
// the UPDATED transaction's category. Both steps run against one read
// balance and produce one write, so no intermediate state is persisted
// when both a reverse and an apply amount are present.
func (s *Synchronizer) Adjust(ctx context.Context, d BalanceDirective, originalCategory, newCategory string) (decimal.Decimal, error) {
	if d.AccountType == AccountCash {
		s.skipCash(d, "adjust")
		return decimal.Zero, nil
	}

	before, err := s.capture(ctx, d)
	if err != nil {
		return decimal.Zero, err
	}

	total := before
	if d.ReverseAmount != nil {
		total = total.Add(d.ReverseAmount.Mul(signFor(originalCategory)).Neg())
	}
	if d.ApplyAmount != nil {
		total = total.Add(d.ApplyAmount.Mul(signFor(newCategory)))
	}
	if err := s.write(ctx, d.AccountID, total); err != nil {
		return decimal.Zero, err
	}
	return before, nil
}

// RestoreAll writes every captured pre-mutation balance back to the
// store. This is the compensation for all mutations this instance made.
func (s *Synchronizer) RestoreAll(ctx context.Context) error {
	s.mu.Lock()
	captures := make(map[string]decimal.Decimal, len(s.captured))
	for k, v := range s.captured {
		captures[k] = v
	}
	s.mu.Unlock()

	for key, balance := range captures {
		id := strings.TrimPrefix(key, string(AccountDebt)+"_")
		if err := s.store.UpdateBalance(ctx, id, balance); err != nil {
			return &StoreError{Op: "restore-balance", Entity: "debt-account", Err: err}
		}
		s.log.WithFields(logrus.Fields{
			"account": id,
			"balance": balance.String(),
		}).Info("restored pre-mutation balance")
	}
	return nil
}

// Captured returns the pre-mutation balance recorded for a directive key,
// if this instance mutated that balance.
func (s *Synchronizer) Captured(key string) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.captured[key]
	return b, ok
}

// capture reads the current balance and records it once per directive key.
// The first capture wins: if the same account is touched twice within one
// operation, compensation restores the state before the FIRST touch.
func (s *Synchronizer) capture(ctx context.Context, d BalanceDirective) (decimal.Decimal, error) {
	account, err := s.store.DebtAccount(ctx, d.AccountID)
	if err != nil {
		return decimal.Zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.captured[d.Key()]; !ok {
		s.captured[d.Key()] = account.Balance
	}
	return account.Balance, nil
}

func (s *Synchronizer) write(ctx context.Context, id string, balance decimal.Decimal) error {
	if err := s.store.UpdateBalance(ctx, id, balance); err != nil {
		return &StoreError{Op: "update-balance", Entity: "debt-account", Err: err}
	}
	return nil
}

func (s *Synchronizer) skipCash(d BalanceDirective, op string) {
	s.log.WithFields(logrus.Fields{
		"op":      op,
		"account": d.AccountID,
	}).Debug("cash directive skipped: cash balances are derived, never written")
}

/*
Package ledger provides the core ledger synchronization engine.

PURPOSE:
  This package contains the types and algorithms for keeping transaction
  records and stored debt balances consistent on top of a remote store
  that offers only plain create/read/update/delete calls. There is no
  multi-statement atomic primitive to lean on, so every balance-affecting
  mutation is run as a saga: forward steps paired with explicit
  compensation closures captured before anything is written.

KEY CONCEPTS IN THIS FILE (types.go):
  - Transaction: A ledger entry touching exactly one account
  - CashAccount: Balance is always derived by summation, never stored
  - DebtAccount: Balance is a stored scalar, the only value the
    synchronizer is allowed to mutate
  - RecurringBill: A scheduled obligation projected onto future dates
  - BalanceDirective: One balance mutation to be executed by the synchronizer
  - Sign convention: The category-dependent rule deciding whether an
    amount is added to or subtracted from a stored balance

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point drift
  2. One account per transaction: AccountID and DebtAccountID are
     mutually exclusive by convention (validated, not storage-enforced)
  3. Best-effort compensation: The engine approximates atomicity, it
     does not provide it. That limitation is part of the contract.

SEE ALSO:
  - balance.go: The synchronizer applying the sign convention
  - core.go: The service composing stores, cache, saga, and events
  - saga.go: Forward/compensate execution
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCOUNT TYPES
// =============================================================================

type AccountType string

const (
	// AccountCash accounts derive their balance by summing transactions.
	// The synchronizer never writes to them.
	AccountCash AccountType = "cash"

	// AccountDebt accounts carry a stored scalar balance, mutated via
	// the store's dedicated UpdateBalance write.
	AccountDebt AccountType = "debt"
)

// CategoryDebt marks direct debt payments (loan paydowns). Transactions in
// this category apply their amount to the debt balance as-is; every other
// category touching a debt account applies the negated amount. See signFor.
const CategoryDebt = "Debt"

// CategoryDefault is assigned when a transaction arrives without a category.
const CategoryDefault = "Uncategorized"

// signFor returns the multiplier the sign convention assigns to a category.
// "Debt" transactions carry their delta as-is (paying down a loan); all
// other categories on a debt account are inverted (charging a credit card
// with a -30 purchase grows the owed balance by +30).
//
// This is the single source of truth for the convention. Apply, Adjust and
// Reverse in balance.go all go through it so the branches cannot drift.
func signFor(category string) decimal.Decimal {
	if category == CategoryDebt {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(-1)
}

// =============================================================================
// TRANSACTION
// =============================================================================

// Transaction is a single ledger entry. Exactly one of AccountID or
// DebtAccountID should be set; the store does not enforce this, Validate does.
type Transaction struct {
	ID            string
	Date          time.Time
	Description   string
	Category      string
	Amount        decimal.Decimal // signed; negative = money out
	AccountID     string          // cash account reference
	DebtAccountID string          // debt account reference
	Cleared       bool
}

// AccountRef returns the account type and id this transaction touches.
// Debt wins when both are set (the validation layer rejects that case
// in strict mode before it gets here).
func (t Transaction) AccountRef() (AccountType, string) {
	if t.DebtAccountID != "" {
		return AccountDebt, t.DebtAccountID
	}
	return AccountCash, t.AccountID
}

// DebtKind classifies how an unsigned user-facing amount on a debt account
// entry maps onto the internal signed convention.
type DebtKind string

const (
	DebtKindNone     DebtKind = ""         // amount is already signed
	DebtKindPurchase DebtKind = "purchase" // stored negative (money charged)
	DebtKindPayment  DebtKind = "payment"  // stored positive (money paid in)
)

// TransactionInput carries caller-supplied data for a new transaction.
// Amount may be unsigned for debt entries; DebtKind tells the engine
// which sign to normalize it to before anything is persisted.
type TransactionInput struct {
	Date          time.Time
	Description   string
	Category      string
	Amount        decimal.Decimal
	AccountID     string
	DebtAccountID string
	Cleared       bool
	DebtKind      DebtKind
}

// TransactionPatch is a partial update. Nil fields are left untouched.
type TransactionPatch struct {
	Date          *time.Time
	Description   *string
	Category      *string
	Amount        *decimal.Decimal
	AccountID     *string
	DebtAccountID *string
	Cleared       *bool
	DebtKind      DebtKind
}

// Apply copies the non-nil patch fields onto a transaction.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.AccountID != nil {
		t.AccountID = *p.AccountID
	}
	if p.DebtAccountID != nil {
		t.DebtAccountID = *p.DebtAccountID
	}
	if p.Cleared != nil {
		t.Cleared = *p.Cleared
	}
	return t
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// CashAccount balances are derived, computed by summing associated
// transactions. Read-only for balance purposes inside this engine.
type CashAccount struct {
	ID          string
	Name        string
	Institution string
	Active      bool
}

// DebtAccount carries the one stored scalar the synchronizer mutates.
// Every mutation of Balance must be traceable to exactly one transaction
// create/update/delete and reversible from the pre-mutation capture.
type DebtAccount struct {
	ID             string
	Name           string
	Balance        decimal.Decimal
	InterestRate   decimal.Decimal // annual percentage
	MinimumPayment decimal.Decimal
	DueDay         int // day of month, 0 = unknown
}

// RecurringBill is a scheduled obligation. Bills never mutate balances
// directly; they are templates callers turn into transactions.
type RecurringBill struct {
	ID        string
	Name      string
	Amount    decimal.Decimal
	DueDay    int // day of month, 1-31
	Category  string
	AccountID string
	Active    bool
}

// NextDue returns the first due date on or after from. Due days past the
// end of a month clamp to that month's last day.
func (b RecurringBill) NextDue(from time.Time) time.Time {
	due := dueInMonth(from.Year(), from.Month(), b.DueDay, from.Location())
	if due.Before(from) {
		next := from.AddDate(0, 1, -from.Day()+1) // first of next month
		due = dueInMonth(next.Year(), next.Month(), b.DueDay, from.Location())
	}
	return due
}

func dueInMonth(year int, month time.Month, day int, loc *time.Location) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// =============================================================================
// BALANCE DIRECTIVE
// =============================================================================

// BalanceDirective describes one balance mutation for the synchronizer.
// Cash directives are no-ops: the synchronizer logs and skips them, because
// cash balances are derived and must never be written.
//
// Amount drives Apply and Reverse. ReverseAmount/ApplyAmount drive Adjust
// (update paths), so that undoing the old amount and applying the new one
// happen against a single read balance and a single write.
type BalanceDirective struct {
	AccountType AccountType
	AccountID   string
	Amount      decimal.Decimal

	ReverseAmount *decimal.Decimal
	ApplyAmount   *decimal.Decimal
}

// Key identifies the balance a directive touches, used for compensation
// capture bookkeeping.
func (d BalanceDirective) Key() string {
	return string(d.AccountType) + "_" + d.AccountID
}

// SumCashTransactions derives a cash account balance by summation.
func SumCashTransactions(txs []Transaction, accountID string) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if tx.AccountID == accountID {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

/*
store.go - Persistence interfaces for the four entity kinds

PURPOSE:
  Defines the contract between the engine and the external data store.
  The store is a plain CRUD API: getAll / getById / add / update / delete
  per entity kind, all fallible, all context-aware. There is NO
  multi-statement transaction. The engine compensates around that fact
  (see saga.go); implementations must not be assumed transactional.

ID ASSIGNMENT:
  Add* calls return the persisted record. If the caller left ID empty the
  store assigns one; if the caller supplied an ID the store keeps it.
  The delete-then-restore compensation path relies on the latter to
  re-insert a record under its original id, but the contract does not
  promise identity stability across that path - callers holding an old
  id after a failed delete must re-read.

IMPLEMENTATIONS:
  - store/memory.go: In-memory, for tests and development
  - store/sqlite/sqlite.go: SQLite-backed

SEE ALSO:
  - core.go: The service composing these interfaces
  - balance.go: Uses DebtAccountStore.UpdateBalance exclusively
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PER-ENTITY STORES
// =============================================================================

// TransactionStore persists ledger transactions.
type TransactionStore interface {
	Transactions(ctx context.Context) ([]Transaction, error)
	Transaction(ctx context.Context, id string) (*Transaction, error)
	AddTransaction(ctx context.Context, tx Transaction) (*Transaction, error)
	UpdateTransaction(ctx context.Context, tx Transaction) (*Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
}

// CashAccountStore persists cash accounts. Balances are never stored here;
// they are derived by summing transactions.
type CashAccountStore interface {
	CashAccounts(ctx context.Context) ([]CashAccount, error)
	CashAccount(ctx context.Context, id string) (*CashAccount, error)
	AddCashAccount(ctx context.Context, a CashAccount) (*CashAccount, error)
	UpdateCashAccount(ctx context.Context, a CashAccount) (*CashAccount, error)
	DeleteCashAccount(ctx context.Context, id string) error
}

// DebtAccountStore persists debt accounts. UpdateBalance is the dedicated
// scalar write the synchronizer uses; nothing else in the engine mutates
// a stored balance.
type DebtAccountStore interface {
	DebtAccounts(ctx context.Context) ([]DebtAccount, error)
	DebtAccount(ctx context.Context, id string) (*DebtAccount, error)
	AddDebtAccount(ctx context.Context, a DebtAccount) (*DebtAccount, error)
	UpdateDebtAccount(ctx context.Context, a DebtAccount) (*DebtAccount, error)
	DeleteDebtAccount(ctx context.Context, id string) error
	UpdateBalance(ctx context.Context, id string, newBalance decimal.Decimal) error
}

// RecurringBillStore persists recurring bills.
type RecurringBillStore interface {
	RecurringBills(ctx context.Context) ([]RecurringBill, error)
	RecurringBill(ctx context.Context, id string) (*RecurringBill, error)
	AddRecurringBill(ctx context.Context, b RecurringBill) (*RecurringBill, error)
	UpdateRecurringBill(ctx context.Context, b RecurringBill) (*RecurringBill, error)
	DeleteRecurringBill(ctx context.Context, id string) error
}

// Store is the full CRUD surface the engine consumes.
type Store interface {
	TransactionStore
	CashAccountStore
	DebtAccountStore
	RecurringBillStore
}

// =============================================================================
// LOCAL KEY-VALUE STORE
// =============================================================================

// KVStore holds small JSON documents under fixed keys. Saved searches and
// search history live here. Get returns ErrNotFound for missing keys.
type KVStore interface {
	GetValue(ctx context.Context, key string) ([]byte, error)
	SetValue(ctx context.Context, key string, value []byte) error
	DeleteValue(ctx context.Context, key string) error
}

// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ryokushen/ledger-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ledger.Store and ledger.KVStore in process memory.
// Records are stored by value; reads return copies. Ids supplied by the
// caller are honored, empty ids are assigned.
type Memory struct {
	mu           sync.RWMutex
	transactions map[string]ledger.Transaction
	cashAccounts map[string]ledger.CashAccount
	debtAccounts map[string]ledger.DebtAccount
	bills        map[string]ledger.RecurringBill
	kv           map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[string]ledger.Transaction),
		cashAccounts: make(map[string]ledger.CashAccount),
		debtAccounts: make(map[string]ledger.DebtAccount),
		bills:        make(map[string]ledger.RecurringBill),
		kv:           make(map[string][]byte),
	}
}

// -----------------------------------------------------------------------------
// Transactions
// -----------------------------------------------------------------------------

func (m *Memory) Transactions(_ context.Context) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Transaction, 0, len(m.transactions))
	for _, tx := range m.transactions {
		out = append(out, tx)
	}
	return out, nil
}

func (m *Memory) Transaction(_ context.Context, id string) (*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.transactions[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &tx, nil
}

func (m *Memory) AddTransaction(_ context.Context, tx ledger.Transaction) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	m.transactions[tx.ID] = tx
	return &tx, nil
}

func (m *Memory) UpdateTransaction(_ context.Context, tx ledger.Transaction) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[tx.ID]; !ok {
		return nil, ledger.ErrNotFound
	}
	m.transactions[tx.ID] = tx
	return &tx, nil
}

func (m *Memory) DeleteTransaction(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(m.transactions, id)
	return nil
}

// -----------------------------------------------------------------------------
// Cash accounts
// -----------------------------------------------------------------------------

func (m *Memory) CashAccounts(_ context.Context) ([]ledger.CashAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.CashAccount, 0, len(m.cashAccounts))
	for _, a := range m.cashAccounts {
		out = append(out, a)
	}
	return out, nil
}

func (m *Memory) CashAccount(_ context.Context, id string) (*ledger.CashAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.cashAccounts[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &a, nil
}

func (m *Memory) AddCashAccount(_ context.Context, a ledger.CashAccount) (*ledger.CashAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.cashAccounts[a.ID] = a
	return &a, nil
}

func (m *Memory) UpdateCashAccount(_ context.Context, a ledger.CashAccount) (*ledger.CashAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cashAccounts[a.ID]; !ok {
		return nil, ledger.ErrNotFound
	}
	m.cashAccounts[a.ID] = a
	return &a, nil
}

func (m *Memory) DeleteCashAccount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cashAccounts[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(m.cashAccounts, id)
	return nil
}

// -----------------------------------------------------------------------------
// Debt accounts
// -----------------------------------------------------------------------------

func (m *Memory) DebtAccounts(_ context.Context) ([]ledger.DebtAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.DebtAccount, 0, len(m.debtAccounts))
	for _, a := range m.debtAccounts {
		out = append(out, a)
	}
	return out, nil
}

func (m *Memory) DebtAccount(_ context.Context, id string) (*ledger.DebtAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.debtAccounts[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &a, nil
}

func (m *Memory) AddDebtAccount(_ context.Context, a ledger.DebtAccount) (*ledger.DebtAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.debtAccounts[a.ID] = a
	return &a, nil
}

func (m *Memory) UpdateDebtAccount(_ context.Context, a ledger.DebtAccount) (*ledger.DebtAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.debtAccounts[a.ID]; !ok {
		return nil, ledger.ErrNotFound
	}
	m.debtAccounts[a.ID] = a
	return &a, nil
}

func (m *Memory) DeleteDebtAccount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.debtAccounts[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(m.debtAccounts, id)
	return nil
}

// UpdateBalance is the dedicated scalar write for stored debt balances.
func (m *Memory) UpdateBalance(_ context.Context, id string, newBalance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.debtAccounts[id]
	if !ok {
		return ledger.ErrNotFound
	}
	a.Balance = newBalance
	m.debtAccounts[id] = a
	return nil
}

// -----------------------------------------------------------------------------
// Recurring bills
// -----------------------------------------------------------------------------

func (m *Memory) RecurringBills(_ context.Context) ([]ledger.RecurringBill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.RecurringBill, 0, len(m.bills))
	for _, b := range m.bills {
		out = append(out, b)
	}
	return out, nil
}

func (m *Memory) RecurringBill(_ context.Context, id string) (*ledger.RecurringBill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bills[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &b, nil
}

func (m *Memory) AddRecurringBill(_ context.Context, b ledger.RecurringBill) (*ledger.RecurringBill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	m.bills[b.ID] = b
	return &b, nil
}

func (m *Memory) UpdateRecurringBill(_ context.Context, b ledger.RecurringBill) (*ledger.RecurringBill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bills[b.ID]; !ok {
		return nil, ledger.ErrNotFound
	}
	m.bills[b.ID] = b
	return &b, nil
}

func (m *Memory) DeleteRecurringBill(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bills[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(m.bills, id)
	return nil
}

// -----------------------------------------------------------------------------
// Key-value documents
// -----------------------------------------------------------------------------

func (m *Memory) GetValue(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.kv[key]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) SetValue(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.kv[key] = v
	return nil
}

func (m *Memory) DeleteValue(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.kv, key)
	return nil
}

// Compile-time interface checks.
var (
	_ ledger.Store   = (*Memory)(nil)
	_ ledger.KVStore = (*Memory)(nil)
)

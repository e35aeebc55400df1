/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.Store and ledger.KVStore using SQLite. The engine
  treats this as a plain CRUD API: there is no cross-statement
  transaction in the contract, and the engine's saga layer compensates
  around that on purpose. Do not "help" by wrapping composite operations
  in a database transaction here - the consistency model under test is
  the compensating one.

KEY TABLES:
  transactions:    Ledger entries
  cash_accounts:   Accounts with derived balances (no balance column)
  debt_accounts:   Accounts with the one stored scalar balance
  recurring_bills: Scheduled obligations
  kv:              Small JSON documents (saved searches, history)

AMOUNTS:
  Stored as TEXT in decimal string form; exact round-trip, no float
  drift.

WAL MODE:
  Opened with WAL for better read concurrency and crash recovery.

USAGE:
  st, err := sqlite.New("./data/ledger.db")
  if err != nil { ... }
  defer st.Close()
  svc := ledger.NewService(st, ledger.ServiceConfig{})

SEE ALSO:
  - ledger/store.go: Interface definitions
  - store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/ryokushen/ledger-engine/ledger"
)

// Store implements ledger.Store and ledger.KVStore using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		description TEXT,
		category TEXT NOT NULL,
		amount TEXT NOT NULL,
		account_id TEXT,
		debt_account_id TEXT,
		cleared INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_date
		ON transactions(date);
	CREATE INDEX IF NOT EXISTS idx_transactions_account
		ON transactions(account_id) WHERE account_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_debt_account
		ON transactions(debt_account_id) WHERE debt_account_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS cash_accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		institution TEXT,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS debt_accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		balance TEXT NOT NULL,
		interest_rate TEXT NOT NULL DEFAULT '0',
		minimum_payment TEXT NOT NULL DEFAULT '0',
		due_day INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS recurring_bills (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		amount TEXT NOT NULL,
		due_day INTEGER NOT NULL,
		category TEXT,
		account_id TEXT,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const dateLayout = time.RFC3339

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (s *Store) Transactions(ctx context.Context) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, description, category, amount, account_id, debt_account_id, cleared
		FROM transactions ORDER BY date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Store) Transaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, date, description, category, amount, account_id, debt_account_id, cleared
		FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) AddTransaction(ctx context.Context, tx ledger.Transaction) (*ledger.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, date, description, category, amount, account_id, debt_account_id, cleared)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Date.Format(dateLayout), tx.Description, tx.Category,
		tx.Amount.String(), nullable(tx.AccountID), nullable(tx.DebtAccountID), boolInt(tx.Cleared))
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx ledger.Transaction) (*ledger.Transaction, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET date = ?, description = ?, category = ?, amount = ?, account_id = ?, debt_account_id = ?, cleared = ?
		WHERE id = ?`,
		tx.Date.Format(dateLayout), tx.Description, tx.Category, tx.Amount.String(),
		nullable(tx.AccountID), nullable(tx.DebtAccountID), boolInt(tx.Cleared), tx.ID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ledger.ErrNotFound
	}
	return &tx, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(r rowScanner) (ledger.Transaction, error) {
	var (
		tx            ledger.Transaction
		date, amount  string
		account, debt sql.NullString
		cleared       int
	)
	if err := r.Scan(&tx.ID, &date, &tx.Description, &tx.Category, &amount, &account, &debt, &cleared); err != nil {
		return tx, err
	}
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return tx, fmt.Errorf("bad date for transaction %s: %w", tx.ID, err)
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return tx, fmt.Errorf("bad amount for transaction %s: %w", tx.ID, err)
	}
	tx.Date = t
	tx.Amount = amt
	tx.AccountID = account.String
	tx.DebtAccountID = debt.String
	tx.Cleared = cleared != 0
	return tx, nil
}

// =============================================================================
// CASH ACCOUNTS
// =============================================================================

func (s *Store) CashAccounts(ctx context.Context) ([]ledger.CashAccount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, institution, active FROM cash_accounts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.CashAccount
	for rows.Next() {
		var a ledger.CashAccount
		var active int
		if err := rows.Scan(&a.ID, &a.Name, &a.Institution, &active); err != nil {
			return nil, err
		}
		a.Active = active != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CashAccount(ctx context.Context, id string) (*ledger.CashAccount, error) {
	var a ledger.CashAccount
	var active int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, institution, active FROM cash_accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &a.Institution, &active)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Active = active != 0
	return &a, nil
}

func (s *Store) AddCashAccount(ctx context.Context, a ledger.CashAccount) (*ledger.CashAccount, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cash_accounts (id, name, institution, active) VALUES (?, ?, ?, ?)`,
		a.ID, a.Name, a.Institution, boolInt(a.Active))
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) UpdateCashAccount(ctx context.Context, a ledger.CashAccount) (*ledger.CashAccount, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE cash_accounts SET name = ?, institution = ?, active = ? WHERE id = ?`,
		a.Name, a.Institution, boolInt(a.Active), a.ID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ledger.ErrNotFound
	}
	return &a, nil
}

func (s *Store) DeleteCashAccount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cash_accounts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// =============================================================================
// DEBT ACCOUNTS
// =============================================================================

func (s *Store) DebtAccounts(ctx context.Context) ([]ledger.DebtAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, balance, interest_rate, minimum_payment, due_day FROM debt_accounts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.DebtAccount
	for rows.Next() {
		a, err := scanDebtAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) DebtAccount(ctx context.Context, id string) (*ledger.DebtAccount, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, balance, interest_rate, minimum_payment, due_day FROM debt_accounts WHERE id = ?`, id)
	a, err := scanDebtAccount(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) AddDebtAccount(ctx context.Context, a ledger.DebtAccount) (*ledger.DebtAccount, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO debt_accounts (id, name, balance, interest_rate, minimum_payment, due_day)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Balance.String(), a.InterestRate.String(), a.MinimumPayment.String(), a.DueDay)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) UpdateDebtAccount(ctx context.Context, a ledger.DebtAccount) (*ledger.DebtAccount, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE debt_accounts
		SET name = ?, balance = ?, interest_rate = ?, minimum_payment = ?, due_day = ?
		WHERE id = ?`,
		a.Name, a.Balance.String(), a.InterestRate.String(), a.MinimumPayment.String(), a.DueDay, a.ID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ledger.ErrNotFound
	}
	return &a, nil
}

func (s *Store) DeleteDebtAccount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM debt_accounts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// UpdateBalance is the dedicated scalar write for stored debt balances.
func (s *Store) UpdateBalance(ctx context.Context, id string, newBalance decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE debt_accounts SET balance = ? WHERE id = ?`, newBalance.String(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func scanDebtAccount(r rowScanner) (ledger.DebtAccount, error) {
	var (
		a                      ledger.DebtAccount
		balance, rate, minimum string
	)
	if err := r.Scan(&a.ID, &a.Name, &balance, &rate, &minimum, &a.DueDay); err != nil {
		return a, err
	}
	var err error
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return a, fmt.Errorf("bad balance for debt account %s: %w", a.ID, err)
	}
	if a.InterestRate, err = decimal.NewFromString(rate); err != nil {
		return a, fmt.Errorf("bad interest rate for debt account %s: %w", a.ID, err)
	}
	if a.MinimumPayment, err = decimal.NewFromString(minimum); err != nil {
		return a, fmt.Errorf("bad minimum payment for debt account %s: %w", a.ID, err)
	}
	return a, nil
}

// =============================================================================
// RECURRING BILLS
// =============================================================================

func (s *Store) RecurringBills(ctx context.Context) ([]ledger.RecurringBill, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, amount, due_day, category, account_id, active FROM recurring_bills ORDER BY due_day`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.RecurringBill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) RecurringBill(ctx context.Context, id string) (*ledger.RecurringBill, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, amount, due_day, category, account_id, active FROM recurring_bills WHERE id = ?`, id)
	b, err := scanBill(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) AddRecurringBill(ctx context.Context, b ledger.RecurringBill) (*ledger.RecurringBill, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recurring_bills (id, name, amount, due_day, category, account_id, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Amount.String(), b.DueDay, b.Category, nullable(b.AccountID), boolInt(b.Active))
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) UpdateRecurringBill(ctx context.Context, b ledger.RecurringBill) (*ledger.RecurringBill, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE recurring_bills
		SET name = ?, amount = ?, due_day = ?, category = ?, account_id = ?, active = ?
		WHERE id = ?`,
		b.Name, b.Amount.String(), b.DueDay, b.Category, nullable(b.AccountID), boolInt(b.Active), b.ID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ledger.ErrNotFound
	}
	return &b, nil
}

func (s *Store) DeleteRecurringBill(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recurring_bills WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func scanBill(r rowScanner) (ledger.RecurringBill, error) {
	var (
		b       ledger.RecurringBill
		amount  string
		account sql.NullString
		active  int
	)
	if err := r.Scan(&b.ID, &b.Name, &amount, &b.DueDay, &b.Category, &account, &active); err != nil {
		return b, err
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return b, fmt.Errorf("bad amount for bill %s: %w", b.ID, err)
	}
	b.Amount = amt
	b.AccountID = account.String
	b.Active = active != 0
	return b, nil
}

// =============================================================================
// KEY-VALUE DOCUMENTS
// =============================================================================

func (s *Store) GetValue(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) SetValue(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *Store) DeleteValue(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Compile-time interface checks.
var (
	_ ledger.Store   = (*Store)(nil)
	_ ledger.KVStore = (*Store)(nil)
)

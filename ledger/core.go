/*
core.go - Ledger Core: transaction CRUD plus balance-aware composites

PURPOSE:
  The service callers talk to. Composes the store, the cache, the balance
  synchronizer, the saga runner, the pending registry, and the event bus
  into the engine's public operations:

    Get / List / Add / Update / Delete
    AddWithBalance / UpdateWithBalance / DeleteWithBalance

EVERY MUTATION:
  1. Validates required fields and cross-field rules (non-zero amount,
     category default, exactly one account reference)
  2. Verifies referenced account ids exist BEFORE writing - a separate
     round trip yielding ReferentialIntegrityError, not a store error
  3. Normalizes unsigned purchase/payment input into the internal signed
     convention before the synchronizer sees it
  4. On success, invalidates the entity key and the whole listing
     namespace, then publishes a domain event

VALIDATION MODES:
  Strict mode rejects invalid input. Relaxed mode logs the findings and
  writes anyway - that is the configured policy, not an oversight.

COMPOSITE OPERATIONS:
  Each composite runs as a saga (see saga.go). The compensation closure
  is captured from state read BEFORE the mutation:

    create: reverse captured balances, delete the persisted transaction
    update: reverse the adjustment, restore the pre-update snapshot
    delete: re-apply captured balances, re-insert the deleted record

  The delete compensation re-inserts under the original id when the
  store honors supplied ids; the abstract contract does not promise
  that, so callers must not assume identity stability across this path.

SEE ALSO:
  - balance.go: Directive execution and sign convention
  - batch.go: Chunked bulk execution over these operations
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// SERVICE
// =============================================================================

// ServiceConfig tunes a Service. Zero values fall back to defaults.
type ServiceConfig struct {
	EntityCacheTTL    time.Duration
	PendingStaleAfter time.Duration
	Strict            bool
	Logger            *logrus.Logger
	Bus               *Bus
}

// Service is the Ledger Core.
type Service struct {
	store   Store
	cache   *Cache
	bus     *Bus
	pending *PendingRegistry
	log     *logrus.Logger
	strict  bool
}

// NewService wires a Service around a store.
func NewService(store Store, cfg ServiceConfig) *Service {
	if cfg.EntityCacheTTL <= 0 {
		cfg.EntityCacheTTL = EntityCacheTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Bus == nil {
		cfg.Bus = NewBus()
	}
	return &Service{
		store:   store,
		cache:   NewCache(cfg.EntityCacheTTL),
		bus:     cfg.Bus,
		pending: NewPendingRegistry(cfg.PendingStaleAfter),
		log:     cfg.Logger,
		strict:  cfg.Strict,
	}
}

// Bus returns the event bus mutations publish to.
func (s *Service) Bus() *Bus { return s.bus }

// Cache returns the entity cache, mainly for inspection in tests.
func (s *Service) Cache() *Cache { return s.cache }

// Pending returns the in-flight operation registry.
func (s *Service) Pending() *PendingRegistry { return s.pending }

// Store returns the underlying store.
func (s *Service) Store() Store { return s.store }

// =============================================================================
// READS
// =============================================================================

// Get returns a transaction by id, serving from cache when fresh.
func (s *Service) Get(ctx context.Context, id string) (*Transaction, error) {
	key := entityKey(id)
	if data, ok := s.cache.Get(key); ok {
		tx := data.(Transaction)
		return &tx, nil
	}

	tx, err := s.store.Transaction(ctx, id)
	if err != nil {
		return nil, storeErr("get", "transaction", err)
	}
	s.cache.Set(key, *tx)
	return tx, nil
}

// ListFilter narrows List results. Zero fields match everything.
type ListFilter struct {
	AccountID     string
	DebtAccountID string
	Category      string
	From          time.Time
	To            time.Time
	Cleared       *bool
}

// Match reports whether a transaction satisfies the filter.
func (f ListFilter) Match(t Transaction) bool {
	if f.AccountID != "" && t.AccountID != f.AccountID {
		return false
	}
	if f.DebtAccountID != "" && t.DebtAccountID != f.DebtAccountID {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if !f.From.IsZero() && t.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.Date.After(f.To) {
		return false
	}
	if f.Cleared != nil && t.Cleared != *f.Cleared {
		return false
	}
	return true
}

func (f ListFilter) cacheKey() string {
	cleared := "any"
	if f.Cleared != nil {
		cleared = fmt.Sprintf("%t", *f.Cleared)
	}
	return fmt.Sprintf("transactions:list:%s|%s|%s|%d|%d|%s",
		f.AccountID, f.DebtAccountID, f.Category,
		f.From.Unix(), f.To.Unix(), cleared)
}

// List returns transactions matching the filter, newest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Transaction, error) {
	key := f.cacheKey()
	if data, ok := s.cache.Get(key); ok {
		return data.([]Transaction), nil
	}

	all, err := s.store.Transactions(ctx)
	if err != nil {
		return nil, storeErr("list", "transaction", err)
	}

	matched := make([]Transaction, 0, len(all))
	for _, tx := range all {
		if f.Match(tx) {
			matched = append(matched, tx)
		}
	}
	sortByDateDesc(matched)

	s.cache.Set(key, matched)
	return matched, nil
}

// CashBalance derives a cash account balance by summing its transactions.
func (s *Service) CashBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	if _, err := s.store.CashAccount(ctx, accountID); err != nil {
		if IsNotFound(err) {
			return decimal.Zero, &ReferentialIntegrityError{AccountType: AccountCash, AccountID: accountID}
		}
		return decimal.Zero, storeErr("get", "cash-account", err)
	}
	txs, err := s.store.Transactions(ctx)
	if err != nil {
		return decimal.Zero, storeErr("list", "transaction", err)
	}
	return SumCashTransactions(txs, accountID), nil
}

// =============================================================================
// PLAIN MUTATIONS (no balance synchronization)
// =============================================================================

// Add validates, persists, and announces a transaction without touching
// any stored balance. Use AddWithBalance for debt-account entries.
func (s *Service) Add(ctx context.Context, in TransactionInput) (*Transaction, error) {
	tx := normalizeInput(in)
	if err := s.validate(tx); err != nil {
		return nil, err
	}
	if err := s.checkAccountRefs(ctx, tx); err != nil {
		return nil, err
	}

	created, err := s.store.AddTransaction(ctx, tx)
	if err != nil {
		return nil, storeErr("add", "transaction", err)
	}

	s.invalidateTransaction(created.ID)
	s.bus.Publish(Event{Name: EventTransactionAdded, Payload: *created})
	return created, nil
}

// Update applies a partial patch to an existing transaction.
func (s *Service) Update(ctx context.Context, id string, patch TransactionPatch) (*Transaction, error) {
	existing, err := s.store.Transaction(ctx, id)
	if err != nil {
		return nil, storeErr("get", "transaction", err)
	}

	updated := normalizePatched(patch.Apply(*existing), patch.DebtKind)
	if err := s.validate(updated); err != nil {
		return nil, err
	}
	if err := s.checkAccountRefs(ctx, updated); err != nil {
		return nil, err
	}

	saved, err := s.store.UpdateTransaction(ctx, updated)
	if err != nil {
		return nil, storeErr("update", "transaction", err)
	}

	s.invalidateTransaction(saved.ID)
	s.bus.Publish(Event{Name: EventTransactionUpdated, Payload: *saved})
	return saved, nil
}

// Delete removes a transaction without touching any stored balance.
func (s *Service) Delete(ctx context.Context, id string) error {
	existing, err := s.store.Transaction(ctx, id)
	if err != nil {
		return storeErr("get", "transaction", err)
	}
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return storeErr("delete", "transaction", err)
	}

	s.invalidateTransaction(id)
	s.bus.Publish(Event{Name: EventTransactionDeleted, Payload: *existing})
	return nil
}

// =============================================================================
// COMPOSITE MUTATIONS (saga-wrapped, balance-aware)
// =============================================================================

// AddWithBalance persists a transaction and applies its balance directive
// to the touched debt account. On partial failure the captured balances
// are restored and the persisted record deleted; if that undo fails too,
// the returned error is a *CompensationError.
func (s *Service) AddWithBalance(ctx context.Context, in TransactionInput) (*Transaction, error) {
	return s.addWithBalance(ctx, in, true)
}

// addWithBalance carries the publish flag so batch execution can coalesce
// per-item events into a single batch event.
func (s *Service) addWithBalance(ctx context.Context, in TransactionInput, publish bool) (*Transaction, error) {
	tx := normalizeInput(in)
	if err := s.validate(tx); err != nil {
		return nil, err
	}
	if err := s.checkAccountRefs(ctx, tx); err != nil {
		return nil, err
	}

	sync := NewSynchronizer(s.store, s.log)
	directives := directivesFor(tx)

	pid := s.pending.Track("create-with-balance", tx)
	defer s.pending.Complete(pid)

	var created *Transaction
	err := RunWithCompensation(ctx,
		func(ctx context.Context) error {
			c, err := s.store.AddTransaction(ctx, tx)
			if err != nil {
				return storeErr("add", "transaction", err)
			}
			created = c
			s.pending.SetState(pid, StatePrimaryMutated)

			for _, d := range directives {
				if _, err := sync.Apply(ctx, d, tx.Category); err != nil {
					return err
				}
			}
			s.pending.SetState(pid, StateBalancesMutated)
			return nil
		},
		func(ctx context.Context) error {
			s.pending.SetState(pid, StateCompensating)
			if err := sync.RestoreAll(ctx); err != nil {
				s.pending.SetState(pid, StateFatalInconsistency)
				return err
			}
			if created != nil {
				if err := s.store.DeleteTransaction(ctx, created.ID); err != nil {
					s.pending.SetState(pid, StateFatalInconsistency)
					return storeErr("delete", "transaction", err)
				}
			}
			s.pending.SetState(pid, StateCompensated)
			return nil
		},
		"create-with-balance")
	if err != nil {
		return nil, err
	}
	s.pending.SetState(pid, StateCommitted)

	s.invalidateTransaction(created.ID)
	if publish {
		s.bus.Publish(Event{Name: EventTransactionAdded, Payload: *created})
	}
	return created, nil
}

// UpdateWithBalance patches a transaction and adjusts the touched debt
// balances: the prior amount is negated under the ORIGINAL category, the
// new amount applied under the UPDATED one. Compensation restores both
// the captured balances and the pre-update transaction snapshot.
func (s *Service) UpdateWithBalance(ctx context.Context, id string, patch TransactionPatch) (*Transaction, error) {
	original, err := s.store.Transaction(ctx, id)
	if err != nil {
		return nil, storeErr("get", "transaction", err)
	}

	updated := normalizePatched(patch.Apply(*original), patch.DebtKind)
	if err := s.validate(updated); err != nil {
		return nil, err
	}
	if err := s.checkAccountRefs(ctx, updated); err != nil {
		return nil, err
	}

	sync := NewSynchronizer(s.store, s.log)

	pid := s.pending.Track("update-with-balance", updated)
	defer s.pending.Complete(pid)

	var saved *Transaction
	err = RunWithCompensation(ctx,
		func(ctx context.Context) error {
			u, err := s.store.UpdateTransaction(ctx, updated)
			if err != nil {
				return storeErr("update", "transaction", err)
			}
			saved = u
			s.pending.SetState(pid, StatePrimaryMutated)

			if err := s.adjustBalances(ctx, sync, *original, updated); err != nil {
				return err
			}
			s.pending.SetState(pid, StateBalancesMutated)
			return nil
		},
		func(ctx context.Context) error {
			s.pending.SetState(pid, StateCompensating)
			if err := sync.RestoreAll(ctx); err != nil {
				s.pending.SetState(pid, StateFatalInconsistency)
				return err
			}
			if saved != nil {
				if _, err := s.store.UpdateTransaction(ctx, *original); err != nil {
					s.pending.SetState(pid, StateFatalInconsistency)
					return storeErr("update", "transaction", err)
				}
			}
			s.pending.SetState(pid, StateCompensated)
			return nil
		},
		"update-with-balance")
	if err != nil {
		return nil, err
	}
	s.pending.SetState(pid, StateCommitted)

	s.invalidateTransaction(saved.ID)
	s.bus.Publish(Event{Name: EventTransactionUpdated, Payload: *saved})
	return saved, nil
}

// DeleteWithBalance removes a transaction and reverses its effect on the
// touched debt balance. Compensation re-applies the captured balances and
// re-inserts the deleted record. NOTE: re-insertion keeps the original id
// only when the store honors supplied ids; do not rely on identity
// stability across this compensation path.
func (s *Service) DeleteWithBalance(ctx context.Context, id string) error {
	return s.deleteWithBalance(ctx, id, true)
}

func (s *Service) deleteWithBalance(ctx context.Context, id string, publish bool) error {
	original, err := s.store.Transaction(ctx, id)
	if err != nil {
		return storeErr("get", "transaction", err)
	}

	sync := NewSynchronizer(s.store, s.log)
	directives := directivesFor(*original)

	pid := s.pending.Track("delete-with-balance", *original)
	defer s.pending.Complete(pid)

	deleted := false
	err = RunWithCompensation(ctx,
		func(ctx context.Context) error {
			if err := s.store.DeleteTransaction(ctx, id); err != nil {
				return storeErr("delete", "transaction", err)
			}
			deleted = true
			s.pending.SetState(pid, StatePrimaryMutated)

			for _, d := range directives {
				if _, err := sync.Reverse(ctx, d, original.Category); err != nil {
					return err
				}
			}
			s.pending.SetState(pid, StateBalancesMutated)
			return nil
		},
		func(ctx context.Context) error {
			s.pending.SetState(pid, StateCompensating)
			if err := sync.RestoreAll(ctx); err != nil {
				s.pending.SetState(pid, StateFatalInconsistency)
				return err
			}
			if deleted {
				if _, err := s.store.AddTransaction(ctx, *original); err != nil {
					s.pending.SetState(pid, StateFatalInconsistency)
					return storeErr("add", "transaction", err)
				}
			}
			s.pending.SetState(pid, StateCompensated)
			return nil
		},
		"delete-with-balance")
	if err != nil {
		return err
	}
	s.pending.SetState(pid, StateCommitted)

	s.invalidateTransaction(id)
	if publish {
		s.bus.Publish(Event{Name: EventTransactionDeleted, Payload: *original})
	}
	return nil
}

// =============================================================================
// VALIDATION AND NORMALIZATION
// =============================================================================

// Validate checks required fields and cross-field rules.
func Validate(t Transaction) *ValidationError {
	var findings []Finding
	if t.Date.IsZero() {
		findings = append(findings, Finding{Field: "date", Message: "required"})
	}
	if t.Amount.IsZero() {
		findings = append(findings, Finding{Field: "amount", Message: "must be non-zero"})
	}
	if t.AccountID != "" && t.DebtAccountID != "" {
		findings = append(findings, Finding{Field: "account", Message: "account_id and debt_account_id are mutually exclusive"})
	}
	if t.AccountID == "" && t.DebtAccountID == "" {
		findings = append(findings, Finding{Field: "account", Message: "one of account_id or debt_account_id is required"})
	}
	if len(findings) == 0 {
		return nil
	}
	return &ValidationError{Findings: findings}
}

// validate applies the configured strictness: strict mode rejects,
// relaxed mode records the findings and lets the write proceed.
func (s *Service) validate(t Transaction) error {
	verr := Validate(t)
	if verr == nil {
		return nil
	}
	if s.strict {
		return verr
	}
	s.log.WithField("findings", verr.Findings).Warn("validation findings recorded; relaxed mode, write proceeds")
	return nil
}

// checkAccountRefs verifies that referenced account ids actually exist.
// Runs before any write so failures never leave partial state.
func (s *Service) checkAccountRefs(ctx context.Context, t Transaction) error {
	if t.AccountID != "" {
		if _, err := s.store.CashAccount(ctx, t.AccountID); err != nil {
			if IsNotFound(err) {
				return &ReferentialIntegrityError{AccountType: AccountCash, AccountID: t.AccountID}
			}
			return storeErr("get", "cash-account", err)
		}
	}
	if t.DebtAccountID != "" {
		if _, err := s.store.DebtAccount(ctx, t.DebtAccountID); err != nil {
			if IsNotFound(err) {
				return &ReferentialIntegrityError{AccountType: AccountDebt, AccountID: t.DebtAccountID}
			}
			return storeErr("get", "debt-account", err)
		}
	}
	return nil
}

// normalizeInput builds the internal transaction: category defaulted,
// unsigned debt amounts signed per purchase/payment before anything
// downstream (validation, synchronizer) sees them.
func normalizeInput(in TransactionInput) Transaction {
	tx := Transaction{
		Date:          in.Date,
		Description:   in.Description,
		Category:      in.Category,
		Amount:        in.Amount,
		AccountID:     in.AccountID,
		DebtAccountID: in.DebtAccountID,
		Cleared:       in.Cleared,
	}
	return normalizePatched(tx, in.DebtKind)
}

func normalizePatched(tx Transaction, kind DebtKind) Transaction {
	if tx.Category == "" {
		tx.Category = CategoryDefault
	}
	if tx.DebtAccountID != "" && kind != DebtKindNone {
		abs := tx.Amount.Abs()
		if kind == DebtKindPurchase {
			tx.Amount = abs.Neg()
		} else {
			tx.Amount = abs
		}
	}
	return tx
}

// =============================================================================
// INTERNALS
// =============================================================================

// directivesFor builds the balance directives a transaction implies.
// Cash references still produce a directive so the skip is observable in
// logs; only debt directives reach the store.
func directivesFor(t Transaction) []BalanceDirective {
	accountType, id := t.AccountRef()
	if id == "" {
		return nil
	}
	return []BalanceDirective{{
		AccountType: accountType,
		AccountID:   id,
		Amount:      t.Amount,
	}}
}

// adjustBalances picks the directive shape for an update:
// same debt account = one Adjust (single read, single write);
// moved accounts = reverse on the old, apply on the new.
func (s *Service) adjustBalances(ctx context.Context, sync *Synchronizer, original, updated Transaction) error {
	origType, origID := original.AccountRef()
	newType, newID := updated.AccountRef()

	if origType == newType && origID == newID {
		d := BalanceDirective{
			AccountType:   origType,
			AccountID:     origID,
			ReverseAmount: &original.Amount,
			ApplyAmount:   &updated.Amount,
		}
		_, err := sync.Adjust(ctx, d, original.Category, updated.Category)
		return err
	}

	if origID != "" {
		d := BalanceDirective{AccountType: origType, AccountID: origID, Amount: original.Amount}
		if _, err := sync.Reverse(ctx, d, original.Category); err != nil {
			return err
		}
	}
	if newID != "" {
		d := BalanceDirective{AccountType: newType, AccountID: newID, Amount: updated.Amount}
		if _, err := sync.Apply(ctx, d, updated.Category); err != nil {
			return err
		}
	}
	return nil
}

func entityKey(id string) string { return "transactions:" + id }

// invalidateTransaction drops the entity key and the whole listing
// namespace. Missing an invalidation here is a stale-read bug, not a
// performance issue.
func (s *Service) invalidateTransaction(id string) {
	s.cache.Invalidate(entityKey(id))
	s.cache.InvalidateByPattern("transactions:list:*")
}

func sortByDateDesc(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.After(txs[j].Date)
	})
}

func storeErr(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	if IsClientError(err) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Entity: entity, Err: err}
}

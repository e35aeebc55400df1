package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryokushen/ledger-engine/ledger"
	"github.com/ryokushen/ledger-engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	svc    *ledger.Service
	mem    *store.Memory
	cashID string
	debtID string
}

// flakyStore fails the next N balance writes, then behaves normally.
// Lets tests break the forward step while leaving compensation working
// (failUpdates=1) or break compensation too (a large count).
type flakyStore struct {
	*store.Memory
	failUpdates int
}

func (f *flakyStore) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	if f.failUpdates > 0 {
		f.failUpdates--
		return errors.New("balance write rejected")
	}
	return f.Memory.UpdateBalance(ctx, id, balance)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func newFixture(t *testing.T, st ledger.Store, mem *store.Memory, strict bool) fixture {
	t.Helper()
	ctx := context.Background()

	cash, err := mem.AddCashAccount(ctx, ledger.CashAccount{Name: "Checking", Active: true})
	require.NoError(t, err)
	debt, err := mem.AddDebtAccount(ctx, ledger.DebtAccount{Name: "Visa", Balance: dec("500")})
	require.NoError(t, err)

	svc := ledger.NewService(st, ledger.ServiceConfig{Strict: strict, Logger: quietLogger()})
	return fixture{svc: svc, mem: mem, cashID: cash.ID, debtID: debt.ID}
}

func newTestService(t *testing.T) fixture {
	mem := store.NewMemory()
	return newFixture(t, mem, mem, true)
}

func debtInput(f fixture, amount string, category string) ledger.TransactionInput {
	return ledger.TransactionInput{
		Date:          time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		Description:   "test entry",
		Category:      category,
		Amount:        dec(amount),
		DebtAccountID: f.debtID,
	}
}

func cashInput(f fixture, amount string) ledger.TransactionInput {
	return ledger.TransactionInput{
		Date:        time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		Description: "test entry",
		Category:    "Groceries",
		Amount:      dec(amount),
		AccountID:   f.cashID,
	}
}

// =============================================================================
// VALIDATION AND NORMALIZATION
// =============================================================================

func TestAdd_DefaultsCategory(t *testing.T) {
	// GIVEN: An input with no category
	// WHEN: It is added
	// THEN: The stored record carries the default category

	f := newTestService(t)
	in := cashInput(f, "-12.50")
	in.Category = ""

	created, err := f.svc.Add(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, ledger.CategoryDefault, created.Category)
}

func TestAdd_Strict_RejectsZeroAmount(t *testing.T) {
	f := newTestService(t)
	in := cashInput(f, "0")

	_, err := f.svc.Add(context.Background(), in)
	assert.True(t, ledger.IsValidation(err))
}

func TestAdd_Strict_RejectsBothAccounts(t *testing.T) {
	// GIVEN: An input referencing a cash AND a debt account
	// WHEN: It is added in strict mode
	// THEN: Validation rejects it before any write

	f := newTestService(t)
	in := cashInput(f, "-10")
	in.DebtAccountID = f.debtID

	_, err := f.svc.Add(context.Background(), in)
	assert.True(t, ledger.IsValidation(err))

	txs, _ := f.mem.Transactions(context.Background())
	assert.Empty(t, txs)
}

func TestAdd_Relaxed_RecordsFindingsAndProceeds(t *testing.T) {
	// GIVEN: A zero-amount input under relaxed validation
	// WHEN: It is added
	// THEN: The write proceeds anyway

	mem := store.NewMemory()
	f := newFixture(t, mem, mem, false)
	in := cashInput(f, "0")

	created, err := f.svc.Add(context.Background(), in)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
}

func TestAdd_NormalizesDebtKind(t *testing.T) {
	// GIVEN: Unsigned amounts flagged purchase and payment
	// WHEN: They are added against a debt account
	// THEN: Purchase stores negative, payment stores positive

	f := newTestService(t)
	ctx := context.Background()

	purchase := debtInput(f, "30", "Groceries")
	purchase.DebtKind = ledger.DebtKindPurchase
	created, err := f.svc.Add(ctx, purchase)
	require.NoError(t, err)
	assert.True(t, created.Amount.Equal(dec("-30")))

	payment := debtInput(f, "30", ledger.CategoryDebt)
	payment.DebtKind = ledger.DebtKindPayment
	created, err = f.svc.Add(ctx, payment)
	require.NoError(t, err)
	assert.True(t, created.Amount.Equal(dec("30")))
}

// =============================================================================
// REFERENTIAL INTEGRITY
// =============================================================================

func TestAdd_UnknownAccount_RejectedBeforeWrite(t *testing.T) {
	// GIVEN: An input referencing a debt account id the store has never seen
	// WHEN: It is added
	// THEN: A referential error comes back and nothing was written

	f := newTestService(t)
	in := debtInput(f, "-30", "Groceries")
	in.DebtAccountID = "no-such-account"

	_, err := f.svc.Add(context.Background(), in)
	assert.True(t, ledger.IsReferential(err))

	var ref *ledger.ReferentialIntegrityError
	require.ErrorAs(t, err, &ref)
	assert.Equal(t, ledger.AccountDebt, ref.AccountType)
	assert.Equal(t, "no-such-account", ref.AccountID)

	txs, _ := f.mem.Transactions(context.Background())
	assert.Empty(t, txs, "failed reference check must not write")
	assert.Equal(t, 0, f.svc.Cache().Len(), "cache must be untouched")
}

func TestAddWithBalance_UnknownAccount_BalanceUntouched(t *testing.T) {
	f := newTestService(t)
	in := debtInput(f, "-30", "Groceries")
	in.DebtAccountID = "no-such-account"

	_, err := f.svc.AddWithBalance(context.Background(), in)
	assert.True(t, ledger.IsReferential(err))
	assert.True(t, debtBalance(t, f.mem, f.debtID).Equal(dec("500")))
}

// =============================================================================
// READS AND CACHING
// =============================================================================

func TestGet_ServesFromCache(t *testing.T) {
	// GIVEN: A transaction read once (now cached)
	// WHEN: The store is mutated behind the service's back and Get re-runs
	// THEN: The cached copy is served; the cache, not the store, answers

	f := newTestService(t)
	ctx := context.Background()

	created, err := f.svc.Add(ctx, cashInput(f, "-12.50"))
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "test entry", got.Description)

	behind := *created
	behind.Description = "changed behind the cache"
	_, err = f.mem.UpdateTransaction(ctx, behind)
	require.NoError(t, err)

	got, err = f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "test entry", got.Description)
}

func TestList_InvalidatedByMutation(t *testing.T) {
	// GIVEN: A cached listing
	// WHEN: A transaction is added through the service
	// THEN: The next List reflects the new record

	f := newTestService(t)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, cashInput(f, "-10"))
	require.NoError(t, err)
	first, err := f.svc.List(ctx, ledger.ListFilter{})
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = f.svc.Add(ctx, cashInput(f, "-20"))
	require.NoError(t, err)
	second, err := f.svc.List(ctx, ledger.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, second, 2)
}

func TestList_FiltersAndSorts(t *testing.T) {
	// GIVEN: Transactions across two accounts and dates
	// WHEN: Listing filtered by the cash account
	// THEN: Only its transactions come back, newest first

	f := newTestService(t)
	ctx := context.Background()

	older := cashInput(f, "-10")
	older.Date = time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)
	newer := cashInput(f, "-20")
	newer.Date = time.Date(2026, time.February, 5, 0, 0, 0, 0, time.UTC)

	_, err := f.svc.Add(ctx, older)
	require.NoError(t, err)
	_, err = f.svc.Add(ctx, newer)
	require.NoError(t, err)
	_, err = f.svc.Add(ctx, debtInput(f, "-30", "Groceries"))
	require.NoError(t, err)

	got, err := f.svc.List(ctx, ledger.ListFilter{AccountID: f.cashID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Date.After(got[1].Date), "newest first")
}

func TestCashBalance_DerivedBySummation(t *testing.T) {
	f := newTestService(t)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, cashInput(f, "100"))
	require.NoError(t, err)
	_, err = f.svc.Add(ctx, cashInput(f, "-12.50"))
	require.NoError(t, err)

	balance, err := f.svc.CashBalance(ctx, f.cashID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("87.5")))
}

func TestCashBalance_UnknownAccount(t *testing.T) {
	f := newTestService(t)
	_, err := f.svc.CashBalance(context.Background(), "no-such-account")
	assert.True(t, ledger.IsReferential(err))
}

// =============================================================================
// COMPOSITE: CREATE
// =============================================================================

func TestAddWithBalance_AppliesSignConvention(t *testing.T) {
	// GIVEN: A debt account owing 500
	// WHEN: A -30 purchase is created with balance sync
	// THEN: The record persists and the owed balance grows to 530

	f := newTestService(t)
	ctx := context.Background()

	created, err := f.svc.AddWithBalance(ctx, debtInput(f, "-30", "Groceries"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.True(t, debtBalance(t, f.mem, f.debtID).Equal(dec("530")))
}

func TestAddWithBalance_PublishesEvent(t *testing.T) {
	f := newTestService(t)

	var events []string
	f.svc.Bus().Subscribe("transaction:*", func(e ledger.Event) {
		events = append(events, e.Name)
	})

	_, err := f.svc.AddWithBalance(context.Background(), debtInput(f, "-30", "Groceries"))
	require.NoError(t, err)
	assert.Equal(t, []string{ledger.EventTransactionAdded}, events)
}

func TestAddWithBalance_BalanceWriteFails_Compensates(t *testing.T) {
	// GIVEN: A store whose next balance write fails
	// WHEN: A create-with-balance runs
	// THEN: The persisted record is deleted again and the error is the
	//       original store failure, not a compensation failure

	mem := store.NewMemory()
	flaky := &flakyStore{Memory: mem, failUpdates: 1}
	f := newFixture(t, flaky, mem, true)

	_, err := f.svc.AddWithBalance(context.Background(), debtInput(f, "-30", "Groceries"))
	require.Error(t, err)
	assert.False(t, ledger.IsCompensationFailure(err))

	txs, _ := mem.Transactions(context.Background())
	assert.Empty(t, txs, "persisted record must be compensated away")
	assert.True(t, debtBalance(t, mem, f.debtID).Equal(dec("500")))
}

func TestAddWithBalance_CompensationAlsoFails_Fatal(t *testing.T) {
	// GIVEN: A store where every balance write fails
	// WHEN: A create-with-balance runs (forward fails, undo fails too)
	// THEN: The error is the fatal compensation failure carrying both causes

	mem := store.NewMemory()
	flaky := &flakyStore{Memory: mem, failUpdates: 100}
	f := newFixture(t, flaky, mem, true)

	_, err := f.svc.AddWithBalance(context.Background(), debtInput(f, "-30", "Groceries"))
	require.Error(t, err)
	assert.True(t, ledger.IsCompensationFailure(err))

	var comp *ledger.CompensationError
	require.ErrorAs(t, err, &comp)
	assert.Equal(t, "create-with-balance", comp.Label)
	assert.Error(t, comp.Original)
	assert.Error(t, comp.CompensationErr)
}

// =============================================================================
// COMPOSITE: UPDATE
// =============================================================================

func TestUpdateWithBalance_SameAccount_AdjustsOnce(t *testing.T) {
	// GIVEN: A -30 purchase synced onto a 500 balance (now 530)
	// WHEN: The amount is updated to -45
	// THEN: The balance lands at 545

	f := newTestService(t)
	ctx := context.Background()

	created, err := f.svc.AddWithBalance(ctx, debtInput(f, "-30", "Groceries"))
	require.NoError(t, err)

	newAmount := dec("-45")
	updated, err := f.svc.UpdateWithBalance(ctx, created.ID, ledger.TransactionPatch{Amount: &newAmount})
	require.NoError(t, err)

	assert.True(t, updated.Amount.Equal(dec("-45")))
	assert.True(t, debtBalance(t, f.mem, f.debtID).Equal(dec("545")))
}

func TestUpdateWithBalance_MovedAccount_ReverseAndApply(t *testing.T) {
	// GIVEN: A purchase on debt account A
	// WHEN: It is moved to debt account B
	// THEN: A is rewound and B picks up the effect

	f := newTestService(t)
	ctx := context.Background()

	other, err := f.mem.AddDebtAccount(ctx, ledger.DebtAccount{Name: "Amex", Balance: dec("200")})
	require.NoError(t, err)

	created, err := f.svc.AddWithBalance(ctx, debtInput(f, "-30", "Groceries"))
	require.NoError(t, err)
	require.True(t, debtBalance(t, f.mem, f.debtID).Equal(dec("530")))

	_, err = f.svc.UpdateWithBalance(ctx, created.ID, ledger.TransactionPatch{DebtAccountID: &other.ID})
	require.NoError(t, err)

	assert.True(t, debtBalance(t, f.mem, f.debtID).Equal(dec("500")), "old account rewound")
	assert.True(t, debtBalance(t, f.mem, other.ID).Equal(dec("230")), "new account applied")
}

func TestUpdateWithBalance_Failure_RestoresSnapshot(t *testing.T) {
	// GIVEN: A synced purchase and a store whose next balance write fails
	// WHEN: An update-with-balance runs
	// THEN: The transaction reverts to its pre-update snapshot

	mem := store.NewMemory()
	flaky := &flakyStore{Memory: mem}
	f := newFixture(t, flaky, mem, true)
	ctx := context.Background()

	created, err := f.svc.AddWithBalance(ctx, debtInput(f, "-30", "Groceries"))
	require.NoError(t, err)

	flaky.failUpdates = 1
	newAmount := dec("-45")
	_, err = f.svc.UpdateWithBalance(ctx, created.ID, ledger.TransactionPatch{Amount: &newAmount})
	require.Error(t, err)
	assert.False(t, ledger.IsCompensationFailure(err))

	got, err := mem.Transaction(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec("-30")), "pre-update snapshot restored")
	assert.True(t, debtBalance(t, mem, f.debtID).Equal(dec("530")))
}

// =============================================================================
// COMPOSITE: DELETE
// =============================================================================

func TestDeleteWithBalance_ReversesEffect(t *testing.T) {
	// GIVEN: A -30 purchase synced onto a 500 balance (now 530)
	// WHEN: The transaction is deleted with balance sync
	// THEN: The record is gone and the balance is back at 500

	f := newTestService(t)
	ctx := context.Background()

	created, err := f.svc.AddWithBalance(ctx, debtInput(f, "-30", "Groceries"))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteWithBalance(ctx, created.ID))

	_, err = f.mem.Transaction(ctx, created.ID)
	assert.True(t, ledger.IsNotFound(err))
	assert.True(t, debtBalance(t, f.mem, f.debtID).Equal(dec("500")))
}

func TestDeleteWithBalance_Failure_ReinsertsRecord(t *testing.T) {
	// GIVEN: A synced purchase and a store whose next balance write fails
	// WHEN: A delete-with-balance runs
	// THEN: The deleted record is re-inserted under its original id

	mem := store.NewMemory()
	flaky := &flakyStore{Memory: mem}
	f := newFixture(t, flaky, mem, true)
	ctx := context.Background()

	created, err := f.svc.AddWithBalance(ctx, debtInput(f, "-30", "Groceries"))
	require.NoError(t, err)

	flaky.failUpdates = 1
	err = f.svc.DeleteWithBalance(ctx, created.ID)
	require.Error(t, err)
	assert.False(t, ledger.IsCompensationFailure(err))

	got, err := mem.Transaction(ctx, created.ID)
	require.NoError(t, err, "record should be re-inserted")
	assert.True(t, got.Amount.Equal(dec("-30")))
	assert.True(t, debtBalance(t, mem, f.debtID).Equal(dec("530")))
}

func TestDeleteWithBalance_PendingDrains(t *testing.T) {
	// GIVEN: A synced purchase
	// WHEN: Composite operations complete (success or compensated failure)
	// THEN: The pending registry is empty again

	f := newTestService(t)
	ctx := context.Background()

	created, err := f.svc.AddWithBalance(ctx, debtInput(f, "-30", "Groceries"))
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteWithBalance(ctx, created.ID))

	assert.Equal(t, 0, f.svc.Pending().Len())
}

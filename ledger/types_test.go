package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ryokushen/ledger-engine/ledger"
)

func TestRecurringBill_NextDue(t *testing.T) {
	bill := ledger.RecurringBill{Name: "Rent", DueDay: 15}

	// Before the due day: this month
	from := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC), bill.NextDue(from))

	// After the due day: next month
	from = time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.April, 15, 0, 0, 0, 0, time.UTC), bill.NextDue(from))
}

func TestRecurringBill_NextDue_ClampsToMonthEnd(t *testing.T) {
	// GIVEN: A bill due on the 31st
	// WHEN: Projected into February
	// THEN: The due date clamps to February's last day

	bill := ledger.RecurringBill{Name: "Card", DueDay: 31}
	from := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC), bill.NextDue(from))
}

func TestTransaction_AccountRef(t *testing.T) {
	cash := ledger.Transaction{AccountID: "checking"}
	accountType, id := cash.AccountRef()
	assert.Equal(t, ledger.AccountCash, accountType)
	assert.Equal(t, "checking", id)

	debt := ledger.Transaction{DebtAccountID: "visa"}
	accountType, id = debt.AccountRef()
	assert.Equal(t, ledger.AccountDebt, accountType)
	assert.Equal(t, "visa", id)
}

func TestSumCashTransactions(t *testing.T) {
	txs := []ledger.Transaction{
		{AccountID: "checking", Amount: dec("100")},
		{AccountID: "checking", Amount: dec("-12.50")},
		{AccountID: "savings", Amount: dec("999")},
		{DebtAccountID: "visa", Amount: dec("-30")},
	}
	assert.True(t, ledger.SumCashTransactions(txs, "checking").Equal(dec("87.5")))
	assert.True(t, ledger.SumCashTransactions(txs, "unknown").IsZero())
}

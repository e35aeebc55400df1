/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Amounts cross the wire as decimal strings ("-30.25"), never floats.
  Dates cross as "YYYY-MM-DD".

VALIDATION:
  Validation is done in handlers and in the ledger core, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - query/condition.go: Query/Condition wire shape (used verbatim)
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ryokushen/ledger-engine/ledger"
	"github.com/ryokushen/ledger-engine/query"
)

const dateLayout = "2006-01-02"

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionDTO represents a transaction in API responses.
type TransactionDTO struct {
	ID            string `json:"id"`
	Date          string `json:"date"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	Amount        string `json:"amount"`
	AccountID     string `json:"account_id,omitempty"`
	DebtAccountID string `json:"debt_account_id,omitempty"`
	Cleared       bool   `json:"cleared"`
}

func toTransactionDTO(t ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:            t.ID,
		Date:          t.Date.Format(dateLayout),
		Description:   t.Description,
		Category:      t.Category,
		Amount:        t.Amount.String(),
		AccountID:     t.AccountID,
		DebtAccountID: t.DebtAccountID,
		Cleared:       t.Cleared,
	}
}

func toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	out := make([]TransactionDTO, len(txs))
	for i, t := range txs {
		out[i] = toTransactionDTO(t)
	}
	return out
}

// CreateTransactionRequest is the body for POST /api/transactions.
// debt_kind ("purchase" | "payment") lets clients send unsigned amounts
// for debt entries; the engine normalizes the sign.
type CreateTransactionRequest struct {
	Date          string `json:"date"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	Amount        string `json:"amount"`
	AccountID     string `json:"account_id"`
	DebtAccountID string `json:"debt_account_id"`
	Cleared       bool   `json:"cleared"`
	DebtKind      string `json:"debt_kind,omitempty"`
}

func (r CreateTransactionRequest) toInput() (ledger.TransactionInput, error) {
	date, err := time.Parse(dateLayout, r.Date)
	if err != nil {
		return ledger.TransactionInput{}, fmt.Errorf("bad date %q: want YYYY-MM-DD", r.Date)
	}
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return ledger.TransactionInput{}, fmt.Errorf("bad amount %q", r.Amount)
	}
	return ledger.TransactionInput{
		Date:          date,
		Description:   r.Description,
		Category:      r.Category,
		Amount:        amount,
		AccountID:     r.AccountID,
		DebtAccountID: r.DebtAccountID,
		Cleared:       r.Cleared,
		DebtKind:      ledger.DebtKind(r.DebtKind),
	}, nil
}

// UpdateTransactionRequest is the body for PUT /api/transactions/{id}.
// Absent fields are left untouched.
type UpdateTransactionRequest struct {
	Date          *string `json:"date,omitempty"`
	Description   *string `json:"description,omitempty"`
	Category      *string `json:"category,omitempty"`
	Amount        *string `json:"amount,omitempty"`
	AccountID     *string `json:"account_id,omitempty"`
	DebtAccountID *string `json:"debt_account_id,omitempty"`
	Cleared       *bool   `json:"cleared,omitempty"`
	DebtKind      string  `json:"debt_kind,omitempty"`
}

func (r UpdateTransactionRequest) toPatch() (ledger.TransactionPatch, error) {
	patch := ledger.TransactionPatch{
		Description:   r.Description,
		Category:      r.Category,
		AccountID:     r.AccountID,
		DebtAccountID: r.DebtAccountID,
		Cleared:       r.Cleared,
		DebtKind:      ledger.DebtKind(r.DebtKind),
	}
	if r.Date != nil {
		date, err := time.Parse(dateLayout, *r.Date)
		if err != nil {
			return patch, fmt.Errorf("bad date %q: want YYYY-MM-DD", *r.Date)
		}
		patch.Date = &date
	}
	if r.Amount != nil {
		amount, err := decimal.NewFromString(*r.Amount)
		if err != nil {
			return patch, fmt.Errorf("bad amount %q", *r.Amount)
		}
		patch.Amount = &amount
	}
	return patch, nil
}

// =============================================================================
// BATCH
// =============================================================================

// BatchAddRequest is the body for POST /api/transactions/batch.
type BatchAddRequest struct {
	Transactions      []CreateTransactionRequest `json:"transactions"`
	ChunkSize         int                        `json:"chunk_size,omitempty"`
	DelayMillis       int                        `json:"delay_ms,omitempty"`
	StopOnError       bool                       `json:"stop_on_error,omitempty"`
	RollbackOnFailure bool                       `json:"rollback_on_failure,omitempty"`
}

// BatchDeleteRequest is the body for POST /api/transactions/batch-delete.
type BatchDeleteRequest struct {
	IDs         []string `json:"ids"`
	ChunkSize   int      `json:"chunk_size,omitempty"`
	StopOnError bool     `json:"stop_on_error,omitempty"`
}

// BatchFailureDTO is one failed item with its original index.
type BatchFailureDTO struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchResultDTO is the outcome of a batch run.
type BatchResultDTO struct {
	Successful []TransactionDTO  `json:"successful"`
	Failed     []BatchFailureDTO `json:"failed"`
	Aborted    bool              `json:"aborted"`
	RolledBack bool              `json:"rolled_back"`
}

// =============================================================================
// ACCOUNTS AND BILLS
// =============================================================================

// CashAccountDTO includes the derived balance.
type CashAccountDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Institution string `json:"institution,omitempty"`
	Active      bool   `json:"active"`
	Balance     string `json:"balance"`
}

// DebtAccountDTO includes the stored balance.
type DebtAccountDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Balance        string `json:"balance"`
	InterestRate   string `json:"interest_rate"`
	MinimumPayment string `json:"minimum_payment"`
	DueDay         int    `json:"due_day,omitempty"`
}

func toDebtAccountDTO(a ledger.DebtAccount) DebtAccountDTO {
	return DebtAccountDTO{
		ID:             a.ID,
		Name:           a.Name,
		Balance:        a.Balance.String(),
		InterestRate:   a.InterestRate.String(),
		MinimumPayment: a.MinimumPayment.String(),
		DueDay:         a.DueDay,
	}
}

// RecurringBillDTO includes the next projected due date.
type RecurringBillDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Amount    string `json:"amount"`
	DueDay    int    `json:"due_day"`
	Category  string `json:"category,omitempty"`
	AccountID string `json:"account_id,omitempty"`
	Active    bool   `json:"active"`
	NextDue   string `json:"next_due"`
}

func toRecurringBillDTO(b ledger.RecurringBill, now time.Time) RecurringBillDTO {
	return RecurringBillDTO{
		ID:        b.ID,
		Name:      b.Name,
		Amount:    b.Amount.String(),
		DueDay:    b.DueDay,
		Category:  b.Category,
		AccountID: b.AccountID,
		Active:    b.Active,
		NextDue:   b.NextDue(now).Format(dateLayout),
	}
}

// =============================================================================
// SAVED SEARCHES
// =============================================================================

// SaveSearchRequest is the body for POST /api/searches. The query field
// is the wire shape the evaluator consumes, persisted verbatim.
type SaveSearchRequest struct {
	Name  string      `json:"name"`
	Query query.Query `json:"query"`
}

// parseDecimalOrZero treats an absent amount field as zero.
func parseDecimalOrZero(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

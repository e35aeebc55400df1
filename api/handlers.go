/*
handlers.go - HTTP API handlers for the ledger engine

PURPOSE:
  Exposes the ledger engine via REST. Handles HTTP request/response and
  JSON serialization, delegating everything else to the engine.

ENDPOINTS:
  Transactions:
    GET    /api/transactions               List (filterable)
    POST   /api/transactions               Create with balance sync
    GET    /api/transactions/{id}          Get one
    PUT    /api/transactions/{id}          Update with balance adjust
    DELETE /api/transactions/{id}          Delete with balance reverse
    POST   /api/transactions/batch         Bulk create
    POST   /api/transactions/batch-delete  Bulk delete
    POST   /api/transactions/search        Composite query search

  Accounts:
    GET/POST /api/accounts                 Cash accounts (derived balance)
    GET      /api/accounts/{id}
    GET/POST /api/debt-accounts            Debt accounts (stored balance)
    GET      /api/debt-accounts/{id}

  Bills:
    GET/POST /api/bills

  Saved searches:
    GET/POST /api/searches
    DELETE   /api/searches/{id}
    POST     /api/searches/{id}/run
    GET      /api/searches/history

ERROR HANDLING:
  Errors are returned as JSON with a kind and mapped status:
  - 400: validation, malformed input, unknown account reference
  - 404: record not found
  - 500: store failures; compensation failures carry kind
         "compensation_failed" and must page someone, not be retried

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/ryokushen/ledger-engine/ledger"
	"github.com/ryokushen/ledger-engine/query"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger *ledger.Service
	Search *query.SearchService
	Store  ledger.Store
	Log    *logrus.Logger
}

// NewHandler creates a handler around the engine services.
func NewHandler(svc *ledger.Service, search *query.SearchService, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{Ledger: svc, Search: search, Store: svc.Store(), Log: log}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filter := ledger.ListFilter{
		AccountID:     r.URL.Query().Get("account_id"),
		DebtAccountID: r.URL.Query().Get("debt_account_id"),
		Category:      r.URL.Query().Get("category"),
	}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "bad_request", "from: want YYYY-MM-DD")
			return
		}
		filter.From = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "bad_request", "to: want YYYY-MM-DD")
			return
		}
		filter.To = t
	}
	if v := r.URL.Query().Get("cleared"); v != "" {
		cleared := v == "true"
		filter.Cleared = &cleared
	}

	txs, err := h.Ledger.List(r.Context(), filter)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Ledger.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toTransactionDTO(*tx))
}

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	created, err := h.Ledger.AddWithBalance(r.Context(), in)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toTransactionDTO(*created))
}

func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req UpdateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	updated, err := h.Ledger.UpdateWithBalance(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toTransactionDTO(*updated))
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.DeleteWithBalance(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// BATCH
// =============================================================================

func (h *Handler) BatchAddTransactions(w http.ResponseWriter, r *http.Request) {
	var req BatchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	inputs := make([]ledger.TransactionInput, len(req.Transactions))
	for i, item := range req.Transactions {
		in, err := item.toInput()
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		inputs[i] = in
	}

	result := h.Ledger.AddBatchWithBalance(r.Context(), inputs, ledger.BatchOptions{
		ChunkSize:          req.ChunkSize,
		DelayBetweenChunks: time.Duration(req.DelayMillis) * time.Millisecond,
		StopOnError:        req.StopOnError,
		RollbackOnFailure:  req.RollbackOnFailure,
	})

	dto := BatchResultDTO{Aborted: result.Aborted, RolledBack: result.RolledBack}
	for _, su := range result.Successful {
		dto.Successful = append(dto.Successful, toTransactionDTO(*su.Result))
	}
	for _, f := range result.Failed {
		dto.Failed = append(dto.Failed, BatchFailureDTO{Index: f.Index, Error: f.Err.Error()})
	}
	h.writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) BatchDeleteTransactions(w http.ResponseWriter, r *http.Request) {
	var req BatchDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	result := h.Ledger.DeleteBatchWithBalance(r.Context(), req.IDs, ledger.BatchOptions{
		ChunkSize:   req.ChunkSize,
		StopOnError: req.StopOnError,
	})

	dto := BatchResultDTO{Aborted: result.Aborted}
	for _, f := range result.Failed {
		dto.Failed = append(dto.Failed, BatchFailureDTO{Index: f.Index, Error: f.Err.Error()})
	}
	h.writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// SEARCH
// =============================================================================

func (h *Handler) SearchTransactions(w http.ResponseWriter, r *http.Request) {
	var q query.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if err := q.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	results, err := h.Search.Search(r.Context(), q)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if err := h.Search.Saved.RecordHistory(r.Context(), q); err != nil {
		h.Log.WithError(err).Warn("failed to record search history")
	}
	h.writeJSON(w, http.StatusOK, toTransactionDTOs(results))
}

func (h *Handler) ListSavedSearches(w http.ResponseWriter, r *http.Request) {
	searches, err := h.Search.Saved.List(r.Context())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, searches)
}

func (h *Handler) SaveSearch(w http.ResponseWriter, r *http.Request) {
	var req SaveSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	saved, err := h.Search.Saved.Save(r.Context(), req.Name, req.Query)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) DeleteSavedSearch(w http.ResponseWriter, r *http.Request) {
	if err := h.Search.Saved.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RunSavedSearch(w http.ResponseWriter, r *http.Request) {
	results, err := h.Search.RunSaved(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toTransactionDTOs(results))
}

func (h *Handler) SearchHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.Search.Saved.History(r.Context())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, history)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (h *Handler) ListCashAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Store.CashAccounts(r.Context())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	out := make([]CashAccountDTO, 0, len(accounts))
	for _, a := range accounts {
		balance, err := h.Ledger.CashBalance(r.Context(), a.ID)
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		out = append(out, CashAccountDTO{
			ID: a.ID, Name: a.Name, Institution: a.Institution,
			Active: a.Active, Balance: balance.String(),
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetCashAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	account, err := h.Store.CashAccount(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	balance, err := h.Ledger.CashBalance(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CashAccountDTO{
		ID: account.ID, Name: account.Name, Institution: account.Institution,
		Active: account.Active, Balance: balance.String(),
	})
}

func (h *Handler) CreateCashAccount(w http.ResponseWriter, r *http.Request) {
	var account ledger.CashAccount
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	created, err := h.Store.AddCashAccount(r.Context(), account)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, CashAccountDTO{
		ID: created.ID, Name: created.Name, Institution: created.Institution,
		Active: created.Active, Balance: "0",
	})
}

func (h *Handler) ListDebtAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Store.DebtAccounts(r.Context())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	out := make([]DebtAccountDTO, len(accounts))
	for i, a := range accounts {
		out[i] = toDebtAccountDTO(a)
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetDebtAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.Store.DebtAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toDebtAccountDTO(*account))
}

func (h *Handler) CreateDebtAccount(w http.ResponseWriter, r *http.Request) {
	var req DebtAccountDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	account := ledger.DebtAccount{ID: req.ID, Name: req.Name, DueDay: req.DueDay}
	var err error
	if account.Balance, err = parseDecimalOrZero(req.Balance); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "bad balance")
		return
	}
	if account.InterestRate, err = parseDecimalOrZero(req.InterestRate); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "bad interest_rate")
		return
	}
	if account.MinimumPayment, err = parseDecimalOrZero(req.MinimumPayment); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "bad minimum_payment")
		return
	}

	created, err := h.Store.AddDebtAccount(r.Context(), account)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toDebtAccountDTO(*created))
}

// =============================================================================
// BILLS
// =============================================================================

func (h *Handler) ListRecurringBills(w http.ResponseWriter, r *http.Request) {
	bills, err := h.Store.RecurringBills(r.Context())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	now := time.Now()
	out := make([]RecurringBillDTO, len(bills))
	for i, b := range bills {
		out[i] = toRecurringBillDTO(b, now)
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateRecurringBill(w http.ResponseWriter, r *http.Request) {
	var req RecurringBillDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	bill := ledger.RecurringBill{
		ID: req.ID, Name: req.Name, DueDay: req.DueDay,
		Category: req.Category, AccountID: req.AccountID, Active: req.Active,
	}
	var err error
	if bill.Amount, err = parseDecimalOrZero(req.Amount); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "bad amount")
		return
	}

	created, err := h.Store.AddRecurringBill(r.Context(), bill)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toRecurringBillDTO(*created, time.Now()))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Log.WithError(err).Error("failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, kind, msg string) {
	h.writeJSON(w, status, ErrorResponse{Error: msg, Kind: kind})
}

// writeEngineError maps engine error kinds to HTTP statuses. Compensation
// failures are logged at error level before being surfaced - they signal
// an inconsistent external state, not a retryable request problem.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	var comp *ledger.CompensationError
	switch {
	case errors.As(err, &comp):
		h.Log.WithField("label", comp.Label).WithError(err).Error("compensation failure: manual reconciliation required")
		h.writeError(w, http.StatusInternalServerError, "compensation_failed", comp.Error())
	case ledger.IsValidation(err):
		h.writeError(w, http.StatusBadRequest, "validation", err.Error())
	case ledger.IsReferential(err):
		h.writeError(w, http.StatusBadRequest, "unknown_account", err.Error())
	case ledger.IsNotFound(err):
		h.writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		h.Log.WithError(err).Error("request failed")
		h.writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

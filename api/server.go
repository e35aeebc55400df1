/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/transactions/*    Transaction CRUD, batch, and search
  /api/accounts/*        Cash accounts (derived balances)
  /api/debt-accounts/*   Debt accounts (stored balances)
  /api/bills/*           Recurring bills
  /api/searches/*        Saved searches and history

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Transaction routes
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/", h.CreateTransaction)
			r.Post("/batch", h.BatchAddTransactions)
			r.Post("/batch-delete", h.BatchDeleteTransactions)
			r.Post("/search", h.SearchTransactions)
			r.Get("/{id}", h.GetTransaction)
			r.Put("/{id}", h.UpdateTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
		})

		// Cash account routes
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListCashAccounts)
			r.Post("/", h.CreateCashAccount)
			r.Get("/{id}", h.GetCashAccount)
		})

		// Debt account routes
		r.Route("/debt-accounts", func(r chi.Router) {
			r.Get("/", h.ListDebtAccounts)
			r.Post("/", h.CreateDebtAccount)
			r.Get("/{id}", h.GetDebtAccount)
		})

		// Recurring bill routes
		r.Route("/bills", func(r chi.Router) {
			r.Get("/", h.ListRecurringBills)
			r.Post("/", h.CreateRecurringBill)
		})

		// Saved search routes
		r.Route("/searches", func(r chi.Router) {
			r.Get("/", h.ListSavedSearches)
			r.Post("/", h.SaveSearch)
			r.Get("/history", h.SearchHistory)
			r.Delete("/{id}", h.DeleteSavedSearch)
			r.Post("/{id}/run", h.RunSavedSearch)
		})
	})

	return r
}

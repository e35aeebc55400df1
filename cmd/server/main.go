/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ledger engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, config.yaml, LEDGER_* env vars)
  2. Configure logging
  3. Initialize SQLite store
  4. Wire the ledger core and search services
  5. Configure HTTP router
  6. Start server with graceful shutdown

CONFIGURATION:
  LEDGER_SERVER_ADDR           Listen address (default :8080)
  LEDGER_STORE_PATH            SQLite database path (":memory:" works)
  LEDGER_CACHE_ENTITY_TTL_SECONDS
  LEDGER_CACHE_SEARCH_TTL_SECONDS
  LEDGER_CACHE_SEARCH_SIZE
  LEDGER_VALIDATION_STRICT     Reject invalid records instead of logging
  LEDGER_LOG_LEVEL / LEDGER_LOG_FORMAT

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - config/config.go: Configuration loading
  - api/server.go: Router configuration
  - ledger/core.go: Engine wiring
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ryokushen/ledger-engine/api"
	"github.com/ryokushen/ledger-engine/config"
	"github.com/ryokushen/ledger-engine/ledger"
	"github.com/ryokushen/ledger-engine/query"
	"github.com/ryokushen/ledger-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := config.ConfigureLogging(cfg)

	// Store
	db, err := sqlite.New(cfg.Store.Path)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer db.Close()

	// Engine
	svc := ledger.NewService(db, ledger.ServiceConfig{
		EntityCacheTTL: cfg.EntityTTL(),
		Strict:         cfg.Validation.Strict,
		Logger:         log,
	})
	search := query.NewSearchService(svc, db, query.SearchConfig{
		CacheTTL:  cfg.SearchTTL(),
		CacheSize: cfg.Cache.SearchSize,
	})

	// HTTP
	handler := api.NewHandler(svc, search, log)
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}
	log.Info("server stopped")
}

/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the accounting engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and environment configuration
  2. Build the root logger
  3. Open the SQLite store and seed the chart of accounts
  4. Wire the invoice lifecycle manager and HTTP handler
  5. Start the server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

ENVIRONMENT:
  PORT, DB_PATH, LOG_LEVEL, LOG_PRETTY, ALERT_DUE_SOON_DAYS, CORS_ORIGINS
  (see config package for defaults)

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MinaMohsen466/accounting-engine/api"
	"github.com/MinaMohsen466/accounting-engine/config"
	"github.com/MinaMohsen466/accounting-engine/ledger"
	"github.com/MinaMohsen466/accounting-engine/logger"
	"github.com/MinaMohsen466/accounting-engine/store/sqlite"
)

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer store.Close()

	ctx := context.Background()
	if err := seedChart(ctx, store); err != nil {
		log.Fatal().Err(err).Msg("failed to seed chart of accounts")
	}

	handler := api.NewHandler(store)
	handler.Log = logger.Component(log, "api")
	handler.Manager.Log = logger.Component(log, "invoice")
	handler.Parties.Log = logger.Component(log, "party")
	handler.DueSoonDays = cfg.DueSoonDays

	router := api.NewRouter(handler, cfg.CORSOrigins)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("db", cfg.DBPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}

// seedChart writes the default chart of accounts on first run. Existing
// accounts (and their cached balances) are left untouched.
func seedChart(ctx context.Context, store *sqlite.Store) error {
	existing, err := store.Accounts(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, a := range ledger.DefaultChart() {
		if err := store.SaveAccount(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

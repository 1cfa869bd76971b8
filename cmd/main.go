package main

import (
	"chat-room/api"
	"chat-room/internal"
	"chat-room/observability"
	"chat-room/repositories"
	"chat-room/runtime/workers"
	"chat-room/services"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat room terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and keeps the server alive until SIGINT/SIGTERM.
// Returning instead of exiting lets the deferred cleanups (BadgerDB, sequence) run.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig(".env")
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	participantRepository := repositories.NewParticipantRepository(db, log)
	messageRepository, err := repositories.NewMessageRepository(db, log)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		if err := messageRepository.Close(); err != nil {
			log.Warn("Releasing message sequence failed", "error", err)
		}
	}()

	// 3. Services
	metrics := observability.NewChatMetrics()
	presenceService := services.NewPresenceService(log, participantRepository, messageRepository, metrics)
	messageService := services.NewMessageService(log, participantRepository, messageRepository, metrics)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Background eviction, supervised
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewEvictionWorker(log, presenceService, config.SweepInterval, config.StaleThreshold))
	workersCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	supervisorDone := make(chan struct{})
	go func() {
		sup.Run(workersCtx)
		close(supervisorDone)
	}()

	// 6. HTTP server
	server := &http.Server{
		Addr: config.Address(),
		Handler: api.NewRouter(log, presenceService, messageService, metrics, api.Options{
			RateLimitRPS:   float64(config.RateLimitRPS),
			RateLimitBurst: config.RateLimitBurst,
		}),
	}
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	code := exitOK
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err = <-errChan:
		log.Error("HTTP server failed", "error", err)
		code = exitRuntime
	}

	// 8. Final Cleanup: stop accepting requests, then stop the eviction loop
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn("HTTP shutdown incomplete", "error", shutdownErr)
	}
	sup.Stop()
	cancelWorkers()
	<-supervisorDone
	log.Info("Program stopped cleanly")

	return code, err
}

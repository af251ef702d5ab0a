package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/fridgetracker/internal/config"
	"github.com/dukerupert/fridgetracker/internal/database"
	"github.com/dukerupert/fridgetracker/internal/inventory"
	"github.com/dukerupert/fridgetracker/internal/logging"
	"github.com/dukerupert/fridgetracker/internal/server"
	"github.com/dukerupert/fridgetracker/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFile)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rs, creds, err := server.OpenRemote(ctx, cfg.Remote, store.NewCredentialStore(db))
	if err != nil {
		return fmt.Errorf("open remote: %w", err)
	}

	inv := inventory.NewStore()
	srv := server.New(db, inv, rs, creds, cfg, logger)

	engine := srv.Engine()
	if err := engine.LoadCache(ctx); err != nil {
		logger.Warn("local cache unreadable", "error", err)
	}
	if state, err := engine.Pull(ctx); err != nil {
		logger.Warn("initial pull failed, serving local cache", "state", state, "error", err)
	}

	srv.Start(ctx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("FridgeTracker running", "addr", "http://localhost:"+cfg.Port, "remote", cfg.Remote.Kind, "items", inv.Len())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	srv.Stop()
	return nil
}

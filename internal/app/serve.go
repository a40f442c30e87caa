package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"meal-planner/internal/config"
	"meal-planner/internal/database"
	"meal-planner/internal/metrics"
	"meal-planner/internal/server"
	"meal-planner/internal/storage"
)

// NewServer opens the database and builds the API server on it. The returned close
// function releases the database.
func NewServer(cfg *config.Config, logger *slog.Logger) (*server.Server, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	signer, err := NewSigner(cfg)
	if err != nil {
		return nil, nil, err
	}
	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	srv := server.New(server.Options{
		Addr:     cfg.ServerAddr,
		Signer:   signer,
		Entries:  storage.NewEntryRepository(db.SQL),
		Saved:    storage.NewSavedRecipeRepository(db.SQL, logger),
		Metrics:  metrics.NewStore(db.SQL),
		DataPath: cfg.DatabasePath,
		Logger:   logger,
		Debug:    cfg.IsDevelopment(),
	})
	return srv, db.Close, nil
}

// Serve runs the API server until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	srv, closeDB, err := NewServer(cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// CleanupMetrics removes request metrics older than days and returns how many were removed.
func CleanupMetrics(ctx context.Context, cfg *config.Config, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("days must be positive, got %d", days)
	}
	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return 0, fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	affected, err := metrics.NewStore(db.SQL).Cleanup(ctx, days)
	if err != nil {
		return 0, fmt.Errorf("cleanup failed: %w", err)
	}
	return affected, nil
}

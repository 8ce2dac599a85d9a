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

	"github.com/spf13/pflag"

	"github.com/conorfennell/recall/internal/config"
	"github.com/conorfennell/recall/internal/gitsource"
	"github.com/conorfennell/recall/internal/review"
	"github.com/conorfennell/recall/internal/storage"
	"github.com/conorfennell/recall/internal/sync"
	"github.com/conorfennell/recall/internal/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "recall: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	params, err := cfg.Params()
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.Database.Path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncer := sync.New(db, cfg.Sync.ReposDir, logger)

	switch {
	case cfg.AddSource != "":
		return addSource(ctx, db, cfg)
	case cfg.SyncOnce:
		report, err := syncer.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Synced %d sources: %d added, %d removed, %d failed, %d errors.\n",
			report.Sources, report.Added, report.Removed, report.Failed, report.Errors)
		return nil
	}

	if cfg.Sync.Interval > 0 {
		scheduler, err := syncer.Schedule(ctx, cfg.Sync.Interval)
		if err != nil {
			return fmt.Errorf("failed to schedule sync: %w", err)
		}
		defer scheduler.Stop()
		logger.Info("periodic sync enabled", "interval", cfg.Sync.Interval)
	}

	reviews := review.NewService(db, params,
		review.WithLogger(logger),
		review.WithMaxAttempts(cfg.Review.MaxAttempts),
	)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           web.NewServer(db, reviews, syncer, cfg.Server.APIKey, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// addSource registers cfg.AddSource for the deck named by --deck and --user.
func addSource(ctx context.Context, db *storage.DB, cfg *config.Config) error {
	if cfg.Deck == "" || cfg.User == "" {
		return errors.New("--add-source requires --deck and --user")
	}
	if _, err := db.FindDeck(ctx, cfg.User, cfg.Deck); err != nil {
		return err
	}

	existing, err := db.FindSourceByPath(ctx, cfg.AddSource)
	if err != nil {
		return err
	}
	if existing != nil {
		fmt.Printf("Source already registered: %s (id %d)\n", existing.Path, existing.ID)
		return nil
	}

	sourceType := storage.SourceLocal
	if gitsource.IsRepoURL(cfg.AddSource) {
		sourceType = storage.SourceGit
	}
	id, err := db.InsertSource(ctx, cfg.AddSource, sourceType, cfg.Deck)
	if err != nil {
		return err
	}
	fmt.Printf("Added %s source %s (id %d)\n", sourceType, cfg.AddSource, id)
	return nil
}

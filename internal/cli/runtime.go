package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgstash/pgstash/internal/backup"
	"github.com/pgstash/pgstash/internal/config"
	"github.com/pgstash/pgstash/internal/health"
	"github.com/pgstash/pgstash/internal/server"
	"github.com/pgstash/pgstash/internal/staging"
	"github.com/pgstash/pgstash/internal/storage"
)

// runFunc is the body of a subcommand, executed against a fully wired
// orchestrator.
type runFunc func(ctx context.Context, orch *backup.Orchestrator, cfg *config.Config) error

// run loads configuration, builds the collaborator graph, optionally
// starts the metrics/health server, and executes fn under a
// signal-aware context.
func run(cmd *cobra.Command, fn runFunc) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create storage client: %w", err)
	}

	stage, err := staging.NewStore(cfg.StagingRoot)
	if err != nil {
		return fmt.Errorf("failed to create staging store: %w", err)
	}

	dumper := backup.NewPostgresDumper(cfg)
	restorer := backup.NewPostgresRestorer(cfg)

	orch := backup.NewOrchestrator(cfg, store, dumper, restorer, stage, logger)

	var wg sync.WaitGroup
	var srv *server.Server
	if cfg.MetricsPort > 0 {
		serverCfg := server.DefaultConfig()
		serverCfg.Port = cfg.MetricsPort
		srv = server.New(serverCfg, logger)
		srv.RegisterHealthCheck("staging", stagingCheck(cfg.StagingRoot))

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Start(); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	runErr := fn(ctx, orch, cfg)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown failed", "error", err)
		}
		wg.Wait()
	}

	return runErr
}

// stagingCheck verifies the staging root is writable.
func stagingCheck(root string) health.CheckFunc {
	return func(ctx context.Context) health.Check {
		check := health.Check{Status: health.StatusHealthy, Timestamp: time.Now()}

		f, err := os.CreateTemp(root, ".healthcheck-*")
		if err != nil {
			check.Status = health.StatusUnhealthy
			check.Details = map[string]any{"error": err.Error()}
			return check
		}
		name := f.Name()
		_ = f.Close()
		_ = os.Remove(name)
		return check
	}
}

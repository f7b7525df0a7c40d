package commands

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

	"github.com/posflow/posflow/internal/app"
	"github.com/posflow/posflow/internal/config"
)

// shutdownTimeout bounds how long the metrics server may take to drain.
const shutdownTimeout = 10 * time.Second

// RunWorker starts the audit projector loop and, when metrics are enabled,
// an HTTP endpoint exposing them. Blocks until receiving SIGINT/SIGTERM or
// encountering a fatal error, then shuts both down.
func RunWorker(ctx context.Context, version string) error {
	cfg := config.Load()

	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting worker", slog.String("version", version))

	defer closeContainer(container, logger)

	projector, err := container.AuditProjector()
	if err != nil {
		return fmt.Errorf("failed to initialize audit projector: %w", err)
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	workerErr := make(chan error, 2)
	go func() {
		if err := projector.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			workerErr <- fmt.Errorf("audit projector error: %w", err)
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		provider, err := container.MetricsProvider()
		if err != nil {
			return fmt.Errorf("failed to initialize metrics provider: %w", err)
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", provider.Handler())
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			logger.Info("metrics endpoint listening", slog.String("addr", metricsServer.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				workerErr <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-workerErr:
		logger.Error("worker error, initiating shutdown", slog.Any("error", err))
		runErr = err
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	return runErr
}

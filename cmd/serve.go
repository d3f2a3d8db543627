package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/tradescholar/supportkb/internal/api"
	"github.com/tradescholar/supportkb/internal/app"
	"github.com/tradescholar/supportkb/internal/config"
	"github.com/tradescholar/supportkb/internal/ingest"
)

// parseRateBurst reads SUPPORTKB_RATE_BURST from the environment.
// Returns 0 (use default) if unset or invalid.
func parseRateBurst() int {
	v := os.Getenv("SUPPORTKB_RATE_BURST")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // ask waits on model generation
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

// runServe initializes and starts the HTTP API server.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr, err := parseServeAddr(cfg.ServeAddr)
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting HTTP API server", "version", AppVersion)

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	apiServer, err := api.NewServer(ctx, api.ServerConfig{
		Logger:     logger,
		Answerer:   a.Router,
		Entries:    a.Entries,
		Ingestor:   a.Ingest,
		Counter:    a.Corpus,
		Pool:       a.DBPool,
		AdminKey:   cfg.AdminKey,
		TrustProxy: cfg.TrustProxy,
		RateBurst:  parseRateBurst(),
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	var background sync.WaitGroup
	scheduleIngestion(ctx, &background, a.Ingest, cfg.Ingest, logger)

	srv := &http.Server{
		Addr:              addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", addr,
		"api", "/api/v1/*",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		background.Wait()
		return nil
	case err := <-errCh:
		cancel()
		background.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}

// scheduleIngestion starts the background ingestion runs configured for
// serve mode: an optional run at startup and an optional fixed-interval
// schedule. Both share the pipeline's single-flight guard with manual
// admin triggers, so overlapping schedules skip instead of stacking.
func scheduleIngestion(ctx context.Context, wg *sync.WaitGroup, pipeline *ingest.Pipeline, cfg config.IngestConfig, logger *slog.Logger) {
	runOnce := func(trigger string) {
		stats, err := pipeline.Run(ctx)
		switch {
		case errors.Is(err, ingest.ErrRunInFlight):
			logger.Info("ingestion already running, skipping", "trigger", trigger)
		case err != nil:
			logger.Error("scheduled ingestion failed", "trigger", trigger, "error", err)
		default:
			logger.Info("scheduled ingestion finished",
				"trigger", trigger,
				"documents", stats.Documents,
				"upserted", stats.Upserted,
				"pages_skipped", stats.PagesSkipped,
				"duration", stats.Duration.String(),
			)
		}
	}

	if cfg.OnStartup {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runOnce("startup")
		}()
	}

	if cfg.IntervalMinutes > 0 {
		interval := time.Duration(cfg.IntervalMinutes) * time.Minute
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					runOnce("interval")
				}
			}
		}()
	}
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"

	"github.com/tradescholar/supportkb/internal/app"
	"github.com/tradescholar/supportkb/internal/config"
)

// runIngest executes one ingestion pass over all sources and prints the
// run statistics as JSON.
//
// A file lock in ~/.supportkb guards against concurrent CLI runs (for
// example a cron job overlapping a manual invocation). The in-process
// single-flight guard cannot see other processes, the lock can.
func runIngest() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("getting user home directory: %w", err)
	}

	lock := flock.New(filepath.Join(home, ".supportkb", "ingest.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring ingest lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another ingestion process holds %s", lock.Path())
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			slog.Warn("releasing ingest lock", "error", unlockErr)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	stats, err := a.Ingest.Run(ctx)
	if err != nil {
		return fmt.Errorf("running ingestion: %w", err)
	}

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}
	fmt.Println(string(out))

	return nil
}

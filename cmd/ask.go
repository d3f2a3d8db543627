package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tradescholar/supportkb/internal/app"
	"github.com/tradescholar/supportkb/internal/config"
)

// runAsk answers one question from the command line and exits.
// Useful for smoke testing a deployment without standing up a client.
func runAsk() error {
	question := strings.TrimSpace(strings.Join(os.Args[2:], " "))
	if question == "" {
		return fmt.Errorf("usage: supportkb ask <question>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

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

	ans := a.Router.Answer(ctx, question)

	fmt.Println(ans.Text)
	fmt.Println()
	fmt.Printf("[source: %s, confidence: %.2f]\n", ans.Source, ans.Confidence)

	return nil
}

// Package cmd provides CLI commands for supportkb.
//
// Commands:
//   - serve: HTTP API server (question answering + admin surface)
//   - ingest: one-off ingestion run with a cross-process lock
//   - ask: one-shot question from the terminal
//
// Signal handling and graceful shutdown are implemented
// for all commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/tradescholar/supportkb/internal/log"
)

// Execute is the main entry point for the supportkb CLI.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level, JSON: os.Getenv("SUPPORTKB_LOG_JSON") != ""}))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "ingest":
		return runIngest()
	case "ask":
		return runAsk()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("supportkb - TradeScholar support knowledge base service")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  supportkb serve [addr]   Start HTTP API server (default: 127.0.0.1:3500)")
	fmt.Println("  supportkb ingest         Run one ingestion pass over all sources")
	fmt.Println("  supportkb ask <question> Answer one question from the terminal")
	fmt.Println("  supportkb --version      Show version information")
	fmt.Println("  supportkb --help         Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY           Required for the gemini provider")
	fmt.Println("  OPENAI_API_KEY           Required for the openai provider")
	fmt.Println("  DATABASE_URL             Overrides postgres_* config settings")
	fmt.Println("  SUPPORTKB_ADMIN_KEY      Guards /api/v1/admin/* (empty = open)")
	fmt.Println("  DEBUG                    Optional: Enable debug logging")
	fmt.Println()
	fmt.Println("Configuration file: ~/.supportkb/config.yaml")
}

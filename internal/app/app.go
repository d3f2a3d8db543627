// Package app provides application initialization and dependency wiring.
//
// App is the container that owns every long-lived component: the Genkit
// runtime, the database pool, the corpus store and search engine, the
// ingestion pipeline, and the retrieval/answer stack. Setup builds the whole
// graph in dependency order; Close releases it.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradescholar/supportkb/internal/answer"
	"github.com/tradescholar/supportkb/internal/config"
	"github.com/tradescholar/supportkb/internal/corpus"
	"github.com/tradescholar/supportkb/internal/embed"
	"github.com/tradescholar/supportkb/internal/ingest"
	"github.com/tradescholar/supportkb/internal/kb"
	"github.com/tradescholar/supportkb/internal/retrieval"
	"github.com/tradescholar/supportkb/internal/webpage"
)

// App is the core application container.
type App struct {
	// Configuration
	Config *config.Config

	// Core services
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	// Domain components
	Corpus    *corpus.Store
	Engine    *corpus.Engine
	Embed     *embed.Provider
	Entries   *kb.Store
	Pages     *webpage.Client
	Ingest    *ingest.Pipeline
	Retriever *retrieval.Retriever
	Router    *answer.Router

	// Lifecycle management
	dbCleanup   func()
	otelCleanup func()
}

// Close gracefully shuts down all resources. Safe to call on a partially
// initialized App; Setup relies on that for its error path.
func (a *App) Close() error {
	slog.Info("shutting down application")

	if a.dbCleanup != nil {
		a.dbCleanup()
		slog.Info("database pool closed")
	}

	// Flush pending trace spans last so shutdown itself is traced.
	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/tradescholar/supportkb/db"
	"github.com/tradescholar/supportkb/internal/answer"
	"github.com/tradescholar/supportkb/internal/config"
	"github.com/tradescholar/supportkb/internal/corpus"
	"github.com/tradescholar/supportkb/internal/embed"
	"github.com/tradescholar/supportkb/internal/ingest"
	"github.com/tradescholar/supportkb/internal/kb"
	"github.com/tradescholar/supportkb/internal/observability"
	"github.com/tradescholar/supportkb/internal/retrieval"
	"github.com/tradescholar/supportkb/internal/security"
	"github.com/tradescholar/supportkb/internal/webpage"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}

	a := &App{Config: cfg}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				slog.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing first, so Genkit's TracerProvider is ready before Init.
	a.otelCleanup = provideOtelShutdown(ctx, cfg)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	logger := slog.Default()

	a.Corpus = corpus.NewStore(corpus.NewPGQuerier(pool), cfg.EmbedderDimensions, logger)
	a.Engine = corpus.NewEngine(a.Corpus, logger)
	a.Embed = embed.NewProvider(embedder, 0, logger)
	a.Entries = kb.NewStore(pool, logger)

	a.Pages = webpage.NewClient(webpage.Config{
		MaxPages:      cfg.Sitemap.MaxPages,
		PageTimeout:   cfg.Sitemap.PageTimeout,
		MaxContentLen: cfg.Sitemap.MaxContentLen,
		FallbackURLs:  cfg.Sitemap.FallbackURLs,
	}, security.NewURL(), logger)

	a.Ingest = ingest.New(a.Entries, a.Pages, a.Embed, a.Corpus, ingest.Config{
		SitemapURL:    cfg.Sitemap.IndexURL,
		BatchSize:     cfg.Ingest.BatchSize,
		BatchInterval: cfg.Ingest.BatchInterval,
	}, logger)

	a.Retriever = retrieval.New(a.Embed, a.Engine,
		cfg.Retrieval.TopK, cfg.Retrieval.MinScore, logger)

	generator := answer.NewGenkitGenerator(g, cfg.FullModelName())
	a.Router = answer.NewRouter(a.Retriever, generator,
		cfg.Retrieval.AnswerThreshold, logger)

	return a, nil
}

// provideOtelShutdown sets up Datadog tracing before Genkit initialization.
// Must be called before provideGenkit to ensure TracerProvider is ready.
func provideOtelShutdown(ctx context.Context, cfg *config.Config) func() {
	shutdown, err := observability.SetupDatadog(ctx, observability.Config{
		AgentHost:   cfg.Datadog.AgentHost,
		Environment: cfg.Datadog.Environment,
		ServiceName: cfg.Datadog.ServiceName,
	})
	if err != nil {
		slog.Warn("setting up tracing, continuing without it", "error", err)
		return func() {}
	}

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
// Every connection registers the pgvector codec so embedding columns scan
// into pgvector.Vector values.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	cleanup := func() {
		pool.Close()
	}

	return pool, cleanup, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default), ollama, and openai providers.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderGemini
	}

	var g *genkit.Genkit

	switch provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		// Register embedder for retrieval
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		slog.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		slog.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // "gemini"
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		slog.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the AI provider plugin.
// Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init(), looked up by model name
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderGemini
	}

	switch provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default: // "gemini"
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

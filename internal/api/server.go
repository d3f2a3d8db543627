package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ServerConfig configures the API server.
type ServerConfig struct {
	Logger   *slog.Logger
	Answerer Answerer      // Required
	Entries  EntryStore    // Required
	Ingestor Ingestor      // Required
	Counter  CorpusCounter // Required
	Pool     *pgxpool.Pool // Optional: nil skips the db ping in /ready
	AdminKey string        // Empty leaves the admin surface open
	// TrustProxy trusts X-Real-IP/X-Forwarded-For (behind a reverse proxy).
	TrustProxy bool
	// RateBurst is the per-IP burst size (0 = default 60).
	RateBurst int
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer wires all routes. ctx scopes background work (admin-triggered
// ingestion runs) to the server lifetime.
func NewServer(ctx context.Context, cfg ServerConfig) (*Server, error) {
	if cfg.Answerer == nil {
		return nil, errors.New("answerer is required")
	}

	if cfg.Entries == nil || cfg.Ingestor == nil || cfg.Counter == nil {
		return nil, errors.New("entry store, ingestor, and corpus counter are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ask := &askHandler{answerer: cfg.Answerer, logger: logger}

	admin := &adminHandler{
		entries:  cfg.Entries,
		ingestor: cfg.Ingestor,
		counter:  cfg.Counter,
		baseCtx:  ctx,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/ask", ask.ask)

	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET /api/v1/admin/entries", admin.listEntries)
	adminMux.HandleFunc("POST /api/v1/admin/entries", admin.createEntry)
	adminMux.HandleFunc("GET /api/v1/admin/entries/{id}", admin.getEntry)
	adminMux.HandleFunc("PUT /api/v1/admin/entries/{id}", admin.updateEntry)
	adminMux.HandleFunc("DELETE /api/v1/admin/entries/{id}", admin.deleteEntry)
	adminMux.HandleFunc("POST /api/v1/admin/ingest", admin.triggerIngest)
	adminMux.HandleFunc("GET /api/v1/admin/stats", admin.stats)
	mux.Handle("/api/v1/admin/", adminKeyMiddleware(cfg.AdminKey, logger)(adminMux))

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}

	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging → RateLimit → Routes
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	inner := handler
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		inner.ServeHTTP(w, r)
	})

	// Probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Package retrieval orchestrates query-time knowledge lookup.
//
// Retriever embeds the incoming question, runs a similarity search over the
// corpus, and assembles the matched texts into a single context block with
// a confidence score. It deliberately never returns an error: any failure
// along the way degrades to an empty result with confidence 0, and the
// answer router treats that the same as "nothing relevant found".
package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tradescholar/supportkb/internal/corpus"
)

// Defaults mirror the configuration defaults in internal/config.
const (
	DefaultTopK     = 5
	DefaultMinScore = 0.55
)

// Embedder turns a query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher finds the closest corpus records for a query vector.
type Searcher interface {
	Search(ctx context.Context, query []float32, topK int, minScore float32) ([]corpus.Match, error)
}

// Result is the outcome of one retrieval, ready for the answer router.
type Result struct {
	// Context is the matched texts joined by blank lines, best match
	// first. Empty when nothing cleared the score floor.
	Context string
	// Confidence is the similarity of the best match, 0 when there is
	// none.
	Confidence float32
	// Matches are the underlying matches in ranked order.
	Matches []corpus.Match
}

// Retriever performs confidence-scored retrieval over the corpus.
type Retriever struct {
	embedder Embedder
	searcher Searcher
	topK     int
	minScore float32
	logger   *slog.Logger
}

// New creates a Retriever. topK below 1 and minScore outside [-1, 1] fall
// back to the defaults.
func New(embedder Embedder, searcher Searcher, topK int, minScore float32, logger *slog.Logger) *Retriever {
	if topK < 1 {
		topK = DefaultTopK
	}

	if minScore < -1 || minScore > 1 {
		minScore = DefaultMinScore
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		topK:     topK,
		minScore: minScore,
		logger:   logger,
	}
}

// Retrieve looks the query up in the corpus. Failures are logged and
// reported as an empty Result rather than an error, so a broken embedding
// service or database never takes the ask path down.
func (r *Retriever) Retrieve(ctx context.Context, query string) Result {
	if strings.TrimSpace(query) == "" {
		return Result{}
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Error("query embedding failed", "error", err)
		return Result{}
	}

	matches, err := r.searcher.Search(ctx, vector, r.topK, r.minScore)
	if err != nil {
		r.logger.Error("similarity search failed", "error", err)
		return Result{}
	}

	if len(matches) == 0 {
		r.logger.Debug("no matches above score floor", "minScore", r.minScore)
		return Result{}
	}

	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.Record.Content
	}

	r.logger.Debug("retrieval hit",
		"matches", len(matches),
		"confidence", matches[0].Score,
	)

	return Result{
		Context:    strings.Join(parts, "\n\n"),
		Confidence: matches[0].Score,
		Matches:    matches,
	}
}

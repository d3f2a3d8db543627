package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
)

// Search errors.
var (
	ErrInvalidTopK     = errors.New("corpus: topK must be at least 1")
	ErrInvalidMinScore = errors.New("corpus: minScore must be in [-1, 1]")
)

// Scanner materializes the full corpus for a linear scan.
type Scanner interface {
	ScanAll(ctx context.Context) ([]Record, error)
}

// Engine performs brute-force cosine similarity search over the corpus.
type Engine struct {
	scanner Scanner
	logger  *slog.Logger
}

// NewEngine creates a search engine over the given corpus scanner.
func NewEngine(scanner Scanner, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{
		scanner: scanner,
		logger:  logger,
	}
}

// Search scores the query vector against every stored record and returns at
// most topK matches with similarity >= minScore, ordered by descending
// score. Ties keep storage order. An empty result is not an error.
func (e *Engine) Search(ctx context.Context, query []float32, topK int, minScore float32) ([]Match, error) {
	if topK < 1 {
		return nil, ErrInvalidTopK
	}

	if minScore < -1 || minScore > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidMinScore, minScore)
	}

	records, err := e.scanner.ScanAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("corpus: search scan: %w", err)
	}

	matches := make([]Match, 0, len(records))

	for _, rec := range records {
		score := CosineSimilarity(query, rec.Embedding)
		if score < minScore {
			continue
		}

		matches = append(matches, Match{Record: rec, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}

	e.logger.Debug("similarity search",
		"scanned", len(records),
		"matched", len(matches),
		"topK", topK,
		"minScore", minScore,
	)

	return matches, nil
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Dimensionality mismatches and zero-magnitude vectors score 0, so a
// malformed record degrades to "no match" instead of failing the query.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, magA, magB float64

	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}

	if magA == 0 || magB == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(magA) * math.Sqrt(magB)))
}

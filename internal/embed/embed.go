// Package embed turns text into vectors through a genkit embedder.
//
// Provider is a thin adapter between the corpus and whichever embedding
// model the configuration selects (Gemini, OpenAI, or Ollama). It enforces
// a per-call timeout and normalizes the genkit response shape into plain
// float32 slices.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
)

const defaultTimeout = 30 * time.Second

// Provider errors.
var (
	ErrEmptyInput     = errors.New("embed: input text is empty")
	ErrEmptyEmbedding = errors.New("embed: model returned an empty embedding")
	ErrCountMismatch  = errors.New("embed: embedding count does not match input count")
	ErrTimeout        = errors.New("embed: embedding generation timeout")
)

// Provider generates embeddings for documents and queries.
type Provider struct {
	embedder ai.Embedder
	timeout  time.Duration
	logger   *slog.Logger
}

// NewProvider wraps a genkit embedder. timeout bounds every model call;
// pass 0 for the default of 30 seconds.
func NewProvider(embedder ai.Embedder, timeout time.Duration, logger *slog.Logger) *Provider {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Provider{
		embedder: embedder,
		timeout:  timeout,
		logger:   logger,
	}
}

// Embed generates the embedding for a single text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	return vectors[0], nil
}

// EmbedBatch generates embeddings for every text in order. The call either
// yields one well-formed vector per input or fails as a whole; a partially
// embedded batch is never returned.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	docs := make([]*ai.Document, len(texts))

	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("%w: index %d", ErrEmptyInput, i)
		}

		docs[i] = ai.DocumentFromText(text, nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()

	resp, err := p.embedder.Embed(callCtx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %v", ErrTimeout, p.timeout)
		}

		return nil, fmt.Errorf("embed: generate embeddings: %w", err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))

	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Embedding) == 0 {
			return nil, fmt.Errorf("%w: index %d", ErrEmptyEmbedding, i)
		}

		vectors[i] = emb.Embedding
	}

	p.logger.Debug("embeddings generated",
		"count", len(vectors),
		"dimensions", len(vectors[0]),
		"elapsed", time.Since(start),
	)

	return vectors, nil
}

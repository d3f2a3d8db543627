// Package answer decides how a question gets answered.
//
// Router sits between the HTTP surface and the retrieval core. Retrieval
// produces context plus a confidence score; the router compares that score
// against an injected threshold and either answers grounded in the
// knowledge base or escalates to an unconstrained model call. The threshold
// lives in configuration, never in the retrieval core.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tradescholar/supportkb/internal/retrieval"
)

// Answer sources.
const (
	SourceKnowledgeBase = "knowledge_base"
	SourceModel         = "model"
)

// fallbackText is returned when even the escalation model is unavailable.
const fallbackText = "Sorry, I can't answer that right now. Please try again in a moment or contact support."

const groundedPrompt = `You are the support assistant for TradeScholar, a proprietary trading evaluation firm.
Answer the trader's question using ONLY the knowledge base excerpts below.
If the excerpts do not cover the question, say so briefly instead of guessing.

Knowledge base excerpts:
%s

Question: %s`

const openPrompt = `You are the support assistant for TradeScholar, a proprietary trading evaluation firm.
The knowledge base has no entry for this question, so answer from general knowledge.
Keep the answer short and suggest contacting support for account-specific issues.

Question: %s`

// Answer is a routed response to one question.
type Answer struct {
	Text       string  `json:"answer"`
	Source     string  `json:"source"`
	Confidence float32 `json:"confidence"`
}

// Retriever is the retrieval surface the router consumes.
type Retriever interface {
	Retrieve(ctx context.Context, query string) retrieval.Result
}

// Generator produces free text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Router routes questions between the knowledge base and the model.
type Router struct {
	retriever Retriever
	generator Generator
	threshold float32
	logger    *slog.Logger
}

// NewRouter creates a Router. Retrieval confidence must strictly exceed
// threshold for a knowledge-base answer; values outside [0, 1] fall back to
// 0.55.
func NewRouter(retriever Retriever, generator Generator, threshold float32, logger *slog.Logger) *Router {
	if threshold < 0 || threshold > 1 {
		threshold = 0.55
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Router{
		retriever: retriever,
		generator: generator,
		threshold: threshold,
		logger:    logger,
	}
}

// Answer resolves one question. It never returns an error: a failed model
// call degrades to the retrieved context (when confident) or to a canned
// apology, so the support surface always has something to say.
func (r *Router) Answer(ctx context.Context, question string) Answer {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{Text: fallbackText, Source: SourceModel}
	}

	result := r.retriever.Retrieve(ctx, question)

	if result.Confidence > r.threshold && result.Context != "" {
		text, err := r.generator.Generate(ctx, fmt.Sprintf(groundedPrompt, result.Context, question))
		if err != nil || strings.TrimSpace(text) == "" {
			// The knowledge base already answered; surface it raw
			// rather than failing the request.
			r.logger.Warn("grounded generation failed, returning raw context", "error", err)
			text = result.Context
		}

		r.logger.Info("answered from knowledge base",
			"confidence", result.Confidence,
			"matches", len(result.Matches),
		)

		return Answer{
			Text:       text,
			Source:     SourceKnowledgeBase,
			Confidence: result.Confidence,
		}
	}

	text, err := r.generator.Generate(ctx, fmt.Sprintf(openPrompt, question))
	if err != nil || strings.TrimSpace(text) == "" {
		r.logger.Error("escalation generation failed", "error", err)
		text = fallbackText
	}

	r.logger.Info("answered from model", "confidence", result.Confidence)

	return Answer{
		Text:       text,
		Source:     SourceModel,
		Confidence: result.Confidence,
	}
}

// Package ingest builds the knowledge corpus from its three sources.
//
// One run gathers manual KB entries, the static reference articles, and
// crawled help-center pages, turns each into a document with a stable
// identifier, embeds the documents in rate-limited batches, and upserts
// every record. Identifiers are deterministic, so re-running against
// unchanged sources updates records in place instead of duplicating them.
//
// Error policy: a page that fails to fetch is skipped and counted; a failed
// embedding batch aborts the run but keeps everything already committed
// (at-least-once, no rollback); overlapping runs are refused outright.
package ingest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/tradescholar/supportkb/internal/corpus"
	"github.com/tradescholar/supportkb/internal/kb"
	"github.com/tradescholar/supportkb/internal/webpage"
)

// ErrRunInFlight is returned when a run is requested while another one is
// still going. Manual and scheduled triggers share the same guard.
var ErrRunInFlight = errors.New("ingest: a run is already in flight")

// ManualSource lists the curated KB entries.
type ManualSource interface {
	List(ctx context.Context) ([]kb.Entry, error)
}

// PageSource lists and fetches help-center pages.
type PageSource interface {
	ListURLs(ctx context.Context, indexURL string) []string
	FetchPage(ctx context.Context, url string) (webpage.Page, error)
}

// Embedder embeds document batches.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// RecordStore persists embedded documents.
type RecordStore interface {
	Upsert(ctx context.Context, id, content string, embedding []float32, metadata map[string]string) (corpus.Record, error)
}

// Config bounds one pipeline.
type Config struct {
	// SitemapURL is the help-center sitemap index.
	SitemapURL string
	// BatchSize is how many documents go into one embedding call.
	BatchSize int
	// BatchInterval paces consecutive embedding calls.
	BatchInterval time.Duration
}

// Stats summarizes one run.
type Stats struct {
	ManualEntries int           `json:"manualEntries"`
	Articles      int           `json:"articles"`
	Pages         int           `json:"pages"`
	PagesSkipped  int           `json:"pagesSkipped"`
	Documents     int           `json:"documents"`
	Upserted      int           `json:"upserted"`
	Batches       int           `json:"batches"`
	Duration      time.Duration `json:"duration"`
}

// MarshalJSON renders Duration in its human-readable form ("1.28s") rather
// than raw nanoseconds, which is what CLI and log consumers want to read.
func (s Stats) MarshalJSON() ([]byte, error) {
	type plain Stats

	return json.Marshal(struct {
		plain
		Duration string `json:"duration"`
	}{plain(s), s.Duration.String()})
}

// document is a unit of text ready for embedding.
type document struct {
	id       string
	content  string
	metadata map[string]string
}

// Pipeline ingests all sources into the corpus.
type Pipeline struct {
	manual   ManualSource
	pages    PageSource
	embedder Embedder
	store    RecordStore
	cfg      Config
	limiter  *rate.Limiter
	running  atomic.Bool
	logger   *slog.Logger
}

// New creates a Pipeline. BatchSize below 1 defaults to 20, BatchInterval
// below zero to one second.
func New(manual ManualSource, pages PageSource, embedder Embedder, store RecordStore, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 20
	}

	if cfg.BatchInterval < 0 {
		cfg.BatchInterval = time.Second
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.BatchInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.BatchInterval), 1)
	}

	return &Pipeline{
		manual:   manual,
		pages:    pages,
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		limiter:  limiter,
		logger:   logger,
	}
}

// Busy reports whether a run is currently in flight.
func (p *Pipeline) Busy() bool {
	return p.running.Load()
}

// Run executes one full ingestion. Only one run may be in flight at a time;
// concurrent calls get ErrRunInFlight. On an embedding or storage failure
// the run aborts, but batches committed before the failure stay committed
// and the next run converges the rest.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	if !p.running.CompareAndSwap(false, true) {
		return Stats{}, ErrRunInFlight
	}
	defer p.running.Store(false)

	start := time.Now()

	var stats Stats

	docs := p.gather(ctx, &stats)
	docs = dedupe(docs)
	stats.Documents = len(docs)

	p.logger.Info("ingestion run started",
		"documents", len(docs),
		"manual", stats.ManualEntries,
		"articles", stats.Articles,
		"pages", stats.Pages,
	)

	for batchStart := 0; batchStart < len(docs); batchStart += p.cfg.BatchSize {
		end := min(batchStart+p.cfg.BatchSize, len(docs))
		batch := docs[batchStart:end]

		if err := p.limiter.Wait(ctx); err != nil {
			stats.Duration = time.Since(start)
			return stats, fmt.Errorf("ingest: pacing interrupted: %w", err)
		}

		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = doc.content
		}

		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			stats.Duration = time.Since(start)
			return stats, fmt.Errorf("ingest: batch %d failed, %d records committed: %w",
				stats.Batches+1, stats.Upserted, err)
		}

		for i, doc := range batch {
			if _, err := p.store.Upsert(ctx, doc.id, doc.content, vectors[i], doc.metadata); err != nil {
				stats.Duration = time.Since(start)
				return stats, fmt.Errorf("ingest: upsert %q, %d records committed: %w",
					doc.id, stats.Upserted, err)
			}

			stats.Upserted++
		}

		stats.Batches++

		p.logger.Debug("batch committed", "batch", stats.Batches, "size", len(batch))
	}

	stats.Duration = time.Since(start)

	p.logger.Info("ingestion run finished",
		"upserted", stats.Upserted,
		"batches", stats.Batches,
		"pages_skipped", stats.PagesSkipped,
		"duration", stats.Duration.String(),
	)

	return stats, nil
}

// gather collects documents from all three sources. A failing source is
// logged and skipped so the others still ingest.
func (p *Pipeline) gather(ctx context.Context, stats *Stats) []document {
	var docs []document

	entries, err := p.manual.List(ctx)
	if err != nil {
		p.logger.Error("listing manual entries failed, skipping source", "error", err)
	} else {
		for _, entry := range entries {
			docs = append(docs, manualDocument(entry))
		}

		stats.ManualEntries = len(entries)
	}

	for _, article := range Articles() {
		docs = append(docs, articleDocument(article))
	}

	stats.Articles = len(Articles())

	for _, pageURL := range p.pages.ListURLs(ctx, p.cfg.SitemapURL) {
		page, err := p.pages.FetchPage(ctx, pageURL)
		if err != nil {
			p.logger.Warn("page fetch failed, skipping", "url", pageURL, "error", err)
			stats.PagesSkipped++

			continue
		}

		docs = append(docs, pageDocument(pageURL, page))
		stats.Pages++
	}

	return docs
}

func manualDocument(entry kb.Entry) document {
	return document{
		id:      "manual:" + entry.ID,
		content: fmt.Sprintf("Q: %s\nA: %s", entry.Title, entry.Content),
		metadata: map[string]string{
			corpus.MetaSource:   corpus.SourceManual,
			corpus.MetaTitle:    entry.Title,
			corpus.MetaCategory: entry.Category,
			corpus.MetaURL:      entry.URL,
		},
	}
}

func articleDocument(article Article) document {
	return document{
		id:      "article:" + article.Slug,
		content: fmt.Sprintf("Q: %s\nA: %s", article.Title, article.Body),
		metadata: map[string]string{
			corpus.MetaSource:   corpus.SourceArticle,
			corpus.MetaTitle:    article.Title,
			corpus.MetaCategory: article.Category,
		},
	}
}

func pageDocument(pageURL string, page webpage.Page) document {
	return document{
		id:      pageID(pageURL),
		content: fmt.Sprintf("PageTitle: %s\n\n%s", page.Title, page.Text),
		metadata: map[string]string{
			corpus.MetaSource: corpus.SourcePage,
			corpus.MetaTitle:  page.Title,
			corpus.MetaURL:    pageURL,
		},
	}
}

// pageID derives a stable identifier from the URL alone, so a page keeps
// its record across re-crawls even when its title changes.
func pageID(pageURL string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(pageURL))
	if len(encoded) > 32 {
		encoded = encoded[:32]
	}

	return "page:" + encoded
}

// dedupe drops later documents with an identifier already seen, keeping the
// first occurrence.
func dedupe(docs []document) []document {
	seen := make(map[string]struct{}, len(docs))
	out := docs[:0]

	for _, doc := range docs {
		if _, dup := seen[doc.id]; dup {
			continue
		}

		seen[doc.id] = struct{}{}
		out = append(out, doc)
	}

	return out
}

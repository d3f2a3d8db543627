package config

import (
	"fmt"
	"os"
	"strings"
)

// validSSLModes are the PostgreSQL sslmode values pgx accepts.
var validSSLModes = map[string]struct{}{
	"disable":     {},
	"allow":       {},
	"prefer":      {},
	"require":     {},
	"verify-ca":   {},
	"verify-full": {},
}

// Validate checks the configuration for fatal errors. Called by Load so a
// bad configuration fails at startup, never mid-run.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("%w: %q (expected gemini, openai, or ollama)", ErrInvalidProvider, c.Provider)
	}

	// Missing provider credentials are a configuration error, fatal at
	// startup: the embedder cannot work without them.
	switch c.Provider {
	case ProviderGemini:
		if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
			return fmt.Errorf("%w: set GEMINI_API_KEY for the gemini provider", ErrMissingAPIKey)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: set OPENAI_API_KEY for the openai provider", ErrMissingAPIKey)
		}
	}

	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model must not be empty", ErrInvalidEmbedderModel)
	}
	if c.EmbedderDimensions < 1 || c.EmbedderDimensions > 4096 {
		return fmt.Errorf("%w: %d (expected 1-4096)", ErrInvalidEmbedderDimensions, c.EmbedderDimensions)
	}

	if err := c.Retrieval.validate(); err != nil {
		return err
	}
	if err := c.Ingest.validate(); err != nil {
		return err
	}
	if err := c.Sitemap.validate(); err != nil {
		return err
	}

	return c.validatePostgres()
}

func (r RetrievalConfig) validate() error {
	if r.TopK < 1 || r.TopK > 100 {
		return fmt.Errorf("%w: top_k %d (expected 1-100)", ErrInvalidRetrieval, r.TopK)
	}
	if r.MinScore < -1 || r.MinScore > 1 {
		return fmt.Errorf("%w: min_score %v (expected [-1, 1])", ErrInvalidRetrieval, r.MinScore)
	}
	if r.AnswerThreshold < 0 || r.AnswerThreshold > 1 {
		return fmt.Errorf("%w: answer_threshold %v (expected [0, 1])", ErrInvalidRetrieval, r.AnswerThreshold)
	}
	return nil
}

func (i IngestConfig) validate() error {
	if i.BatchSize < 1 || i.BatchSize > 500 {
		return fmt.Errorf("%w: batch_size %d (expected 1-500)", ErrInvalidIngest, i.BatchSize)
	}
	if i.BatchInterval < 0 {
		return fmt.Errorf("%w: batch_interval must not be negative", ErrInvalidIngest)
	}
	if i.IntervalMinutes < 0 {
		return fmt.Errorf("%w: interval_minutes must not be negative", ErrInvalidIngest)
	}
	return nil
}

func (s SitemapConfig) validate() error {
	if s.MaxPages < 0 || s.MaxPages > 1000 {
		return fmt.Errorf("%w: max_pages %d (expected 0-1000)", ErrInvalidSitemap, s.MaxPages)
	}
	if s.PageTimeout <= 0 {
		return fmt.Errorf("%w: page_timeout must be positive", ErrInvalidSitemap)
	}
	if s.MaxContentLen < 1 {
		return fmt.Errorf("%w: max_content_len must be positive", ErrInvalidSitemap)
	}
	return nil
}

func (c *Config) validatePostgres() error {
	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}
	if _, ok := validSSLModes[c.PostgresSSLMode]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
	return nil
}

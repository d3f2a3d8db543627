package corpus

import "time"

// Metadata source values. Every record carries exactly one of these in its
// Source metadata field, naming which ingestion source produced it.
const (
	SourceManual  = "manual"
	SourceArticle = "reference_article"
	SourcePage    = "crawled_page"
)

// Metadata field keys.
const (
	MetaSource   = "source"
	MetaSourceID = "sourceId"
	MetaTitle    = "title"
	MetaURL      = "url"
	MetaCategory = "category"
)

// Record is one entry of the knowledge corpus.
type Record struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"-"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Match pairs a record with its similarity score against a query vector.
// Score is a cosine similarity in [-1, 1].
type Match struct {
	Record Record  `json:"record"`
	Score  float32 `json:"score"`
}

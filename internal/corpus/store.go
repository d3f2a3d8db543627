package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Store errors.
var (
	ErrEmptyID            = errors.New("corpus: record id is empty")
	ErrEmptyEmbedding     = errors.New("corpus: embedding is empty")
	ErrDimensionMismatch  = errors.New("corpus: embedding dimensionality mismatch")
	ErrPersistenceFailure = errors.New("corpus: persistence failure")
)

// UpsertRecordParams carries one record to insert or replace.
type UpsertRecordParams struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  []byte
}

// InsertRecordParams carries one record to append.
type InsertRecordParams struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  []byte
}

// RecordRow is a raw stored record as returned by the Querier.
type RecordRow struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  []byte
	CreatedAt time.Time
}

// Querier is the persistence surface Store depends on. The pgx-backed
// implementation lives in this package; tests supply mocks.
type Querier interface {
	UpsertRecord(ctx context.Context, arg UpsertRecordParams) (RecordRow, error)
	InsertRecord(ctx context.Context, arg InsertRecordParams) (RecordRow, error)
	ScanRecords(ctx context.Context) ([]RecordRow, error)
	CountRecords(ctx context.Context) (int64, error)
}

// Store persists knowledge records.
type Store struct {
	queries Querier
	dims    int
	logger  *slog.Logger
}

// NewStore creates a Store over the given Querier. dims is the expected
// embedding dimensionality; pass 0 to skip the check.
func NewStore(queries Querier, dims int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Store{
		queries: queries,
		dims:    dims,
		logger:  logger,
	}
}

// Upsert inserts the record identified by id, replacing any existing record
// with the same id. The stored metadata always carries sourceId = id, so a
// record can be traced back to its origin regardless of what the caller put
// in metadata. The original creation timestamp survives replacement.
func (s *Store) Upsert(ctx context.Context, id, content string, embedding []float32, metadata map[string]string) (Record, error) {
	if id == "" {
		return Record{}, ErrEmptyID
	}

	if err := s.checkEmbedding(embedding); err != nil {
		return Record{}, err
	}

	md := withSourceID(metadata, id)

	raw, err := json.Marshal(md)
	if err != nil {
		return Record{}, fmt.Errorf("corpus: marshal metadata: %w", err)
	}

	row, err := s.queries.UpsertRecord(ctx, UpsertRecordParams{
		ID:        id,
		Content:   content,
		Embedding: embedding,
		Metadata:  raw,
	})
	if err != nil {
		return Record{}, fmt.Errorf("%w: upsert %q: %w", ErrPersistenceFailure, id, err)
	}

	s.logger.Debug("record upserted", "id", id, "source", md[MetaSource])

	return rowToRecord(row)
}

// Insert appends a record under a freshly minted identifier. Retained for
// callers that have no stable identity for their content; ingestion always
// uses Upsert.
func (s *Store) Insert(ctx context.Context, content string, embedding []float32, metadata map[string]string) (Record, error) {
	if err := s.checkEmbedding(embedding); err != nil {
		return Record{}, err
	}

	id := "rec:" + uuid.NewString()
	md := withSourceID(metadata, id)

	raw, err := json.Marshal(md)
	if err != nil {
		return Record{}, fmt.Errorf("corpus: marshal metadata: %w", err)
	}

	row, err := s.queries.InsertRecord(ctx, InsertRecordParams{
		ID:        id,
		Content:   content,
		Embedding: embedding,
		Metadata:  raw,
	})
	if err != nil {
		return Record{}, fmt.Errorf("%w: insert %q: %w", ErrPersistenceFailure, id, err)
	}

	return rowToRecord(row)
}

// ScanAll materializes every record in storage order (creation time, then
// id). The search engine consumes this for its linear scan.
func (s *Store) ScanAll(ctx context.Context) ([]Record, error) {
	rows, err := s.queries.ScanRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: scan: %w", ErrPersistenceFailure, err)
	}

	records := make([]Record, 0, len(rows))

	for _, row := range rows {
		rec, err := rowToRecord(row)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	return records, nil
}

// Count reports the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.queries.CountRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %w", ErrPersistenceFailure, err)
	}

	return n, nil
}

func (s *Store) checkEmbedding(embedding []float32) error {
	if len(embedding) == 0 {
		return ErrEmptyEmbedding
	}

	if s.dims > 0 && len(embedding) != s.dims {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), s.dims)
	}

	return nil
}

func withSourceID(metadata map[string]string, id string) map[string]string {
	md := make(map[string]string, len(metadata)+1)
	maps.Copy(md, metadata)
	md[MetaSourceID] = id

	return md
}

func rowToRecord(row RecordRow) (Record, error) {
	md := map[string]string{}

	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &md); err != nil {
			return Record{}, fmt.Errorf("corpus: unmarshal metadata for %q: %w", row.ID, err)
		}
	}

	return Record{
		ID:        row.ID,
		Content:   row.Content,
		Embedding: row.Embedding,
		Metadata:  md,
		CreatedAt: row.CreatedAt,
	}, nil
}

// Package kb manages manually curated knowledge base entries.
//
// Entries are the source data behind the "manual" ingestion source: support
// staff create and edit question/answer pairs through the admin API, and
// the ingestion pipeline embeds whatever the List call returns. The corpus
// record for an entry is derived, never edited directly.
package kb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultCategory is applied when an entry is created without one.
const DefaultCategory = "Manual"

var (
	ErrNotFound     = errors.New("kb: entry not found")
	ErrEmptyTitle   = errors.New("kb: entry title is empty")
	ErrEmptyContent = errors.New("kb: entry content is empty")
)

// Entry is one curated question/answer pair.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists entries in the kb_entries table.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a Store over the given connection pool.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Store{pool: pool, logger: logger}
}

// Create inserts a new entry and returns it with its minted id.
func (s *Store) Create(ctx context.Context, title, content, category, url string) (Entry, error) {
	if err := validate(title, content); err != nil {
		return Entry{}, err
	}

	if category == "" {
		category = DefaultCategory
	}

	const query = `
		INSERT INTO kb_entries (id, title, content, category, url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, title, content, category, url, created_at, updated_at`

	entry, err := scanEntry(s.pool.QueryRow(ctx, query, uuid.NewString(), title, content, category, url))
	if err != nil {
		return Entry{}, fmt.Errorf("kb: create entry: %w", err)
	}

	s.logger.Info("kb entry created", "id", entry.ID, "title", entry.Title)

	return entry, nil
}

// Get fetches one entry by id.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	const query = `
		SELECT id, title, content, category, url, created_at, updated_at
		FROM kb_entries
		WHERE id = $1`

	entry, err := scanEntry(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("kb: get entry: %w", err)
	}

	return entry, nil
}

// Update replaces an entry's editable fields.
func (s *Store) Update(ctx context.Context, id, title, content, category, url string) (Entry, error) {
	if err := validate(title, content); err != nil {
		return Entry{}, err
	}

	if category == "" {
		category = DefaultCategory
	}

	const query = `
		UPDATE kb_entries
		SET title = $2, content = $3, category = $4, url = $5, updated_at = now()
		WHERE id = $1
		RETURNING id, title, content, category, url, created_at, updated_at`

	entry, err := scanEntry(s.pool.QueryRow(ctx, query, id, title, content, category, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("kb: update entry: %w", err)
	}

	s.logger.Info("kb entry updated", "id", id)

	return entry, nil
}

// Delete removes an entry. The derived corpus record is not touched here;
// it disappears on the next ingestion run only if the operator clears it,
// so deletion is logged loudly.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM kb_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("kb: delete entry: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.logger.Warn("kb entry deleted, corpus record remains until cleaned up", "id", id)

	return nil
}

// List returns all entries, oldest first. This is the feed the ingestion
// pipeline consumes.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	const query = `
		SELECT id, title, content, category, url, created_at, updated_at
		FROM kb_entries
		ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("kb: list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("kb: scan entry: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("kb: iterate entries: %w", err)
	}

	return entries, nil
}

func validate(title, content string) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}

	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}

	return nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry

	err := row.Scan(&e.ID, &e.Title, &e.Content, &e.Category, &e.URL, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Entry{}, err
	}

	return e, nil
}

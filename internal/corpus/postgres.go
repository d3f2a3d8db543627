package corpus

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

const upsertRecordSQL = `
INSERT INTO knowledge_records (id, content, embedding, metadata)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
	content   = EXCLUDED.content,
	embedding = EXCLUDED.embedding,
	metadata  = EXCLUDED.metadata
RETURNING id, content, embedding, metadata, created_at`

const insertRecordSQL = `
INSERT INTO knowledge_records (id, content, embedding, metadata)
VALUES ($1, $2, $3, $4)
RETURNING id, content, embedding, metadata, created_at`

const scanRecordsSQL = `
SELECT id, content, embedding, metadata, created_at
FROM knowledge_records
ORDER BY created_at, id`

const countRecordsSQL = `SELECT count(*) FROM knowledge_records`

// PGQuerier implements Querier on a pgx connection pool. The pool must have
// pgvector types registered (see app setup).
type PGQuerier struct {
	pool *pgxpool.Pool
}

// NewPGQuerier wraps a connection pool.
func NewPGQuerier(pool *pgxpool.Pool) *PGQuerier {
	return &PGQuerier{pool: pool}
}

// UpsertRecord implements Querier. created_at is intentionally left out of
// the conflict update so replacement preserves the original timestamp.
func (q *PGQuerier) UpsertRecord(ctx context.Context, arg UpsertRecordParams) (RecordRow, error) {
	return q.queryRow(ctx, upsertRecordSQL, arg.ID, arg.Content, pgvector.NewVector(arg.Embedding), arg.Metadata)
}

// InsertRecord implements Querier.
func (q *PGQuerier) InsertRecord(ctx context.Context, arg InsertRecordParams) (RecordRow, error) {
	return q.queryRow(ctx, insertRecordSQL, arg.ID, arg.Content, pgvector.NewVector(arg.Embedding), arg.Metadata)
}

// ScanRecords implements Querier.
func (q *PGQuerier) ScanRecords(ctx context.Context) ([]RecordRow, error) {
	rows, err := q.pool.Query(ctx, scanRecordsSQL)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []RecordRow

	for rows.Next() {
		var (
			row RecordRow
			vec pgvector.Vector
		)

		if err := rows.Scan(&row.ID, &row.Content, &vec, &row.Metadata, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		row.Embedding = vec.Slice()
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return out, nil
}

// CountRecords implements Querier.
func (q *PGQuerier) CountRecords(ctx context.Context) (int64, error) {
	var n int64

	if err := q.pool.QueryRow(ctx, countRecordsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}

	return n, nil
}

func (q *PGQuerier) queryRow(ctx context.Context, sql string, args ...any) (RecordRow, error) {
	var (
		row RecordRow
		vec pgvector.Vector
	)

	err := q.pool.QueryRow(ctx, sql, args...).Scan(&row.ID, &row.Content, &vec, &row.Metadata, &row.CreatedAt)
	if err != nil {
		return RecordRow{}, fmt.Errorf("write record: %w", err)
	}

	row.Embedding = vec.Slice()

	return row, nil
}

package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

// mockQuerier implements Querier for testing.
type mockQuerier struct {
	// Error configuration
	upsertErr error
	insertErr error
	scanErr   error
	countErr  error

	// Return values
	scanResults []RecordRow
	countResult int64

	// Call tracking
	upsertCalls      int
	insertCalls      int
	scanCalls        int
	countCalls       int
	lastUpsertParams UpsertRecordParams
	lastInsertParams InsertRecordParams
}

func (m *mockQuerier) UpsertRecord(ctx context.Context, arg UpsertRecordParams) (RecordRow, error) {
	m.upsertCalls++
	m.lastUpsertParams = arg
	if m.upsertErr != nil {
		return RecordRow{}, m.upsertErr
	}
	return RecordRow{
		ID:        arg.ID,
		Content:   arg.Content,
		Embedding: arg.Embedding,
		Metadata:  arg.Metadata,
		CreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}, nil
}

func (m *mockQuerier) InsertRecord(ctx context.Context, arg InsertRecordParams) (RecordRow, error) {
	m.insertCalls++
	m.lastInsertParams = arg
	if m.insertErr != nil {
		return RecordRow{}, m.insertErr
	}
	return RecordRow{
		ID:        arg.ID,
		Content:   arg.Content,
		Embedding: arg.Embedding,
		Metadata:  arg.Metadata,
		CreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}, nil
}

func (m *mockQuerier) ScanRecords(ctx context.Context) ([]RecordRow, error) {
	m.scanCalls++
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	return m.scanResults, nil
}

func (m *mockQuerier) CountRecords(ctx context.Context) (int64, error) {
	m.countCalls++
	return m.countResult, m.countErr
}

func TestStore_Upsert_Success(t *testing.T) {
	mock := &mockQuerier{}
	store := NewStore(mock, 3, nil)

	rec, err := store.Upsert(context.Background(), "manual:42", "Q: margin call\nA: close positions", []float32{0.1, 0.2, 0.3}, map[string]string{
		MetaSource: SourceManual,
		MetaTitle:  "margin call",
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if mock.upsertCalls != 1 {
		t.Errorf("expected 1 upsert call, got %d", mock.upsertCalls)
	}

	if rec.ID != "manual:42" {
		t.Errorf("record ID mismatch: got %q", rec.ID)
	}

	// sourceId must always mirror the record id
	if rec.Metadata[MetaSourceID] != "manual:42" {
		t.Errorf("sourceId not stamped: got %q", rec.Metadata[MetaSourceID])
	}

	if rec.Metadata[MetaSource] != SourceManual {
		t.Errorf("source metadata lost: got %q", rec.Metadata[MetaSource])
	}

	var stored map[string]string
	if err := json.Unmarshal(mock.lastUpsertParams.Metadata, &stored); err != nil {
		t.Fatalf("stored metadata is not valid JSON: %v", err)
	}
	if stored[MetaSourceID] != "manual:42" {
		t.Errorf("persisted sourceId mismatch: got %q", stored[MetaSourceID])
	}
}

func TestStore_Upsert_OverwritesCallerSourceID(t *testing.T) {
	mock := &mockQuerier{}
	store := NewStore(mock, 0, nil)

	rec, err := store.Upsert(context.Background(), "article:slug", "content", []float32{1}, map[string]string{
		MetaSourceID: "something-else",
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if rec.Metadata[MetaSourceID] != "article:slug" {
		t.Errorf("caller-supplied sourceId should be overwritten, got %q", rec.Metadata[MetaSourceID])
	}
}

func TestStore_Upsert_Validation(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		embedding []float32
		wantErr   error
	}{
		{
			name:      "empty id",
			id:        "",
			embedding: []float32{0.1, 0.2, 0.3},
			wantErr:   ErrEmptyID,
		},
		{
			name:      "empty embedding",
			id:        "manual:1",
			embedding: nil,
			wantErr:   ErrEmptyEmbedding,
		},
		{
			name:      "dimensionality mismatch",
			id:        "manual:1",
			embedding: []float32{0.1, 0.2},
			wantErr:   ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockQuerier{}
			store := NewStore(mock, 3, nil)

			_, err := store.Upsert(context.Background(), tt.id, "content", tt.embedding, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got error %v, want %v", err, tt.wantErr)
			}

			if mock.upsertCalls > 0 {
				t.Error("querier should not be called on validation failure")
			}
		})
	}
}

func TestStore_Upsert_PersistenceError(t *testing.T) {
	mock := &mockQuerier{upsertErr: errors.New("connection lost")}
	store := NewStore(mock, 0, nil)

	_, err := store.Upsert(context.Background(), "manual:1", "content", []float32{0.1}, nil)
	if !errors.Is(err, ErrPersistenceFailure) {
		t.Fatalf("expected ErrPersistenceFailure, got %v", err)
	}

	if !strings.Contains(err.Error(), "connection lost") {
		t.Errorf("error should wrap the cause: %v", err)
	}
}

func TestStore_Insert_MintsID(t *testing.T) {
	mock := &mockQuerier{}
	store := NewStore(mock, 0, nil)

	rec, err := store.Insert(context.Background(), "orphan content", []float32{0.4}, nil)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if !strings.HasPrefix(rec.ID, "rec:") {
		t.Errorf("minted id should carry rec: prefix, got %q", rec.ID)
	}

	if rec.Metadata[MetaSourceID] != rec.ID {
		t.Errorf("sourceId should mirror minted id: got %q, want %q", rec.Metadata[MetaSourceID], rec.ID)
	}

	if mock.insertCalls != 1 {
		t.Errorf("expected 1 insert call, got %d", mock.insertCalls)
	}
}

func TestStore_Insert_DistinctIDs(t *testing.T) {
	mock := &mockQuerier{}
	store := NewStore(mock, 0, nil)

	a, err := store.Insert(context.Background(), "same content", []float32{0.4}, nil)
	if err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}

	b, err := store.Insert(context.Background(), "same content", []float32{0.4}, nil)
	if err != nil {
		t.Fatalf("second Insert failed: %v", err)
	}

	if a.ID == b.ID {
		t.Errorf("repeated Insert must mint distinct ids, both got %q", a.ID)
	}
}

func TestStore_ScanAll(t *testing.T) {
	mock := &mockQuerier{
		scanResults: []RecordRow{
			{
				ID:        "manual:1",
				Content:   "first",
				Embedding: []float32{0.1, 0.2},
				Metadata:  []byte(`{"source":"manual","sourceId":"manual:1"}`),
				CreatedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
			},
			{
				ID:        "article:intro",
				Content:   "second",
				Embedding: []float32{0.3, 0.4},
				Metadata:  []byte(`{"source":"reference_article","sourceId":"article:intro"}`),
				CreatedAt: time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	store := NewStore(mock, 0, nil)

	records, err := store.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll failed: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	if records[0].ID != "manual:1" || records[1].ID != "article:intro" {
		t.Errorf("storage order not preserved: %q, %q", records[0].ID, records[1].ID)
	}

	if records[1].Metadata[MetaSource] != SourceArticle {
		t.Errorf("metadata not decoded: %v", records[1].Metadata)
	}
}

func TestStore_ScanAll_Empty(t *testing.T) {
	store := NewStore(&mockQuerier{}, 0, nil)

	records, err := store.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll failed: %v", err)
	}

	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestStore_ScanAll_Error(t *testing.T) {
	store := NewStore(&mockQuerier{scanErr: errors.New("table missing")}, 0, nil)

	_, err := store.ScanAll(context.Background())
	if !errors.Is(err, ErrPersistenceFailure) {
		t.Fatalf("expected ErrPersistenceFailure, got %v", err)
	}
}

func TestStore_Count(t *testing.T) {
	store := NewStore(&mockQuerier{countResult: 37}, 0, nil)

	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}

	if n != 37 {
		t.Errorf("count mismatch: got %d, want 37", n)
	}
}

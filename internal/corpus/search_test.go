package corpus

import (
	"context"
	"errors"
	"math"
	"testing"
)

// mockScanner implements Scanner with a fixed in-memory corpus.
type mockScanner struct {
	records []Record
	err     error
	calls   int
}

func (m *mockScanner) ScanAll(ctx context.Context) ([]Record, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.records, nil
}

func almostEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float32
	}{
		{
			name: "identical vectors",
			a:    []float32{1, 2, 3},
			b:    []float32{1, 2, 3},
			want: 1,
		},
		{
			name: "opposite vectors",
			a:    []float32{1, 0},
			b:    []float32{-1, 0},
			want: -1,
		},
		{
			name: "orthogonal vectors",
			a:    []float32{1, 0},
			b:    []float32{0, 1},
			want: 0,
		},
		{
			name: "scale invariant",
			a:    []float32{1, 2, 3},
			b:    []float32{10, 20, 30},
			want: 1,
		},
		{
			name: "zero magnitude left",
			a:    []float32{0, 0},
			b:    []float32{1, 1},
			want: 0,
		},
		{
			name: "zero magnitude right",
			a:    []float32{1, 1},
			b:    []float32{0, 0},
			want: 0,
		},
		{
			name: "dimensionality mismatch",
			a:    []float32{1, 2, 3},
			b:    []float32{1, 2},
			want: 0,
		},
		{
			name: "both empty",
			a:    nil,
			b:    nil,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if !almostEqual(got, tt.want) {
				t.Errorf("CosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineSimilarity_Symmetry(t *testing.T) {
	a := []float32{0.3, -0.7, 0.2, 0.9}
	b := []float32{-0.1, 0.4, 0.8, 0.05}

	if CosineSimilarity(a, b) != CosineSimilarity(b, a) {
		t.Error("similarity is not symmetric")
	}
}

func TestCosineSimilarity_Bounds(t *testing.T) {
	vectors := [][]float32{
		{0.9, 0.1},
		{-0.5, 0.5},
		{100, -200},
		{0.001, 0.002},
	}

	for _, a := range vectors {
		for _, b := range vectors {
			score := CosineSimilarity(a, b)
			if score < -1.00001 || score > 1.00001 {
				t.Errorf("similarity out of bounds: %v for %v vs %v", score, a, b)
			}
		}
	}
}

func TestEngine_Search_RanksByScore(t *testing.T) {
	scanner := &mockScanner{
		records: []Record{
			{ID: "far", Embedding: []float32{0, 1}},
			{ID: "near", Embedding: []float32{1, 0}},
			{ID: "close", Embedding: []float32{1, 0.2}},
		},
	}

	engine := NewEngine(scanner, nil)

	matches, err := engine.Search(context.Background(), []float32{1, 0}, 5, -1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}

	if matches[0].Record.ID != "near" {
		t.Errorf("best match should be exact direction, got %q", matches[0].Record.ID)
	}

	if !almostEqual(matches[0].Score, 1) {
		t.Errorf("exact match should score 1, got %v", matches[0].Score)
	}

	if matches[1].Record.ID != "close" || matches[2].Record.ID != "far" {
		t.Errorf("wrong ranking: %q, %q", matches[1].Record.ID, matches[2].Record.ID)
	}
}

func TestEngine_Search_MinScoreFilters(t *testing.T) {
	scanner := &mockScanner{
		records: []Record{
			{ID: "keep", Embedding: []float32{1, 0.1}},
			{ID: "drop", Embedding: []float32{0, 1}},
		},
	}

	engine := NewEngine(scanner, nil)

	matches, err := engine.Search(context.Background(), []float32{1, 0}, 5, 0.55)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}

	if matches[0].Record.ID != "keep" {
		t.Errorf("wrong record survived filtering: %q", matches[0].Record.ID)
	}
}

func TestEngine_Search_TopKTruncates(t *testing.T) {
	scanner := &mockScanner{
		records: []Record{
			{ID: "a", Embedding: []float32{1, 0}},
			{ID: "b", Embedding: []float32{1, 0.1}},
			{ID: "c", Embedding: []float32{1, 0.2}},
			{ID: "d", Embedding: []float32{1, 0.3}},
		},
	}

	engine := NewEngine(scanner, nil)

	matches, err := engine.Search(context.Background(), []float32{1, 0}, 2, -1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}

	if matches[0].Record.ID != "a" || matches[1].Record.ID != "b" {
		t.Errorf("wrong top 2: %q, %q", matches[0].Record.ID, matches[1].Record.ID)
	}
}

func TestEngine_Search_TiesKeepStorageOrder(t *testing.T) {
	// Two records with identical embeddings tie exactly; the earlier stored
	// record must rank first.
	scanner := &mockScanner{
		records: []Record{
			{ID: "first", Embedding: []float32{1, 1}},
			{ID: "second", Embedding: []float32{1, 1}},
		},
	}

	engine := NewEngine(scanner, nil)

	matches, err := engine.Search(context.Background(), []float32{1, 1}, 5, -1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}

	if matches[0].Record.ID != "first" || matches[1].Record.ID != "second" {
		t.Errorf("tie order broken: %q, %q", matches[0].Record.ID, matches[1].Record.ID)
	}
}

func TestEngine_Search_EmptyCorpus(t *testing.T) {
	engine := NewEngine(&mockScanner{}, nil)

	matches, err := engine.Search(context.Background(), []float32{1, 0}, 5, 0.55)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(matches) != 0 {
		t.Errorf("empty corpus should yield no matches, got %d", len(matches))
	}
}

func TestEngine_Search_MalformedRecordScoresZero(t *testing.T) {
	scanner := &mockScanner{
		records: []Record{
			{ID: "good", Embedding: []float32{1, 0}},
			{ID: "zero", Embedding: []float32{0, 0}},
			{ID: "short", Embedding: []float32{1}},
		},
	}

	engine := NewEngine(scanner, nil)

	matches, err := engine.Search(context.Background(), []float32{1, 0}, 5, 0.5)
	if err != nil {
		t.Fatalf("malformed records must not fail the query: %v", err)
	}

	if len(matches) != 1 || matches[0].Record.ID != "good" {
		t.Errorf("only the well-formed record should match, got %v", matches)
	}
}

func TestEngine_Search_Validation(t *testing.T) {
	engine := NewEngine(&mockScanner{}, nil)

	tests := []struct {
		name     string
		topK     int
		minScore float32
		wantErr  error
	}{
		{"zero topK", 0, 0.5, ErrInvalidTopK},
		{"negative topK", -3, 0.5, ErrInvalidTopK},
		{"minScore too low", 5, -1.5, ErrInvalidMinScore},
		{"minScore too high", 5, 1.5, ErrInvalidMinScore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Search(context.Background(), []float32{1}, tt.topK, tt.minScore)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got error %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEngine_Search_ScanError(t *testing.T) {
	cause := errors.New("pool exhausted")
	engine := NewEngine(&mockScanner{err: cause}, nil)

	_, err := engine.Search(context.Background(), []float32{1}, 5, 0)
	if !errors.Is(err, cause) {
		t.Fatalf("scan error should propagate, got %v", err)
	}
}

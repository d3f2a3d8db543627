//go:build integration
// +build integration

package kb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/tradescholar/supportkb/internal/kb"
	"github.com/tradescholar/supportkb/internal/testutil"
)

// Run with: go test -tags=integration ./internal/kb -v
func TestStore_CRUD_Integration(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := kb.NewStore(db.Pool, testutil.DiscardLogger())

	created, err := store.Create(ctx, "Profit target", "8% in phase one.", "", "")
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if created.ID == "" {
		t.Fatal("Create() returned an entry without an id")
	}
	if created.Category != kb.DefaultCategory {
		t.Errorf("Create() category = %q, want default %q", created.Category, kb.DefaultCategory)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("Create() returned zero timestamps")
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if got.Title != "Profit target" || got.Content != "8% in phase one." {
		t.Errorf("Get() = %+v, want the created entry back", got)
	}

	second, err := store.Create(ctx, "Leverage", "Up to 1:100 on forex.", "Trading", "https://example.com/leverage")
	if err != nil {
		t.Fatalf("Create() second entry unexpected error: %v", err)
	}

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() returned %d entries, want 2", len(entries))
	}
	if entries[0].ID != created.ID || entries[1].ID != second.ID {
		t.Errorf("List() order = %q, %q, want oldest first", entries[0].ID, entries[1].ID)
	}

	updated, err := store.Update(ctx, created.ID, "Profit target", "8% phase one, 5% phase two.", "Evaluation", "")
	if err != nil {
		t.Fatalf("Update() unexpected error: %v", err)
	}
	if updated.Content != "8% phase one, 5% phase two." {
		t.Errorf("Update() content = %q, not replaced", updated.Content)
	}
	if updated.Category != "Evaluation" {
		t.Errorf("Update() category = %q, want Evaluation", updated.Category)
	}
	if updated.UpdatedAt.Before(created.UpdatedAt) {
		t.Errorf("Update() updated_at = %v, went backwards from %v", updated.UpdatedAt, created.UpdatedAt)
	}

	// Unknown ids map to ErrNotFound on every path.
	if _, err := store.Get(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, kb.ErrNotFound) {
		t.Errorf("Get() unknown id: error = %v, want ErrNotFound", err)
	}
	if _, err := store.Update(ctx, "00000000-0000-0000-0000-000000000000", "t", "c", "", ""); !errors.Is(err, kb.ErrNotFound) {
		t.Errorf("Update() unknown id: error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, kb.ErrNotFound) {
		t.Errorf("Delete() unknown id: error = %v, want ErrNotFound", err)
	}

	if err := store.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() unexpected error: %v", err)
	}
	if _, err := store.Get(ctx, created.ID); !errors.Is(err, kb.ErrNotFound) {
		t.Errorf("Get() after delete: error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, created.ID); !errors.Is(err, kb.ErrNotFound) {
		t.Errorf("Delete() twice: error = %v, want ErrNotFound", err)
	}

	entries, err = store.List(ctx)
	if err != nil {
		t.Fatalf("List() after delete unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != second.ID {
		t.Errorf("List() after delete = %d entries, want only the second one", len(entries))
	}
}

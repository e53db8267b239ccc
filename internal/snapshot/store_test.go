package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/doorcount/backend/domain"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "occupancy.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := openStore(t)

	if err := store.Save("2024-05-01", domain.CurrentCount{Male: 12, Female: 9}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	snap, err := store.Load("2024-05-01")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap == nil {
		t.Fatal("expected snapshot, got nil")
	}
	if counts := snap.Counts(); counts.Male != 12 || counts.Female != 9 {
		t.Errorf("counts = %+v, want male=12 female=9", counts)
	}
	if snap.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be set")
	}
}

func TestLoadMissingDateReturnsNil(t *testing.T) {
	store := openStore(t)
	snap, err := store.Load("2024-05-01")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected nil snapshot, got %+v", snap)
	}
}

func TestCleanupDropsOldDates(t *testing.T) {
	store := openStore(t)
	for _, date := range []string{"2024-04-28", "2024-04-29", "2024-05-01"} {
		if err := store.Save(date, domain.CurrentCount{Male: 1}); err != nil {
			t.Fatalf("Save(%s): %v", date, err)
		}
	}
	if err := store.Cleanup("2024-05-01"); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	size, err := store.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 1 {
		t.Errorf("size = %d, want 1", size)
	}
}

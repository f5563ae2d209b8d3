package change

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mvaldes/archtrack/internal/config"
	"github.com/mvaldes/archtrack/internal/trackerr"
)

func newTestSQLiteStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	store := NewSQLiteStore()
	t.Cleanup(func() { _ = store.Close() })
	return store, t.TempDir()
}

func TestSQLiteStoreAppendGet(t *testing.T) {
	store, root := newTestSQLiteStore(t)

	c := testChange("c1", "2024-01-10T09:00:00Z", TypeDatabaseSchemaChanged, "orders-db")
	c.Impact.BreakingChange = true
	if err := store.Append(root, c); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := store.Get(root, "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Type != TypeDatabaseSchemaChanged || !got.Impact.BreakingChange {
		t.Errorf("Get returned %+v, want original record", got)
	}

	// The database file lives under arch/.
	if _, err := os.Stat(filepath.Join(config.ArchPath(root), DatabaseFile)); err != nil {
		t.Errorf("database file missing: %v", err)
	}
}

func TestSQLiteStoreGetMissingIsNotFound(t *testing.T) {
	store, root := newTestSQLiteStore(t)
	_, err := store.Get(root, "ghost")
	if !trackerr.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestSQLiteStoreAppendDuplicateFails(t *testing.T) {
	store, root := newTestSQLiteStore(t)

	c := testChange("dup", "2024-01-10T09:00:00Z", TypeComponentAdded, "a")
	if err := store.Append(root, c); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	err := store.Append(root, c)
	if !trackerr.IsStorage(err) {
		t.Errorf("duplicate primary key should surface as StorageError, got %v", err)
	}
}

func TestSQLiteStoreListFilters(t *testing.T) {
	store, root := newTestSQLiteStore(t)

	records := []*ArchitectureChange{
		testChange("c1", "2024-01-01T00:00:00Z", TypeComponentAdded, "orders"),
		testChange("c2", "2024-02-01T00:00:00Z", TypeComponentModified, "orders", "billing"),
		testChange("c3", "2024-03-01T00:00:00Z", TypeComponentRemoved, "billing"),
	}
	records[2].Category = CategoryDatabase
	for _, c := range records {
		if err := store.Append(root, c); err != nil {
			t.Fatalf("Append %s: %v", c.ID, err)
		}
	}

	all, err := store.List(root, ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c1" || all[2].ID != "c3" {
		t.Errorf("List = %v, want c1..c3 in timestamp order", ids(all))
	}

	byComponent, err := store.List(root, ListFilter{Component: "billing"})
	if err != nil {
		t.Fatalf("List by component: %v", err)
	}
	if len(byComponent) != 2 {
		t.Errorf("component filter returned %d, want 2", len(byComponent))
	}

	since, _ := time.Parse(time.RFC3339, "2024-01-15T00:00:00Z")
	until, _ := time.Parse(time.RFC3339, "2024-02-15T00:00:00Z")
	windowed, err := store.List(root, ListFilter{Since: since, Until: until})
	if err != nil {
		t.Fatalf("List windowed: %v", err)
	}
	if len(windowed) != 1 || windowed[0].ID != "c2" {
		t.Errorf("windowed list = %v, want just c2", ids(windowed))
	}

	byCategory, err := store.List(root, ListFilter{Category: CategoryDatabase})
	if err != nil {
		t.Fatalf("List by category: %v", err)
	}
	if len(byCategory) != 1 || byCategory[0].ID != "c3" {
		t.Errorf("category filter = %v, want just c3", ids(byCategory))
	}
}

func TestSQLiteStoreSeparateRoots(t *testing.T) {
	store := NewSQLiteStore()
	defer store.Close()

	rootA, rootB := t.TempDir(), t.TempDir()
	if err := store.Append(rootA, testChange("only-a", "2024-01-01T00:00:00Z", TypeComponentAdded, "x")); err != nil {
		t.Fatalf("Append rootA: %v", err)
	}

	if _, err := store.Get(rootB, "only-a"); !trackerr.IsNotFound(err) {
		t.Error("records must not leak between project roots")
	}
}

func TestSQLiteStoreCloseIdempotent(t *testing.T) {
	store, root := newTestSQLiteStore(t)
	if err := store.Append(root, testChange("c1", "2024-01-01T00:00:00Z", TypeComponentAdded, "x")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

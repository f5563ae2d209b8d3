package archdiff

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mvaldes/archtrack/internal/change"
	"github.com/mvaldes/archtrack/internal/trackerr"
)

func testADRChange() *change.ArchitectureChange {
	return &change.ArchitectureChange{
		ID:          "c1",
		Timestamp:   "2024-05-10T00:00:00Z",
		Type:        change.TypeIntegrationAdded,
		Category:    change.CategoryIntegration,
		Description: "Adopt Redis for session storage",
		Rationale:   "In-process sessions break horizontal scaling.",
		Author:      "maria",
		Impact: change.Impact{
			AffectedComponents: []string{"auth-gateway", "session-service"},
			EstimatedEffort:    change.EffortMedium,
			BreakingChange:     true,
		},
		AffectedFiles: []string{"internal/session/store.go"},
	}
}

func TestCreateADR(t *testing.T) {
	root := t.TempDir()
	store := change.NewFileStore()
	if err := store.Append(root, testADRChange()); err != nil {
		t.Fatalf("Append: %v", err)
	}

	path, err := CreateADR(store, root, "c1")
	if err != nil {
		t.Fatalf("CreateADR: %v", err)
	}

	wantName := "ADR-001-adopt-redis-for-session-storage.md"
	if filepath.Base(path) != wantName {
		t.Errorf("file = %q, want %q", filepath.Base(path), wantName)
	}
	if filepath.Dir(path) != ADRsPath(root) {
		t.Errorf("dir = %q, want %q", filepath.Dir(path), ADRsPath(root))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	text := string(data)

	for _, want := range []string{
		"# ADR-001: Adopt Redis for session storage",
		"**Status:** accepted",
		"**Change:** `c1`",
		"## Context",
		"In-process sessions break horizontal scaling.",
		"## Decision",
		"## Consequences",
		"- Breaking change: dependents must plan a migration",
		"- Affected components: auth-gateway, session-service",
		"## Affected Files",
		"- `internal/session/store.go`",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("ADR missing %q", want)
		}
	}
}

func TestCreateADRNumbersSequentially(t *testing.T) {
	root := t.TempDir()
	store := change.NewFileStore()

	c := testADRChange()
	if err := store.Append(root, c); err != nil {
		t.Fatalf("Append: %v", err)
	}
	c2 := testADRChange()
	c2.ID = "c2"
	c2.Description = "Split the orders service"
	if err := store.Append(root, c2); err != nil {
		t.Fatalf("Append: %v", err)
	}

	first, err := CreateADR(store, root, "c1")
	if err != nil {
		t.Fatalf("first CreateADR: %v", err)
	}
	second, err := CreateADR(store, root, "c2")
	if err != nil {
		t.Fatalf("second CreateADR: %v", err)
	}

	if !strings.HasPrefix(filepath.Base(first), "ADR-001-") {
		t.Errorf("first = %q", filepath.Base(first))
	}
	if !strings.HasPrefix(filepath.Base(second), "ADR-002-") {
		t.Errorf("second = %q", filepath.Base(second))
	}
}

func TestCreateADRWithoutRationale(t *testing.T) {
	root := t.TempDir()
	store := change.NewFileStore()
	c := testADRChange()
	c.Rationale = ""
	if err := store.Append(root, c); err != nil {
		t.Fatalf("Append: %v", err)
	}

	path, err := CreateADR(store, root, "c1")
	if err != nil {
		t.Fatalf("CreateADR: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "A integration-added change was recorded in the integration category.") {
		t.Error("fallback context line missing")
	}
}

func TestCreateADRUnknownChange(t *testing.T) {
	root := t.TempDir()
	store := change.NewFileStore()

	if _, err := CreateADR(store, root, "nope"); !trackerr.IsNotFound(err) {
		t.Errorf("err = %v, want NotFoundError", err)
	}
}

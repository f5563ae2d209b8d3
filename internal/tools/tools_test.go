package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mvaldes/archtrack/internal/change"
	"github.com/mvaldes/archtrack/internal/config"
	"github.com/mvaldes/archtrack/internal/impact"
	"github.com/mvaldes/archtrack/internal/snapshot"
)

// --- Test helpers ---

// setupTestProject creates a temp dir with an initialized tracking setup
// and changes cwd to it. Returns the temp dir and a cleanup function.
func setupTestProject(t *testing.T) (string, func()) {
	t.Helper()
	tmpDir := t.TempDir()

	cfg := config.Default()
	cfg.Project = "test-project"
	cfg.DocsGlobs = []string{"docs/prps/*.md"}
	if err := config.Save(tmpDir, cfg); err != nil {
		t.Fatalf("setup: save config: %v", err)
	}

	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("setup: getwd: %v", err)
	}

	// Change to temp dir so findProjectRoot() works.
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("setup: chdir: %v", err)
	}

	cleanup := func() {
		_ = os.Chdir(origDir)
	}

	return tmpDir, cleanup
}

// newTestStack wires store, snapshot cache, recorder and analyzer the way
// the server composition root does.
func newTestStack() (change.Store, *snapshot.Store, *change.Recorder, *impact.Analyzer) {
	store := change.NewFileStore()
	snap := snapshot.NewStore(store)
	return store, snap, change.NewRecorder(store, snap), impact.NewAnalyzer(snap)
}

// seedChange appends one change directly to the store.
func seedChange(t *testing.T, store change.Store, root, id, ts string, typ change.ChangeType, breaking bool, components ...string) {
	t.Helper()
	err := store.Append(root, &change.ArchitectureChange{
		ID:          id,
		Timestamp:   ts,
		Type:        typ,
		Category:    change.CategoryBackend,
		Description: "change " + id,
		Author:      "test",
		Impact: change.Impact{
			AffectedComponents: components,
			EstimatedEffort:    change.EffortMedium,
			BreakingChange:     breaking,
		},
	})
	if err != nil {
		t.Fatalf("seed: append %s: %v", id, err)
	}
}

// chdirTemp changes into dir and returns the previous working directory.
func chdirTemp(dir string) (string, error) {
	orig, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return orig, os.Chdir(dir)
}

func restoreDir(dir string) { _ = os.Chdir(dir) }

// isErrorResult checks if the result is a tool error.
func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func callTool(t *testing.T, tool interface {
	Handle(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
}, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	return result
}

// --- argument helpers ---

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"a", []string{"a"}},
		{"a,b", []string{"a", "b"}},
		{" a , b ,, c ", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		got := splitList(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitList(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestParseDate(t *testing.T) {
	if _, err := parseDate("2024-05-01"); err != nil {
		t.Errorf("plain date rejected: %v", err)
	}
	got, err := parseDate("2024-05-01T10:30:00Z")
	if err != nil {
		t.Errorf("RFC3339 rejected: %v", err)
	}
	if got.Hour() != 10 {
		t.Errorf("hour = %d, want 10", got.Hour())
	}
	if _, err := parseDate("May 1st"); err == nil {
		t.Error("garbage date accepted")
	}
	if _, err := parseDate(""); err == nil {
		t.Error("empty date accepted")
	}
}

func TestFindProjectRootWalksUp(t *testing.T) {
	tmpDir, cleanup := setupTestProject(t)
	defer cleanup()

	sub := filepath.Join(tmpDir, "internal")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.Chdir(sub); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	root, err := findProjectRoot()
	if err != nil {
		t.Fatalf("findProjectRoot: %v", err)
	}
	if !config.Exists(root) {
		t.Errorf("root %q has no tracking config", root)
	}
}

// --- InitTool ---

func TestInitTool_Definition(t *testing.T) {
	def := NewInitTool().Definition()
	if def.Name != "arch_init" {
		t.Errorf("name = %q, want arch_init", def.Name)
	}
}

func TestInitTool_Handle_Success(t *testing.T) {
	origDir, err := chdirTemp(t.TempDir())
	if err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer restoreDir(origDir)

	result := callTool(t, NewInitTool(), map[string]interface{}{
		"project": "shop",
	})
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	text := getResultText(result)
	if !strings.Contains(text, "Architecture Tracking Initialized") {
		t.Error("result should announce initialization")
	}

	root, err := findProjectRoot()
	if err != nil {
		t.Fatalf("findProjectRoot: %v", err)
	}
	if !config.Exists(root) {
		t.Error("config file was not written")
	}
	for _, dir := range []string{"changes", "snapshots", "adrs", "backups"} {
		if _, err := os.Stat(filepath.Join(config.ArchPath(root), dir)); err != nil {
			t.Errorf("directory %s missing: %v", dir, err)
		}
	}

	cfg, err := config.Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Project != "shop" {
		t.Errorf("project = %q, want shop", cfg.Project)
	}
}

func TestInitTool_Handle_CustomGlob(t *testing.T) {
	origDir, err := chdirTemp(t.TempDir())
	if err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer restoreDir(origDir)

	result := callTool(t, NewInitTool(), map[string]interface{}{
		"project":   "shop",
		"docs_glob": "specs/**/*.md",
	})
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	root, err := findProjectRoot()
	if err != nil {
		t.Fatalf("findProjectRoot: %v", err)
	}
	cfg, err := config.Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.DocsGlobs) != 1 || cfg.DocsGlobs[0] != "specs/**/*.md" {
		t.Errorf("DocsGlobs = %v", cfg.DocsGlobs)
	}
}

func TestInitTool_Handle_AlreadyInitialized(t *testing.T) {
	_, cleanup := setupTestProject(t)
	defer cleanup()

	result := callTool(t, NewInitTool(), map[string]interface{}{
		"project": "shop",
	})
	if !isErrorResult(result) {
		t.Fatal("expected error result")
	}
	if !strings.Contains(getResultText(result), "already initialized") {
		t.Errorf("text = %q", getResultText(result))
	}
}

func TestInitTool_Handle_MissingProject(t *testing.T) {
	result := callTool(t, NewInitTool(), map[string]interface{}{})
	if !isErrorResult(result) {
		t.Fatal("expected error result for missing project")
	}
}


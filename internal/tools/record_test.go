package tools

import (
	"strings"
	"testing"

	"github.com/mvaldes/archtrack/internal/change"
)

func TestRecordTool_Definition(t *testing.T) {
	_, _, recorder, analyzer := newTestStack()
	def := NewRecordTool(recorder, analyzer).Definition()
	if def.Name != "arch_record_change" {
		t.Errorf("name = %q, want arch_record_change", def.Name)
	}
}

func TestRecordTool_Handle_Success(t *testing.T) {
	tmpDir, cleanup := setupTestProject(t)
	defer cleanup()

	store, _, recorder, analyzer := newTestStack()
	tool := NewRecordTool(recorder, analyzer)

	result := callTool(t, tool, map[string]interface{}{
		"type":                "component-added",
		"category":            "backend",
		"description":         "Split orders-service out of the monolith",
		"rationale":           "The monolith deploy cycle blocks the orders team.",
		"affected_components": "orders-service",
		"estimated_effort":    "high",
	})
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	text := getResultText(result)
	if !strings.Contains(text, "Change Recorded") {
		t.Error("result should announce the recorded change")
	}
	if !strings.Contains(text, "Risk score:") {
		t.Error("result should include the risk score")
	}

	changes, err := store.List(tmpDir, change.ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("stored changes = %d, want 1", len(changes))
	}
	if changes[0].Description != "Split orders-service out of the monolith" {
		t.Errorf("description = %q", changes[0].Description)
	}
}

func TestRecordTool_Handle_BreakingChangeHintsSync(t *testing.T) {
	_, cleanup := setupTestProject(t)
	defer cleanup()

	_, _, recorder, analyzer := newTestStack()
	result := callTool(t, NewRecordTool(recorder, analyzer), map[string]interface{}{
		"type":                "api-modified",
		"category":            "backend",
		"description":         "Rename the order status field",
		"affected_components": "orders-service",
		"estimated_effort":    "low",
		"breaking_change":     true,
	})
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}
	if !strings.Contains(getResultText(result), "arch_sync") {
		t.Error("breaking change should point at arch_sync")
	}
}

func TestRecordTool_Handle_MissingComponents(t *testing.T) {
	_, cleanup := setupTestProject(t)
	defer cleanup()

	_, _, recorder, analyzer := newTestStack()
	result := callTool(t, NewRecordTool(recorder, analyzer), map[string]interface{}{
		"type":             "component-added",
		"category":         "backend",
		"description":      "something",
		"estimated_effort": "low",
	})
	if !isErrorResult(result) {
		t.Fatal("expected error result")
	}
	if !strings.Contains(getResultText(result), "affected_components") {
		t.Errorf("text = %q", getResultText(result))
	}
}

func TestRecordTool_Handle_InvalidType(t *testing.T) {
	_, cleanup := setupTestProject(t)
	defer cleanup()

	_, _, recorder, analyzer := newTestStack()
	result := callTool(t, NewRecordTool(recorder, analyzer), map[string]interface{}{
		"type":                "big-rewrite",
		"category":            "backend",
		"description":         "something",
		"affected_components": "orders-service",
		"estimated_effort":    "low",
	})
	if !isErrorResult(result) {
		t.Fatal("expected error result for unknown type")
	}
}

func TestRecordTool_Handle_NotInitialized(t *testing.T) {
	origDir, err := chdirTemp(t.TempDir())
	if err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer restoreDir(origDir)

	_, _, recorder, analyzer := newTestStack()
	result := callTool(t, NewRecordTool(recorder, analyzer), map[string]interface{}{
		"type":                "component-added",
		"category":            "backend",
		"description":         "something",
		"affected_components": "orders-service",
		"estimated_effort":    "low",
	})
	if !isErrorResult(result) {
		t.Fatal("expected error result without initialization")
	}
	if !strings.Contains(getResultText(result), "arch_init") {
		t.Errorf("text = %q", getResultText(result))
	}
}

// Package tools implements the MCP tool handlers for architecture change
// tracking.
//
// Each tool is a struct receiving its dependencies via constructor and
// exposing Definition/Handle, one file per tool. Handlers return
// mcp.NewToolResultError for caller mistakes (bad arguments, missing
// records) and a Go error only for infrastructure failures.
package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mvaldes/archtrack/internal/config"
)

// findProjectRoot walks up from the current working directory looking for
// an existing arch/config.yaml. If none is found, returns cwd. This lets
// tools work from any subdirectory of a tracked project.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}

	current := dir
	for {
		if config.Exists(current) {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			// Reached filesystem root, no tracked project found.
			// Return original cwd — the caller decides what to do.
			return dir, nil
		}
		current = parent
	}
}

// boolArg reads an optional boolean argument, falling back to defaultVal
// when absent or of the wrong type.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// splitList parses a comma-separated argument into trimmed, non-empty items.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseDate accepts a date argument as either YYYY-MM-DD or full RFC3339.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%q is not a valid date (use YYYY-MM-DD or RFC3339)", s)
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mvaldes/archtrack/internal/archdiff"
	"github.com/mvaldes/archtrack/internal/snapshot"
)

// DiffTool handles the arch_diff MCP tool.
// It reconstructs the architecture at two dates by replaying the change log
// and reports what was added, removed and modified between them.
type DiffTool struct {
	snap *snapshot.Store
}

// NewDiffTool creates a DiffTool.
func NewDiffTool(snap *snapshot.Store) *DiffTool {
	return &DiffTool{snap: snap}
}

// Definition returns the MCP tool definition for registration.
func (t *DiffTool) Definition() mcp.Tool {
	return mcp.NewTool("arch_diff",
		mcp.WithDescription(
			"Compare the architecture between two dates. Both states are "+
				"reconstructed from the change log, so any past date works. "+
				"Returns a structured diff grouped by entity kind (components, "+
				"APIs, databases, integrations, security policies).",
		),
		mcp.WithString("from",
			mcp.Required(),
			mcp.Description("Earlier date (YYYY-MM-DD or RFC3339)"),
		),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Later date (YYYY-MM-DD or RFC3339)"),
		),
	)
}

// Handle processes the arch_diff tool call.
func (t *DiffTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := parseDate(req.GetString("from", ""))
	if err != nil {
		return mcp.NewToolResultError("'from': " + err.Error()), nil
	}
	to, err := parseDate(req.GetString("to", ""))
	if err != nil {
		return mcp.NewToolResultError("'to': " + err.Error()), nil
	}
	if to.Before(from) {
		return mcp.NewToolResultError("'to' must not be before 'from'"), nil
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	diff, err := archdiff.Diff(t.snap, projectRoot, from, to)
	if err != nil {
		return nil, fmt.Errorf("diffing architecture: %w", err)
	}

	if diff.Empty() {
		return mcp.NewToolResultText(fmt.Sprintf(
			"No architecture changes between %s and %s.", diff.From, diff.To,
		)), nil
	}

	data, err := json.MarshalIndent(diff, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding diff: %w", err)
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"# Architecture Diff: %s → %s\n\n```json\n%s\n```",
		diff.From, diff.To, data,
	)), nil
}

package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mvaldes/archtrack/internal/archdiff"
	"github.com/mvaldes/archtrack/internal/change"
	"github.com/mvaldes/archtrack/internal/trackerr"
)

// ADRTool handles the arch_adr MCP tool.
// It renders a recorded change as a numbered Architecture Decision Record.
type ADRTool struct {
	store change.Store
}

// NewADRTool creates an ADRTool.
func NewADRTool(store change.Store) *ADRTool {
	return &ADRTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *ADRTool) Definition() mcp.Tool {
	return mcp.NewTool("arch_adr",
		mcp.WithDescription(
			"Generate an Architecture Decision Record (ADR) from a recorded "+
				"change. The ADR is written to arch/adrs/ with the next "+
				"sequential number and a slug derived from the description.",
		),
		mcp.WithString("change_id",
			mcp.Required(),
			mcp.Description("Id of the recorded change to document"),
		),
	)
}

// Handle processes the arch_adr tool call.
func (t *ADRTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	changeID := req.GetString("change_id", "")
	if changeID == "" {
		return mcp.NewToolResultError("'change_id' is required"), nil
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	path, err := archdiff.CreateADR(t.store, projectRoot, changeID)
	if err != nil {
		if trackerr.IsNotFound(err) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("creating ADR: %w", err)
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"# ADR Created\n\nDecision record written to `%s`.", path,
	)), nil
}

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mvaldes/archtrack/internal/change"
	"github.com/mvaldes/archtrack/internal/snapshot"
)

// ListTool handles the arch_list_changes MCP tool.
type ListTool struct {
	snap *snapshot.Store
}

// NewListTool creates a ListTool.
func NewListTool(snap *snapshot.Store) *ListTool {
	return &ListTool{snap: snap}
}

// Definition returns the MCP tool definition for registration.
func (t *ListTool) Definition() mcp.Tool {
	return mcp.NewTool("arch_list_changes",
		mcp.WithDescription(
			"List recorded architecture changes in chronological order, "+
				"optionally filtered by date range, category or component.",
		),
		mcp.WithString("since",
			mcp.Description("Only changes at or after this date (YYYY-MM-DD or RFC3339)"),
		),
		mcp.WithString("until",
			mcp.Description("Only changes at or before this date (YYYY-MM-DD or RFC3339)"),
		),
		mcp.WithString("category",
			mcp.Description("Only changes in this category"),
			mcp.Enum(change.CategoryValues()...),
		),
		mcp.WithString("component",
			mcp.Description("Only changes affecting this component id"),
		),
	)
}

// Handle processes the arch_list_changes tool call.
func (t *ListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := change.ListFilter{
		Category:  change.Category(req.GetString("category", "")),
		Component: req.GetString("component", ""),
	}
	if s := req.GetString("since", ""); s != "" {
		ts, err := parseDate(s)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filter.Since = ts
	}
	if s := req.GetString("until", ""); s != "" {
		ts, err := parseDate(s)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filter.Until = ts
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	changes, err := t.snap.Changes(projectRoot, filter.Since, filter.Until)
	if err != nil {
		return nil, fmt.Errorf("listing changes: %w", err)
	}

	var filtered []change.ArchitectureChange
	for i := range changes {
		if filter.Category != "" && changes[i].Category != filter.Category {
			continue
		}
		if filter.Component != "" && !change.TouchesComponent(&changes[i], filter.Component) {
			continue
		}
		filtered = append(filtered, changes[i])
	}

	if len(filtered) == 0 {
		return mcp.NewToolResultText("No changes match the given filters."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Architecture Changes (%d)\n\n", len(filtered))
	for i := range filtered {
		c := &filtered[i]
		fmt.Fprintf(&b, "- %s **%s** (%s): %s", c.Timestamp, c.Type, c.Category, c.Description)
		if c.Impact.BreakingChange {
			b.WriteString(" **[breaking]**")
		}
		fmt.Fprintf(&b, " — `%s`\n", c.ID)
	}

	return mcp.NewToolResultText(b.String()), nil
}

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mvaldes/archtrack/internal/change"
	"github.com/mvaldes/archtrack/internal/config"
	"github.com/mvaldes/archtrack/internal/impact"
	"github.com/mvaldes/archtrack/internal/trackerr"
)

// RecordTool handles the arch_record_change MCP tool.
// It validates and appends a change to the log, then reports the impact
// analysis for the freshly recorded change.
type RecordTool struct {
	recorder *change.Recorder
	analyzer *impact.Analyzer
}

// NewRecordTool creates a RecordTool.
func NewRecordTool(recorder *change.Recorder, analyzer *impact.Analyzer) *RecordTool {
	return &RecordTool{recorder: recorder, analyzer: analyzer}
}

// Definition returns the MCP tool definition for registration.
func (t *RecordTool) Definition() mcp.Tool {
	return mcp.NewTool("arch_record_change",
		mcp.WithDescription(
			"Record an architecture change in the append-only log. "+
				"Each change captures what happened, why, and its estimated impact. "+
				"Recorded changes are immutable — to correct one, record a new "+
				"change with 'supersedes' set to the old change id.",
		),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("The kind of change, e.g. component-added, api-removed, "+
				"database-schema-changed"),
			mcp.Enum(change.TypeValues()...),
		),
		mcp.WithString("category",
			mcp.Required(),
			mcp.Description("The architectural concern the change belongs to"),
			mcp.Enum(change.CategoryValues()...),
		),
		mcp.WithString("description",
			mcp.Required(),
			mcp.Description("What changed. Example: 'Split orders-service out of the monolith'"),
		),
		mcp.WithString("rationale",
			mcp.Description("Why the change was made. Becomes the Context section of a "+
				"generated ADR."),
		),
		mcp.WithString("affected_components",
			mcp.Required(),
			mcp.Description("Comma-separated component ids this change touches. "+
				"Example: 'orders-service,billing-service'"),
		),
		mcp.WithString("estimated_effort",
			mcp.Required(),
			mcp.Description("Estimated implementation effort"),
			mcp.Enum("low", "medium", "high"),
		),
		mcp.WithBoolean("breaking_change",
			mcp.Description("Whether downstream consumers must adapt. Defaults to false."),
		),
		mcp.WithBoolean("security_impact",
			mcp.Description("Whether the change touches authentication, authorization or "+
				"data protection. Defaults to false."),
		),
		mcp.WithString("performance_impact",
			mcp.Description("Expected performance direction, if known"),
			mcp.Enum("improvement", "degradation", "neutral"),
		),
		mcp.WithString("affected_files",
			mcp.Description("Comma-separated file paths the change touches"),
		),
		mcp.WithString("dependencies",
			mcp.Description("Comma-separated ids of components this change newly depends on"),
		),
		mcp.WithString("spec_document_id",
			mcp.Description("Id of the PRP document this change belongs to, if any"),
		),
		mcp.WithString("author",
			mcp.Description("Who made the change. Defaults to 'unknown'."),
		),
		mcp.WithString("supersedes",
			mcp.Description("Id of an earlier change this one corrects"),
		),
	)
}

// Handle processes the arch_record_change tool call.
func (t *RecordTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	draft := change.Draft{
		Type:           change.ChangeType(req.GetString("type", "")),
		Category:       change.Category(req.GetString("category", "")),
		Description:    req.GetString("description", ""),
		Rationale:      req.GetString("rationale", ""),
		AffectedFiles:  splitList(req.GetString("affected_files", "")),
		SpecDocumentID: req.GetString("spec_document_id", ""),
		Author:         req.GetString("author", ""),
		Supersedes:     req.GetString("supersedes", ""),
		Impact: change.Impact{
			AffectedComponents: splitList(req.GetString("affected_components", "")),
			EstimatedEffort:    change.EffortTier(req.GetString("estimated_effort", "")),
			BreakingChange:     boolArg(req, "breaking_change", false),
			SecurityImpact:     boolArg(req, "security_impact", false),
			PerformanceImpact:  change.PerformanceImpact(req.GetString("performance_impact", "")),
			Dependencies:       splitList(req.GetString("dependencies", "")),
		},
	}
	if len(draft.Impact.AffectedComponents) == 0 {
		return mcp.NewToolResultError("'affected_components' is required — name at least one component"), nil
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}
	if !config.Exists(projectRoot) {
		return mcp.NewToolResultError("no architecture tracking found — run arch_init first"), nil
	}

	recorded, err := t.recorder.Record(projectRoot, draft)
	if err != nil {
		if trackerr.IsValidation(err) || trackerr.IsConflict(err) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, err
	}

	report, err := t.analyzer.Analyze(projectRoot, recorded)
	if err != nil {
		return nil, fmt.Errorf("analyzing impact: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Change Recorded\n\n")
	fmt.Fprintf(&b, "**ID:** `%s`\n", recorded.ID)
	fmt.Fprintf(&b, "**Type:** %s\n", recorded.Type)
	fmt.Fprintf(&b, "**Category:** %s\n", recorded.Category)
	fmt.Fprintf(&b, "**Components:** %s\n", strings.Join(recorded.Impact.AffectedComponents, ", "))
	fmt.Fprintf(&b, "**Risk score:** %d\n\n", report.RiskScore)

	if len(report.Conflicts) > 0 {
		b.WriteString("## Conflicts\n\n")
		for _, c := range report.Conflicts {
			fmt.Fprintf(&b, "- **%s** — %s (change `%s`)\n", c.Severity, c.Description, c.ChangeID)
		}
		b.WriteString("\n")
	}
	if len(report.Recommendations) > 0 {
		b.WriteString("## Recommendations\n\n")
		for _, r := range report.Recommendations {
			fmt.Fprintf(&b, "- %s\n", r)
		}
		b.WriteString("\n")
	}

	if impact.NeedsRegeneration(recorded, false) {
		b.WriteString("This change crosses the regeneration threshold — run `arch_sync` " +
			"to update affected PRP documents.\n")
	}

	return mcp.NewToolResultText(b.String()), nil
}

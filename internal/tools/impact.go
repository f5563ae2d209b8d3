package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mvaldes/archtrack/internal/change"
	"github.com/mvaldes/archtrack/internal/impact"
	"github.com/mvaldes/archtrack/internal/snapshot"
	"github.com/mvaldes/archtrack/internal/trackerr"
)

// ImpactTool handles the arch_impact MCP tool.
// It analyzes either an already-recorded change (by id) or a hypothetical
// proposal described inline, without recording anything.
type ImpactTool struct {
	snap     *snapshot.Store
	analyzer *impact.Analyzer
}

// NewImpactTool creates an ImpactTool.
func NewImpactTool(snap *snapshot.Store, analyzer *impact.Analyzer) *ImpactTool {
	return &ImpactTool{snap: snap, analyzer: analyzer}
}

// Definition returns the MCP tool definition for registration.
func (t *ImpactTool) Definition() mcp.Tool {
	return mcp.NewTool("arch_impact",
		mcp.WithDescription(
			"Analyze the impact of an architecture change: risk score, conflicts "+
				"with recent changes, related history and recommendations. "+
				"Pass 'change_id' for a recorded change, or describe a proposal "+
				"inline with type/category/description/affected_components — "+
				"proposals are analyzed without being recorded.",
		),
		mcp.WithString("change_id",
			mcp.Description("Id of a recorded change to analyze"),
		),
		mcp.WithString("type",
			mcp.Description("Proposal: the kind of change"),
			mcp.Enum(change.TypeValues()...),
		),
		mcp.WithString("category",
			mcp.Description("Proposal: the architectural concern"),
			mcp.Enum(change.CategoryValues()...),
		),
		mcp.WithString("description",
			mcp.Description("Proposal: what would change"),
		),
		mcp.WithString("affected_components",
			mcp.Description("Proposal: comma-separated component ids"),
		),
		mcp.WithString("estimated_effort",
			mcp.Description("Proposal: estimated implementation effort. Defaults to 'medium'."),
			mcp.DefaultString("medium"),
			mcp.Enum("low", "medium", "high"),
		),
		mcp.WithBoolean("breaking_change",
			mcp.Description("Proposal: whether downstream consumers must adapt"),
		),
		mcp.WithBoolean("security_impact",
			mcp.Description("Proposal: whether the change touches security"),
		),
	)
}

// Handle processes the arch_impact tool call.
func (t *ImpactTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	var subject *change.ArchitectureChange
	recorded := false

	if id := req.GetString("change_id", ""); id != "" {
		subject, err = t.snap.Get(projectRoot, id)
		if err != nil {
			if trackerr.IsNotFound(err) {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return nil, err
		}
		recorded = true
	} else {
		draft := change.Draft{
			Type:        change.ChangeType(req.GetString("type", "")),
			Category:    change.Category(req.GetString("category", "")),
			Description: req.GetString("description", ""),
			Impact: change.Impact{
				AffectedComponents: splitList(req.GetString("affected_components", "")),
				EstimatedEffort:    change.EffortTier(req.GetString("estimated_effort", "medium")),
				BreakingChange:     boolArg(req, "breaking_change", false),
				SecurityImpact:     boolArg(req, "security_impact", false),
			},
		}
		if err := draft.Validate(); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		subject = &change.ArchitectureChange{
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			Type:        draft.Type,
			Category:    draft.Category,
			Description: draft.Description,
			Impact:      draft.Impact,
		}
	}

	report, err := t.analyzer.Analyze(projectRoot, subject)
	if err != nil {
		return nil, fmt.Errorf("analyzing impact: %w", err)
	}

	var b strings.Builder
	if recorded {
		fmt.Fprintf(&b, "# Impact Analysis — `%s`\n\n", subject.ID)
	} else {
		b.WriteString("# Impact Analysis — proposal (not recorded)\n\n")
	}
	fmt.Fprintf(&b, "**Change:** %s (%s)\n", subject.Description, subject.Type)
	fmt.Fprintf(&b, "**Components:** %s\n", strings.Join(report.AffectedComponents, ", "))
	fmt.Fprintf(&b, "**Risk score:** %d\n", report.RiskScore)
	fmt.Fprintf(&b, "**Regeneration needed:** %t\n\n", impact.NeedsRegeneration(subject, false))

	if len(report.Conflicts) > 0 {
		b.WriteString("## Conflicts\n\n")
		for _, c := range report.Conflicts {
			fmt.Fprintf(&b, "- **%s** — %s (change `%s`)\n", c.Severity, c.Description, c.ChangeID)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("No conflicts with recent changes.\n\n")
	}

	if len(report.RelatedChanges) > 0 {
		b.WriteString("## Related Changes\n\n")
		for i := range report.RelatedChanges {
			r := &report.RelatedChanges[i]
			fmt.Fprintf(&b, "- %s %s: %s — `%s`\n", r.Timestamp, r.Type, r.Description, r.ID)
		}
		b.WriteString("\n")
	}

	if len(report.Recommendations) > 0 {
		b.WriteString("## Recommendations\n\n")
		for _, r := range report.Recommendations {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}

	return mcp.NewToolResultText(b.String()), nil
}

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mvaldes/archtrack/internal/orchestrator"
	"github.com/mvaldes/archtrack/internal/snapshot"
)

// SyncTool handles the arch_sync MCP tool.
// In check mode it reports which PRP documents are stale; in sync mode it
// regenerates them and captures a snapshot of the architecture state the
// documents now reflect.
type SyncTool struct {
	orch *orchestrator.Orchestrator
	snap *snapshot.Store
}

// NewSyncTool creates a SyncTool.
func NewSyncTool(orch *orchestrator.Orchestrator, snap *snapshot.Store) *SyncTool {
	return &SyncTool{orch: orch, snap: snap}
}

// Definition returns the MCP tool definition for registration.
func (t *SyncTool) Definition() mcp.Tool {
	return mcp.NewTool("arch_sync",
		mcp.WithDescription(
			"Keep PRP documents in sync with recorded architecture changes. "+
				"Mode 'check' reports which documents need regeneration without "+
				"touching them; mode 'sync' regenerates stale documents, "+
				"preserving checklist progress, custom sections and free-form "+
				"notes, with a backup of each original.",
		),
		mcp.WithString("mode",
			mcp.Description("'check' (report only) or 'sync' (regenerate). Defaults to 'check'."),
			mcp.DefaultString("check"),
			mcp.Enum("check", "sync"),
		),
		mcp.WithBoolean("preserve_progress",
			mcp.Description("Carry checked checklist items into regenerated documents. "+
				"Defaults to true."),
		),
		mcp.WithBoolean("preserve_custom_sections",
			mcp.Description("Carry user-added sections into regenerated documents. "+
				"Defaults to true."),
		),
		mcp.WithBoolean("add_change_markers",
			mcp.Description("Annotate updated headings and include a change notice. "+
				"Defaults to true."),
		),
		mcp.WithBoolean("backup",
			mcp.Description("Copy each document to arch/backups/ before overwriting. "+
				"Defaults to true."),
		),
	)
}

// Handle processes the arch_sync tool call.
func (t *SyncTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode := req.GetString("mode", "check")
	if mode != "check" && mode != "sync" {
		return mcp.NewToolResultError("'mode' must be 'check' or 'sync'"), nil
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	if mode == "check" {
		status, err := t.orch.CheckSyncStatus(projectRoot)
		if err != nil {
			return nil, fmt.Errorf("checking sync status: %w", err)
		}
		return mcp.NewToolResultText(renderCheck(status)), nil
	}

	opts := orchestrator.Options{
		PreserveProgress:       boolArg(req, "preserve_progress", true),
		PreserveCustomSections: boolArg(req, "preserve_custom_sections", true),
		AddChangeMarkers:       boolArg(req, "add_change_markers", true),
		Backup:                 boolArg(req, "backup", true),
	}

	status, err := t.orch.SyncAllPRPs(projectRoot, opts)
	if err != nil {
		return nil, fmt.Errorf("syncing documents: %w", err)
	}

	// Capture the architecture state the regenerated documents reflect.
	snapshotPath := ""
	if status.Succeeded > 0 {
		snapshotPath, err = t.snap.Capture(projectRoot)
		if err != nil {
			return nil, fmt.Errorf("capturing snapshot: %w", err)
		}
	}

	return mcp.NewToolResultText(renderSync(status, snapshotPath)), nil
}

func renderCheck(status *orchestrator.SyncStatus) string {
	var b strings.Builder
	b.WriteString("# Sync Status\n\n")
	fmt.Fprintf(&b, "**Documents tracked:** %d\n", status.DocumentsTracked)
	fmt.Fprintf(&b, "**Pending regenerations:** %d\n\n", len(status.PendingTasks))

	if len(status.PendingTasks) > 0 {
		b.WriteString("## Pending\n\n")
		for _, task := range status.PendingTasks {
			fmt.Fprintf(&b, "- **%s** (%s priority): %s — `%s`\n",
				task.Component, task.Priority, task.Reason, task.DocumentPath)
		}
		b.WriteString("\n")
	}
	if len(status.MissingDocuments) > 0 {
		b.WriteString("## Missing Documents\n\n")
		b.WriteString("These components have triggering changes but no PRP document:\n\n")
		for _, comp := range status.MissingDocuments {
			fmt.Fprintf(&b, "- %s\n", comp)
		}
		b.WriteString("\n")
	}
	if len(status.PendingTasks) == 0 && len(status.MissingDocuments) == 0 {
		b.WriteString("All documents are up to date.\n")
	} else if len(status.PendingTasks) > 0 {
		b.WriteString("Run `arch_sync` with mode 'sync' to regenerate.\n")
	}
	return b.String()
}

func renderSync(status *orchestrator.SyncStatus, snapshotPath string) string {
	var b strings.Builder
	b.WriteString("# Sync Complete\n\n")
	fmt.Fprintf(&b, "**Regenerated:** %d\n**Failed:** %d\n\n", status.Succeeded, status.Failed)

	for _, r := range status.Results {
		if r.Error != "" {
			fmt.Fprintf(&b, "- ❌ **%s**: %s\n", r.Component, r.Error)
			continue
		}
		fmt.Fprintf(&b, "- ✅ **%s** → `%s`", r.Component, r.DocumentPath)
		if r.BackupPath != "" {
			fmt.Fprintf(&b, " (backup: `%s`)", r.BackupPath)
		}
		b.WriteString("\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  - ⚠️ %s\n", w)
		}
	}

	if len(status.MissingDocuments) > 0 {
		b.WriteString("\n## Missing Documents\n\n")
		for _, comp := range status.MissingDocuments {
			fmt.Fprintf(&b, "- %s\n", comp)
		}
	}
	if snapshotPath != "" {
		fmt.Fprintf(&b, "\nSnapshot captured: `%s`\n", snapshotPath)
	}
	return b.String()
}

package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mvaldes/archtrack/internal/archdiff"
	"github.com/mvaldes/archtrack/internal/change"
	"github.com/mvaldes/archtrack/internal/config"
	"github.com/mvaldes/archtrack/internal/orchestrator"
	"github.com/mvaldes/archtrack/internal/snapshot"
)

// InitTool handles the arch_init MCP tool.
// It creates the arch/ directory structure and default configuration.
type InitTool struct{}

// NewInitTool creates an InitTool.
func NewInitTool() *InitTool {
	return &InitTool{}
}

// Definition returns the MCP tool definition for registration.
func (t *InitTool) Definition() mcp.Tool {
	return mcp.NewTool("arch_init",
		mcp.WithDescription(
			"Initialize architecture change tracking for a project. "+
				"Creates the arch/ directory with configuration, change log, "+
				"snapshot, ADR and backup directories. "+
				"Run once per project before recording changes.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Project name stored in arch/config.yaml"),
		),
		mcp.WithString("docs_glob",
			mcp.Description("Glob pattern (doublestar syntax, relative to the project root) "+
				"locating PRP documents to keep in sync. Defaults to 'docs/prps/**/*.md'."),
		),
	)
}

// Handle processes the arch_init tool call.
func (t *InitTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := req.GetString("project", "")
	docsGlob := req.GetString("docs_glob", "")

	if project == "" {
		return mcp.NewToolResultError("'project' is required"), nil
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	// Guard: don't overwrite an existing tracking setup.
	if config.Exists(projectRoot) {
		return mcp.NewToolResultError(
			"architecture tracking is already initialized in this project. " +
				"Edit arch/config.yaml to change settings.",
		), nil
	}

	dirs := []string{
		change.ChangesPath(projectRoot),
		snapshot.SnapshotsPath(projectRoot),
		archdiff.ADRsPath(projectRoot),
		orchestrator.BackupsPath(projectRoot),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	cfg := config.Default()
	cfg.Project = project
	if docsGlob != "" {
		cfg.DocsGlobs = []string{filepath.ToSlash(docsGlob)}
	}
	if err := config.Save(projectRoot, cfg); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	response := fmt.Sprintf(
		"# Architecture Tracking Initialized\n\n"+
			"**Project:** %s\n"+
			"**Location:** `%s/`\n\n"+
			"## What was created\n\n"+
			"```\narch/\n"+
			"├── config.yaml       # Project settings and risk weights\n"+
			"├── changes/          # One JSON file per recorded change\n"+
			"├── snapshots/        # Point-in-time architecture captures\n"+
			"├── adrs/             # Generated decision records\n"+
			"└── backups/          # Pre-regeneration document copies\n```\n\n"+
			"## Next Step\n\n"+
			"Record your first change with `arch_record_change`.",
		project, config.ArchDirName,
	)

	return mcp.NewToolResultText(response), nil
}

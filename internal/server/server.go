// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools and resources that depend on abstractions.
// No business logic lives here — only wiring.
package server

import (
	"log"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/mvaldes/archtrack/internal/change"
	"github.com/mvaldes/archtrack/internal/impact"
	"github.com/mvaldes/archtrack/internal/orchestrator"
	"github.com/mvaldes/archtrack/internal/resources"
	"github.com/mvaldes/archtrack/internal/snapshot"
	"github.com/mvaldes/archtrack/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools and resources
// registered. This is the single place where all dependencies are resolved.
//
// The returned cleanup function closes the change store's database
// connections when the SQLite backend is selected, and must be called on
// shutdown (typically via defer). It is always non-nil.
func New() (*server.MCPServer, func(), error) {
	// --- Select the change store backend ---
	//
	// The file backend (one JSON file per change) is the default. The
	// SQLite backend keeps the same append-only semantics but supports
	// indexed filtering on large logs; selected via ARCHTRACK_STORE=sqlite.

	var store change.Store
	cleanup := noop
	if os.Getenv("ARCHTRACK_STORE") == "sqlite" {
		sqlStore := change.NewSQLiteStore()
		store = sqlStore
		cleanup = func() {
			if err := sqlStore.Close(); err != nil {
				log.Printf("WARNING: closing change store: %v", err)
			}
		}
	} else {
		store = change.NewFileStore()
	}

	// --- Create shared dependencies ---

	snap := snapshot.NewStore(store)
	recorder := change.NewRecorder(store, snap)
	analyzer := impact.NewAnalyzer(snap)
	orch := orchestrator.New(snap)

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"archtrack",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register tools ---

	initTool := tools.NewInitTool()
	s.AddTool(initTool.Definition(), initTool.Handle)

	recordTool := tools.NewRecordTool(recorder, analyzer)
	s.AddTool(recordTool.Definition(), recordTool.Handle)

	listTool := tools.NewListTool(snap)
	s.AddTool(listTool.Definition(), listTool.Handle)

	impactTool := tools.NewImpactTool(snap, analyzer)
	s.AddTool(impactTool.Definition(), impactTool.Handle)

	adrTool := tools.NewADRTool(store)
	s.AddTool(adrTool.Definition(), adrTool.Handle)

	diffTool := tools.NewDiffTool(snap)
	s.AddTool(diffTool.Definition(), diffTool.Handle)

	syncTool := tools.NewSyncTool(orch, snap)
	s.AddTool(syncTool.Definition(), syncTool.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(orch)
	s.AddResource(resourceHandler.ChangelogResource(), resourceHandler.HandleChangelog)
	s.AddResource(resourceHandler.SyncStatusResource(), resourceHandler.HandleSyncStatus)

	return s, cleanup, nil
}

// noop is the default cleanup when the file backend is selected.
func noop() {}

// serverInstructions returns the system instructions that tell the host AI
// how to use the tracker effectively.
func serverInstructions() string {
	return `You have access to archtrack, an architecture change tracking MCP server.

## WHEN TO USE archtrack

You MUST record a change with arch_record_change whenever you:
- Add, remove, or significantly modify a component, service, or module
- Change an API surface other components consume
- Change a database schema (tables, columns, indexes, engines)
- Add or remove an external integration
- Change an architectural pattern, security policy, or major dependency

You do NOT need to record:
- Bug fixes that don't change structure or contracts
- Formatting, renames local to one file, comment changes
- Dependency version bumps without API impact

## Workflow

1. Initialize once per project with arch_init.
2. Record each architecture change with arch_record_change as it happens.
   Fill affected_components with the real component ids — impact analysis,
   conflict detection, and document regeneration all key off them.
3. Before proposing a risky change, dry-run it with arch_impact (no
   change_id, describe the proposal inline) to see the risk score and
   conflicts with recent work.
4. Run arch_sync with mode 'check' to see which PRP documents are stale,
   and mode 'sync' to regenerate them. Regeneration preserves checklist
   progress, custom sections, and the Implementation Notes section —
   never hand-edit generated sections, they will be overwritten.
5. Record significant decisions as ADRs with arch_adr.
6. Use arch_diff to summarize how the architecture moved between two dates
   (useful for release notes and onboarding).

## Important Rules

- Recorded changes are immutable. To correct one, record a new change with
  'supersedes' set to the old change id.
- Breaking changes, removals, and schema changes always trigger document
  regeneration — warn the user before recording them casually.
- A high risk score (18+) or a high-severity conflict means the change
  deserves human review before implementation.`
}

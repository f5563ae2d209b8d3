// Package resources implements MCP resource handlers for architecture
// tracking state.
//
// Resources provide read-only data the host can consume for context. They
// use URI-based addressing (arch://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mvaldes/archtrack/internal/change"
	"github.com/mvaldes/archtrack/internal/orchestrator"
)

// Handler manages the resource endpoints.
type Handler struct {
	orch *orchestrator.Orchestrator
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(orch *orchestrator.Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// ChangelogResource returns the MCP resource definition for the changelog.
func (h *Handler) ChangelogResource() mcp.Resource {
	return mcp.NewResource(
		"arch://changelog",
		"Architecture Changelog",
		mcp.WithResourceDescription("Human-readable log of all recorded architecture changes"),
		mcp.WithMIMEType("text/markdown"),
	)
}

// HandleChangelog returns the changelog markdown verbatim.
func (h *Handler) HandleChangelog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	projectRoot, err := findResourceRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	data, err := os.ReadFile(change.ChangelogPath(projectRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return errorResource(req.Params.URI, "no changes recorded yet"), nil
		}
		return nil, fmt.Errorf("reading changelog: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "text/markdown",
			Text:     string(data),
		},
	}, nil
}

// SyncStatusResource returns the MCP resource definition for sync status.
func (h *Handler) SyncStatusResource() mcp.Resource {
	return mcp.NewResource(
		"arch://sync/status",
		"PRP Sync Status",
		mcp.WithResourceDescription("Which PRP documents are stale relative to recorded changes"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleSyncStatus returns the read-only sync status as JSON.
func (h *Handler) HandleSyncStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	projectRoot, err := findResourceRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	status, err := h.orch.CheckSyncStatus(projectRoot)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling sync status: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}

package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/models"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/session"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/storage"
)

// ProjectTools holds references needed by project management tool handlers.
type ProjectTools struct {
	Store   *storage.Store
	Session *session.Session
}

// --- Input types ---

type ListProjectsInput struct {
	Status string `json:"status,omitempty" jsonschema:"Filter projects by status: active, archived, or all (default active)"`
}

type CreateProjectInput struct {
	Name        string `json:"name" jsonschema:"Unique project name (slug-friendly)"`
	Description string `json:"description,omitempty" jsonschema:"Optional project description"`
}

type SwitchProjectInput struct {
	Name string `json:"name" jsonschema:"Name of the project to switch to"`
}

type ArchiveProjectInput struct {
	Name string `json:"name" jsonschema:"Name of the project to archive"`
}

type RestoreProjectInput struct {
	Name string `json:"name" jsonschema:"Name of the archived project to restore"`
}

// --- Handlers ---

func (t *ProjectTools) ListProjects(ctx context.Context, _ *mcp.CallToolRequest, input ListProjectsInput) (*mcp.CallToolResult, any, error) {
	status := input.Status
	if status == "" {
		status = models.ProjectActive
	}

	projects, err := t.Store.ListProjects(ctx, status)
	if err != nil {
		return toolError("Failed to list projects: %v", err), nil, nil
	}
	return toolJSON(projects)
}

func (t *ProjectTools) CreateProject(ctx context.Context, _ *mcp.CallToolRequest, input CreateProjectInput) (*mcp.CallToolResult, any, error) {
	if input.Name == "" {
		return toolError("Project name is required"), nil, nil
	}

	proj, err := t.Store.CreateProject(ctx, input.Name, input.Description)
	if err != nil {
		return toolError("Failed to create project: %v", err), nil, nil
	}

	// Auto-switch to the new project
	if _, err := t.Session.SwitchProject(ctx, t.Store, proj.Name); err != nil {
		return toolError("Project created but failed to switch: %v", err), nil, nil
	}
	return toolJSON(proj)
}

func (t *ProjectTools) SwitchProject(ctx context.Context, _ *mcp.CallToolRequest, input SwitchProjectInput) (*mcp.CallToolResult, any, error) {
	if input.Name == "" {
		return toolError("Project name is required"), nil, nil
	}

	proj, err := t.Session.SwitchProject(ctx, t.Store, input.Name)
	if err != nil {
		return toolError("Failed to switch project: %v", err), nil, nil
	}
	return toolJSON(proj)
}

func (t *ProjectTools) GetCurrentProject(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	id, name, ok := t.Session.GetCurrent()
	if !ok {
		return toolText("No project is currently active. Use switch_project to select one."), nil, nil
	}

	proj, err := t.Store.GetProject(ctx, id)
	if err != nil {
		return toolText(fmt.Sprintf("Active project: %s (details unavailable)", name)), nil, nil
	}
	return toolJSON(proj)
}

func (t *ProjectTools) ArchiveProject(ctx context.Context, _ *mcp.CallToolRequest, input ArchiveProjectInput) (*mcp.CallToolResult, any, error) {
	if input.Name == "" {
		return toolError("Project name is required"), nil, nil
	}

	proj, err := t.Store.ArchiveProject(ctx, input.Name)
	if err != nil {
		return toolError("Failed to archive project: %v", err), nil, nil
	}

	// Archiving the current project clears the session default
	if _, currentName, ok := t.Session.GetCurrent(); ok && currentName == input.Name {
		t.Session.Clear()
	}
	return toolJSON(proj)
}

func (t *ProjectTools) RestoreProject(ctx context.Context, _ *mcp.CallToolRequest, input RestoreProjectInput) (*mcp.CallToolResult, any, error) {
	if input.Name == "" {
		return toolError("Project name is required"), nil, nil
	}

	proj, err := t.Store.RestoreProject(ctx, input.Name)
	if err != nil {
		return toolError("Failed to restore project: %v", err), nil, nil
	}
	return toolJSON(proj)
}

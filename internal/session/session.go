package session

import (
	"context"
	"sync"

	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/apperr"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/models"
)

// ProjectLookup resolves project names. *storage.Store implements it.
type ProjectLookup interface {
	GetProjectByName(ctx context.Context, name string) (*models.Project, error)
}

// Session holds the current project context for an MCP session.
type Session struct {
	mu                 sync.Mutex
	currentProjectID   string
	currentProjectName string
}

// New creates a new empty session with no active project.
func New() *Session {
	return &Session{}
}

// SwitchProject makes the named project the session default. Archived
// projects must be restored first.
func (s *Session) SwitchProject(ctx context.Context, projects ProjectLookup, name string) (*models.Project, error) {
	proj, err := projects.GetProjectByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if proj.Status == models.ProjectArchived {
		return nil, apperr.Wrap(apperr.ErrConflict, "project %q is archived, restore it first", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentProjectID = proj.ID
	s.currentProjectName = proj.Name
	return proj, nil
}

// GetCurrent returns the active project, or ok=false if none is active.
func (s *Session) GetCurrent() (id, name string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentProjectID == "" {
		return "", "", false
	}
	return s.currentProjectID, s.currentProjectName, true
}

// ProjectID returns explicit when set, otherwise the active project id
// (empty when no project is active).
func (s *Session) ProjectID(explicit string) string {
	if explicit != "" {
		return explicit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentProjectID
}

// Clear resets session state.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentProjectID = ""
	s.currentProjectName = ""
}

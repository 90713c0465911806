package storage

import (
	"context"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/apperr"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/models"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/tracing"
)

// ProjectStatusAll lists projects regardless of status.
const ProjectStatusAll = "all"

var projectColumns = []string{"id", "name", "description", "status", "created_at", "updated_at"}

type projectRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Status      string `db:"status"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

func (r projectRow) toModel() models.Project {
	return models.Project{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Status:      r.Status,
		CreatedAt:   parseTime(r.CreatedAt),
		UpdatedAt:   parseTime(r.UpdatedAt),
	}
}

// CreateProject registers a new active project. Names are unique; a
// duplicate name is a conflict.
func (s *Store) CreateProject(ctx context.Context, name, description string) (*models.Project, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.CreateProject")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Wrap(apperr.ErrInvalidArgument, "project name is required")
	}
	now := s.timestamp()

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("projects")
	ib.Cols(projectColumns...)
	ib.Values(s.ids.NewID(), name, description, models.ProjectActive, now, now)
	query, args := ib.Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, s.fail("insert project", err)
	}
	return s.GetProjectByName(ctx, name)
}

// GetProject looks up a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*models.Project, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.GetProject")
	defer span.End()

	sb := selectProjects()
	sb.Where(sb.Equal("id", id))
	return s.getProject(ctx, sb, id)
}

// GetProjectByName looks up a project by its unique name.
func (s *Store) GetProjectByName(ctx context.Context, name string) (*models.Project, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.GetProjectByName")
	defer span.End()

	sb := selectProjects()
	sb.Where(sb.Equal("name", name))
	return s.getProject(ctx, sb, name)
}

// ListProjects returns projects with the given status ordered by name.
// ProjectStatusAll or an empty status lists every project.
func (s *Store) ListProjects(ctx context.Context, status string) ([]models.Project, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.ListProjects")
	defer span.End()

	sb := selectProjects()
	switch status {
	case "", ProjectStatusAll:
	case models.ProjectActive, models.ProjectArchived:
		sb.Where(sb.Equal("status", status))
	default:
		return nil, apperr.Wrap(apperr.ErrInvalidArgument, "unknown project status %q", status)
	}
	sb.OrderBy("name")

	query, args := sb.Build()
	var rows []projectRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, args...); err != nil {
		return nil, s.fail("list projects", err)
	}
	out := make([]models.Project, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// ArchiveProject marks an active project archived. Its entities stay in
// place and remain reachable by id.
func (s *Store) ArchiveProject(ctx context.Context, name string) (*models.Project, error) {
	return s.setProjectStatus(ctx, name, models.ProjectActive, models.ProjectArchived)
}

// RestoreProject marks an archived project active again.
func (s *Store) RestoreProject(ctx context.Context, name string) (*models.Project, error) {
	return s.setProjectStatus(ctx, name, models.ProjectArchived, models.ProjectActive)
}

func (s *Store) setProjectStatus(ctx context.Context, name, from, to string) (*models.Project, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.setProjectStatus")
	defer span.End()

	proj, err := s.GetProjectByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if proj.Status != from {
		return nil, apperr.Wrap(apperr.ErrConflict, "project %q is %s", name, proj.Status)
	}

	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("projects")
	ub.Set(ub.Assign("status", to), ub.Assign("updated_at", s.timestamp()))
	ub.Where(ub.Equal("id", proj.ID), ub.Equal("status", from))
	query, args := ub.Build()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, s.fail("update project status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.Wrap(apperr.ErrConflict, "project %q changed status concurrently", name)
	}
	return s.GetProject(ctx, proj.ID)
}

func selectProjects() *sqlbuilder.SelectBuilder {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(projectColumns...)
	sb.From("projects")
	return sb
}

func (s *Store) getProject(ctx context.Context, sb *sqlbuilder.SelectBuilder, key string) (*models.Project, error) {
	query, args := sb.Build()
	var row projectRow
	if err := sqlx.GetContext(ctx, s.db, &row, query, args...); err != nil {
		if isNoRows(err) {
			return nil, apperr.Wrap(apperr.ErrNotFound, "project %q", key)
		}
		return nil, s.fail("get project", err)
	}
	p := row.toModel()
	return &p, nil
}

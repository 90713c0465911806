package storage

import (
	"context"
	"database/sql"
	"sort"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/apperr"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/models"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/tracing"
)

// DefaultListLimit caps list and lexical search results when the caller
// passes a non-positive limit.
const DefaultListLimit = 50

// LegacyProjectKey is the metadata field older collectors used for the
// tenant before ProjectID existed.
const LegacyProjectKey = "project_id"

// idChunkSize bounds the number of bound parameters per IN clause.
const idChunkSize = 500

var entityColumns = []string{
	"id", "entity_type", "external_id", "title", "content", "metadata",
	"platform_source", "source_event_ids", "participants", "embedding",
	"project_id", "created_at", "updated_at",
}

type entityRow struct {
	ID             string         `db:"id"`
	EntityType     string         `db:"entity_type"`
	ExternalID     string         `db:"external_id"`
	Title          string         `db:"title"`
	Content        string         `db:"content"`
	Metadata       string         `db:"metadata"`
	PlatformSource string         `db:"platform_source"`
	SourceEventIDs string         `db:"source_event_ids"`
	Participants   string         `db:"participants"`
	Embedding      []byte         `db:"embedding"`
	ProjectID      sql.NullString `db:"project_id"`
	CreatedAt      string         `db:"created_at"`
	UpdatedAt      string         `db:"updated_at"`
}

func (r entityRow) toModel() (models.KnowledgeEntity, error) {
	emb, err := DecodeVector(r.Embedding)
	if err != nil {
		return models.KnowledgeEntity{}, err
	}
	e := models.KnowledgeEntity{
		ID:             r.ID,
		EntityType:     r.EntityType,
		ExternalID:     r.ExternalID,
		Title:          r.Title,
		Content:        r.Content,
		Metadata:       decodeMap(r.Metadata),
		PlatformSource: r.PlatformSource,
		SourceEventIDs: decodeStrings(r.SourceEventIDs),
		Participants:   decodeStrings(r.Participants),
		Embedding:      emb,
		ProjectID:      r.ProjectID.String,
		CreatedAt:      parseTime(r.CreatedAt),
		UpdatedAt:      parseTime(r.UpdatedAt),
	}
	promoteProjectID(&e)
	return e, nil
}

// promoteProjectID moves a legacy metadata["project_id"] onto ProjectID.
// An explicit ProjectID wins; the metadata key is dropped either way.
func promoteProjectID(e *models.KnowledgeEntity) {
	raw, ok := e.Metadata[LegacyProjectKey]
	if !ok {
		return
	}
	if pid, isString := raw.(string); isString && e.ProjectID == "" {
		e.ProjectID = pid
	}
	md := make(map[string]any, len(e.Metadata))
	for k, v := range e.Metadata {
		if k != LegacyProjectKey {
			md[k] = v
		}
	}
	if len(md) == 0 {
		md = nil
	}
	e.Metadata = md
}

func embeddingArg(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return EncodeVector(v)
}

// UpsertEntity inserts e or, when (EntityType, ExternalID) already exists,
// overwrites every mutable field and refreshes UpdatedAt. The stored row
// keeps its original ID and CreatedAt. Returns the persisted entity.
func (s *Store) UpsertEntity(ctx context.Context, e models.KnowledgeEntity) (*models.KnowledgeEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.UpsertEntity")
	defer span.End()

	promoteProjectID(&e)
	if err := s.check(e); err != nil {
		return nil, err
	}
	if len(e.Embedding) > 0 {
		if err := checkVector(e.Embedding, s.dims); err != nil {
			return nil, err
		}
	}

	id := e.ID
	if id == "" {
		id = s.ids.NewID()
	}
	metadata, err := encodeMap(e.Metadata)
	if err != nil {
		return nil, err
	}
	events, err := encodeStrings(e.SourceEventIDs)
	if err != nil {
		return nil, err
	}
	participants, err := encodeStrings(e.Participants)
	if err != nil {
		return nil, err
	}
	now := s.timestamp()

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("entities")
	ib.Cols(entityColumns...)
	ib.Values(
		id, e.EntityType, e.ExternalID, e.Title, e.Content, metadata,
		e.PlatformSource, events, participants, embeddingArg(e.Embedding),
		nullString(e.ProjectID), now, now,
	)
	query, args := ib.Build()
	query += ` ON CONFLICT (entity_type, external_id) DO UPDATE SET
		title = excluded.title,
		content = excluded.content,
		metadata = excluded.metadata,
		platform_source = excluded.platform_source,
		source_event_ids = excluded.source_event_ids,
		participants = excluded.participants,
		embedding = excluded.embedding,
		project_id = excluded.project_id,
		updated_at = excluded.updated_at`

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, s.fail("begin upsert entity", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, s.fail("upsert entity", err)
	}

	sb := selectEntities()
	sb.Where(sb.Equal("entity_type", e.EntityType), sb.Equal("external_id", e.ExternalID))
	out, err := s.getEntity(ctx, tx, sb, "reload upserted entity")
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, s.fail("commit upsert entity", err)
	}
	return out, nil
}

// GetEntity returns the entity with the given id.
func (s *Store) GetEntity(ctx context.Context, id string) (*models.KnowledgeEntity, error) {
	return s.GetEntityScoped(ctx, id, "")
}

// GetEntityScoped returns the entity only if it belongs to projectID. A
// mismatch is reported as not found. An empty projectID disables the check.
func (s *Store) GetEntityScoped(ctx context.Context, id, projectID string) (*models.KnowledgeEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.GetEntityScoped")
	defer span.End()

	sb := selectEntities()
	sb.Where(sb.Equal("id", id))
	if projectID != "" {
		sb.Where(sb.Equal("project_id", projectID))
	}
	e, err := s.getEntity(ctx, s.db, sb, "get entity")
	if err != nil {
		if apperr.Kind(err) == apperr.ErrNotFound {
			return nil, apperr.Wrap(apperr.ErrNotFound, "entity %q", id)
		}
		return nil, err
	}
	return e, nil
}

// GetEntityByExternalID looks an entity up by its natural key.
func (s *Store) GetEntityByExternalID(ctx context.Context, entityType, externalID, projectID string) (*models.KnowledgeEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.GetEntityByExternalID")
	defer span.End()

	sb := selectEntities()
	sb.Where(sb.Equal("entity_type", entityType), sb.Equal("external_id", externalID))
	if projectID != "" {
		sb.Where(sb.Equal("project_id", projectID))
	}
	e, err := s.getEntity(ctx, s.db, sb, "get entity by external id")
	if err != nil {
		if apperr.Kind(err) == apperr.ErrNotFound {
			return nil, apperr.Wrap(apperr.ErrNotFound, "entity %s/%s", entityType, externalID)
		}
		return nil, err
	}
	return e, nil
}

// DeleteEntity removes the entity and every relationship touching it.
// Deleting an unknown id succeeds.
func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.DeleteEntity")
	defer span.End()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return s.fail("begin delete entity", err)
	}
	defer tx.Rollback()

	rb := sqlbuilder.SQLite.NewDeleteBuilder()
	rb.DeleteFrom("relationships")
	rb.Where(rb.Or(rb.Equal("source_entity_id", id), rb.Equal("target_entity_id", id)))
	query, args := rb.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return s.fail("delete entity relationships", err)
	}

	eb := sqlbuilder.SQLite.NewDeleteBuilder()
	eb.DeleteFrom("entities")
	eb.Where(eb.Equal("id", id))
	query, args = eb.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return s.fail("delete entity", err)
	}

	if err := tx.Commit(); err != nil {
		return s.fail("commit delete entity", err)
	}
	return nil
}

// ListEntitiesByProject returns the project's entities, newest first.
// entityTypes, when non-empty, restricts the result to those types.
func (s *Store) ListEntitiesByProject(ctx context.Context, projectID string, entityTypes []string, limit int) ([]models.KnowledgeEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.ListEntitiesByProject")
	defer span.End()

	if projectID == "" {
		return nil, apperr.Wrap(apperr.ErrInvalidArgument, "project id is required")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	sb := selectEntities()
	sb.Where(sb.Equal("project_id", projectID))
	if len(entityTypes) > 0 {
		sb.Where(sb.In("entity_type", toArgs(entityTypes)...))
	}
	sb.OrderBy("created_at DESC", "id")
	sb.Limit(limit)
	return s.selectEntityRows(ctx, s.db, sb, "list entities by project")
}

// GetEntitiesByIDs loads the entities among ids that exist (and belong to
// projectID when it is set), newest first. Unknown ids are skipped. A
// positive limit truncates the result.
func (s *Store) GetEntitiesByIDs(ctx context.Context, ids []string, projectID string, limit int) ([]models.KnowledgeEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.GetEntitiesByIDs")
	defer span.End()

	var out []models.KnowledgeEntity
	for start := 0; start < len(ids); start += idChunkSize {
		end := min(start+idChunkSize, len(ids))
		sb := selectEntities()
		sb.Where(sb.In("id", toArgs(ids[start:end])...))
		if projectID != "" {
			sb.Where(sb.Equal("project_id", projectID))
		}
		chunk, err := s.selectEntityRows(ctx, s.db, sb, "get entities by ids")
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func selectEntities() *sqlbuilder.SelectBuilder {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(entityColumns...)
	sb.From("entities")
	return sb
}

func (s *Store) getEntity(ctx context.Context, q sqlx.QueryerContext, sb *sqlbuilder.SelectBuilder, op string) (*models.KnowledgeEntity, error) {
	query, args := sb.Build()
	var row entityRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		return nil, s.fail(op, err)
	}
	e, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) selectEntityRows(ctx context.Context, q sqlx.QueryerContext, sb *sqlbuilder.SelectBuilder, op string) ([]models.KnowledgeEntity, error) {
	query, args := sb.Build()
	var rows []entityRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, s.fail(op, err)
	}
	out := make([]models.KnowledgeEntity, 0, len(rows))
	for _, r := range rows {
		e, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

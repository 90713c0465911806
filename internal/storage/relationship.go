package storage

import (
	"context"
	"sort"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/apperr"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/models"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/tracing"
)

var relationshipColumns = []string{
	"id", "source_entity_id", "target_entity_id", "relationship_type",
	"strength", "metadata", "created_at",
}

type relationshipRow struct {
	ID               string  `db:"id"`
	SourceEntityID   string  `db:"source_entity_id"`
	TargetEntityID   string  `db:"target_entity_id"`
	RelationshipType string  `db:"relationship_type"`
	Strength         float64 `db:"strength"`
	Metadata         string  `db:"metadata"`
	CreatedAt        string  `db:"created_at"`
}

func (r relationshipRow) toModel() models.KnowledgeRelationship {
	return models.KnowledgeRelationship{
		ID:               r.ID,
		SourceEntityID:   r.SourceEntityID,
		TargetEntityID:   r.TargetEntityID,
		RelationshipType: r.RelationshipType,
		Strength:         r.Strength,
		Metadata:         decodeMap(r.Metadata),
		CreatedAt:        parseTime(r.CreatedAt),
	}
}

// UpsertRelationship inserts rel or, when the (source, target, type) triple
// already exists, replaces its strength and metadata. The stored edge keeps
// its original ID and CreatedAt. Endpoints are not required to exist.
func (s *Store) UpsertRelationship(ctx context.Context, rel models.KnowledgeRelationship) (*models.KnowledgeRelationship, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.UpsertRelationship")
	defer span.End()

	if err := s.check(rel); err != nil {
		return nil, err
	}
	id := rel.ID
	if id == "" {
		id = s.ids.NewID()
	}
	metadata, err := encodeMap(rel.Metadata)
	if err != nil {
		return nil, err
	}

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("relationships")
	ib.Cols(relationshipColumns...)
	ib.Values(id, rel.SourceEntityID, rel.TargetEntityID, rel.RelationshipType, rel.Strength, metadata, s.timestamp())
	query, args := ib.Build()
	query += ` ON CONFLICT (source_entity_id, target_entity_id, relationship_type) DO UPDATE SET
		strength = excluded.strength,
		metadata = excluded.metadata`

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, s.fail("begin upsert relationship", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, s.fail("upsert relationship", err)
	}

	sb := selectRelationships()
	sb.Where(
		sb.Equal("source_entity_id", rel.SourceEntityID),
		sb.Equal("target_entity_id", rel.TargetEntityID),
		sb.Equal("relationship_type", rel.RelationshipType),
	)
	rows, err := s.selectRelationshipRows(ctx, tx, sb, "reload upserted relationship")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.Wrap(apperr.ErrStorageUnavailable, "upserted relationship vanished")
	}
	if err := tx.Commit(); err != nil {
		return nil, s.fail("commit upsert relationship", err)
	}
	return &rows[0], nil
}

// GetRelationship returns the relationship with the given id.
func (s *Store) GetRelationship(ctx context.Context, id string) (*models.KnowledgeRelationship, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.GetRelationship")
	defer span.End()

	sb := selectRelationships()
	sb.Where(sb.Equal("id", id))
	rows, err := s.selectRelationshipRows(ctx, s.db, sb, "get relationship")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.Wrap(apperr.ErrNotFound, "relationship %q", id)
	}
	return &rows[0], nil
}

// GetRelationshipsForEntity returns every edge where entityID is the source
// or the target, ordered by strength descending, then newest first.
// relationshipTypes, when non-empty, restricts the result to those types.
func (s *Store) GetRelationshipsForEntity(ctx context.Context, entityID string, relationshipTypes []string) ([]models.KnowledgeRelationship, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.GetRelationshipsForEntity")
	defer span.End()

	sb := selectRelationships()
	sb.Where(sb.Or(sb.Equal("source_entity_id", entityID), sb.Equal("target_entity_id", entityID)))
	if len(relationshipTypes) > 0 {
		sb.Where(sb.In("relationship_type", toArgs(relationshipTypes)...))
	}
	sb.OrderBy("strength DESC", "created_at DESC", "id")
	return s.selectRelationshipRows(ctx, s.db, sb, "get relationships for entity")
}

// GetRelationshipsAmongEntities returns the edges whose endpoints both lie
// in entityIDs, in the same order as GetRelationshipsForEntity.
func (s *Store) GetRelationshipsAmongEntities(ctx context.Context, entityIDs []string, relationshipTypes []string) ([]models.KnowledgeRelationship, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.GetRelationshipsAmongEntities")
	defer span.End()

	members := make(map[string]struct{}, len(entityIDs))
	for _, id := range entityIDs {
		members[id] = struct{}{}
	}

	var out []models.KnowledgeRelationship
	for start := 0; start < len(entityIDs); start += idChunkSize {
		end := min(start+idChunkSize, len(entityIDs))
		sb := selectRelationships()
		sb.Where(sb.In("source_entity_id", toArgs(entityIDs[start:end])...))
		if len(relationshipTypes) > 0 {
			sb.Where(sb.In("relationship_type", toArgs(relationshipTypes)...))
		}
		rows, err := s.selectRelationshipRows(ctx, s.db, sb, "get relationships among entities")
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if _, ok := members[r.TargetEntityID]; ok {
				out = append(out, r)
			}
		}
	}
	SortRelationships(out)
	return out, nil
}

// DeleteRelationship removes the relationship with the given id. Deleting
// an unknown id succeeds.
func (s *Store) DeleteRelationship(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.DeleteRelationship")
	defer span.End()

	db := sqlbuilder.SQLite.NewDeleteBuilder()
	db.DeleteFrom("relationships")
	db.Where(db.Equal("id", id))
	query, args := db.Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return s.fail("delete relationship", err)
	}
	return nil
}

// SortRelationships orders edges by strength descending, then newest first,
// then id.
func SortRelationships(rels []models.KnowledgeRelationship) {
	sort.SliceStable(rels, func(i, j int) bool {
		a, b := rels[i], rels[j]
		if a.Strength != b.Strength {
			return a.Strength > b.Strength
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func selectRelationships() *sqlbuilder.SelectBuilder {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(relationshipColumns...)
	sb.From("relationships")
	return sb
}

func (s *Store) selectRelationshipRows(ctx context.Context, q sqlx.QueryerContext, sb *sqlbuilder.SelectBuilder, op string) ([]models.KnowledgeRelationship, error) {
	query, args := sb.Build()
	var rows []relationshipRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, s.fail(op, err)
	}
	out := make([]models.KnowledgeRelationship, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

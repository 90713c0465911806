package graph

import (
	"context"

	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/apperr"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/models"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/tracing"
)

// DefaultRelatedLimit caps GetRelatedEntities when limit is not positive.
const DefaultRelatedLimit = 20

// GetRelatedEntities returns the distinct one-hop neighbours of entityID
// over edges of relationshipTypes (all types when empty), newest first.
// The entity itself is never included. With projectID set, the entity must
// belong to it and neighbours outside it are dropped.
func (e *Engine) GetRelatedEntities(ctx context.Context, entityID string, relationshipTypes []string, projectID string, limit int) ([]models.KnowledgeEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Engine.GetRelatedEntities")
	defer span.End()

	if entityID == "" {
		return nil, apperr.Wrap(apperr.ErrInvalidArgument, "entity id is required")
	}
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}
	if _, err := e.r.GetEntityScoped(ctx, entityID, projectID); err != nil {
		return nil, err
	}

	rels, err := e.r.GetRelationshipsForEntity(ctx, entityID, relationshipTypes)
	if err != nil {
		return nil, err
	}
	var ids []string
	seen := map[string]struct{}{entityID: {}}
	for _, rel := range rels {
		other := rel.Other(entityID)
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		ids = append(ids, other)
	}
	if len(ids) == 0 {
		return []models.KnowledgeEntity{}, nil
	}
	return e.r.GetEntitiesByIDs(ctx, ids, projectID, limit)
}

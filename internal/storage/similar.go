package storage

import (
	"context"
	"sort"

	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/apperr"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/models"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/tracing"
)

// DefaultSimilarLimit is used when SearchSimilar gets a non-positive limit.
const DefaultSimilarLimit = 10

// SearchSimilar ranks entities with an embedding by cosine similarity to
// embedding, most similar first, ties by id. Entities without an embedding
// never match; stored vectors of another length or with zero norm are
// skipped.
func (s *Store) SearchSimilar(ctx context.Context, embedding []float32, entityTypes []string, projectID string, limit int) ([]models.SimilarityResult, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.SearchSimilar")
	defer span.End()

	if len(embedding) == 0 {
		return nil, apperr.Wrap(apperr.ErrInvalidArgument, "query embedding is empty")
	}
	if err := checkVector(embedding, s.dims); err != nil {
		return nil, err
	}
	if _, ok := cosineSimilarity(embedding, embedding); !ok {
		return nil, apperr.Wrap(apperr.ErrInvalidArgument, "query embedding has zero norm")
	}
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}

	sb := selectEntities()
	sb.Where(sb.IsNotNull("embedding"))
	if len(entityTypes) > 0 {
		sb.Where(sb.In("entity_type", toArgs(entityTypes)...))
	}
	if projectID != "" {
		sb.Where(sb.Equal("project_id", projectID))
	}
	candidates, err := s.selectEntityRows(ctx, s.db, sb, "search similar")
	if err != nil {
		return nil, err
	}

	out := make([]models.SimilarityResult, 0, len(candidates))
	for _, e := range candidates {
		sim, ok := cosineSimilarity(embedding, e.Embedding)
		if !ok {
			continue
		}
		out = append(out, models.SimilarityResult{Entity: e, Similarity: sim})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Entity.ID < out[j].Entity.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

package storage

import (
	"context"
	"strings"
	"unicode"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/apperr"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/models"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/tracing"
)

// Column weights for bm25: a title hit counts ten times a content hit.
const (
	titleWeight   = "10.0"
	contentWeight = "1.0"
)

type searchRow struct {
	entityRow
	Relevance float64 `db:"relevance"`
}

// SearchEntities runs a full-text query over entity titles and contents.
// Every query term must match. Results are ordered by relevance, ties by
// id, and numbered from 1. Content is blanked unless filters.IncludeContent
// is set.
func (s *Store) SearchEntities(ctx context.Context, query string, filters models.SearchFilters, limit int) ([]models.SearchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.SearchEntities")
	defer span.End()

	match := matchExpression(query)
	if match == "" {
		return nil, apperr.Wrap(apperr.ErrInvalidArgument, "search query has no terms")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	cols := make([]string, 0, len(entityColumns)+1)
	for _, c := range entityColumns {
		cols = append(cols, "e."+c+" AS "+c)
	}
	cols = append(cols, "-bm25(entities_fts, "+titleWeight+", "+contentWeight+") AS relevance")

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(cols...)
	sb.From("entities_fts")
	sb.Join("entities e", "e.seq = entities_fts.rowid")
	sb.Where("entities_fts MATCH " + sb.Var(match))
	if len(filters.EntityTypes) > 0 {
		sb.Where(sb.In("e.entity_type", toArgs(filters.EntityTypes)...))
	}
	if len(filters.Platforms) > 0 {
		sb.Where(sb.In("e.platform_source", toArgs(filters.Platforms)...))
	}
	if filters.CreatedAfter != nil {
		sb.Where(sb.GreaterEqualThan("e.created_at", formatTime(*filters.CreatedAfter)))
	}
	if filters.CreatedBefore != nil {
		sb.Where(sb.LessEqualThan("e.created_at", formatTime(*filters.CreatedBefore)))
	}
	if filters.ProjectID != "" {
		sb.Where(sb.Equal("e.project_id", filters.ProjectID))
	}
	sb.OrderBy("relevance DESC", "e.id")
	sb.Limit(limit)

	q, args := sb.Build()
	var rows []searchRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, q, args...); err != nil {
		return nil, s.fail("search entities", err)
	}

	out := make([]models.SearchResult, 0, len(rows))
	for i, r := range rows {
		e, err := r.toModel()
		if err != nil {
			return nil, err
		}
		if !filters.IncludeContent {
			e.Content = ""
		}
		out = append(out, models.SearchResult{Entity: e, Rank: i + 1, Relevance: r.Relevance})
	}
	return out, nil
}

// matchExpression turns free text into an FTS5 query that requires every
// word. Each word is quoted so operators and column filters in user input
// are matched literally.
func matchExpression(query string) string {
	terms := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, t := range terms {
		terms[i] = `"` + t + `"`
	}
	return strings.Join(terms, " AND ")
}

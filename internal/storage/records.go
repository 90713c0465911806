package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/apperr"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/models"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/tracing"
)

// Satellite records hang off an entity and are keyed by their own natural
// id. Upserts keep created_at and refresh every other column.

var (
	decisionColumns = []string{
		"decision_id", "entity_id", "project_id", "title", "context", "decision",
		"consequences", "alternatives", "status", "created_at", "updated_at",
	}
	discussionColumns = []string{
		"summary_id", "entity_id", "project_id", "platform", "channel", "summary",
		"key_points", "decisions", "participants", "message_count", "created_at", "updated_at",
	}
	featureColumns = []string{
		"feature_id", "entity_id", "project_id", "name", "description", "status",
		"files", "contributors", "created_at", "updated_at",
	}
	fileContextColumns = []string{
		"context_id", "entity_id", "project_id", "file_path", "change_type",
		"change_summary", "commit_sha", "author", "created_at", "updated_at",
	}
)

type decisionRow struct {
	DecisionID   string         `db:"decision_id"`
	EntityID     string         `db:"entity_id"`
	ProjectID    sql.NullString `db:"project_id"`
	Title        string         `db:"title"`
	Context      string         `db:"context"`
	Decision     string         `db:"decision"`
	Consequences string         `db:"consequences"`
	Alternatives string         `db:"alternatives"`
	Status       string         `db:"status"`
	CreatedAt    string         `db:"created_at"`
	UpdatedAt    string         `db:"updated_at"`
}

func (r decisionRow) toModel() models.DecisionRecord {
	return models.DecisionRecord{
		DecisionID:   r.DecisionID,
		EntityID:     r.EntityID,
		ProjectID:    r.ProjectID.String,
		Title:        r.Title,
		Context:      r.Context,
		Decision:     r.Decision,
		Consequences: r.Consequences,
		Alternatives: decodeStrings(r.Alternatives),
		Status:       r.Status,
		CreatedAt:    parseTime(r.CreatedAt),
		UpdatedAt:    parseTime(r.UpdatedAt),
	}
}

type discussionRow struct {
	SummaryID    string         `db:"summary_id"`
	EntityID     string         `db:"entity_id"`
	ProjectID    sql.NullString `db:"project_id"`
	Platform     string         `db:"platform"`
	Channel      string         `db:"channel"`
	Summary      string         `db:"summary"`
	KeyPoints    string         `db:"key_points"`
	Decisions    string         `db:"decisions"`
	Participants string         `db:"participants"`
	MessageCount int            `db:"message_count"`
	CreatedAt    string         `db:"created_at"`
	UpdatedAt    string         `db:"updated_at"`
}

func (r discussionRow) toModel() models.DiscussionSummary {
	return models.DiscussionSummary{
		SummaryID:    r.SummaryID,
		EntityID:     r.EntityID,
		ProjectID:    r.ProjectID.String,
		Platform:     r.Platform,
		Channel:      r.Channel,
		Summary:      r.Summary,
		KeyPoints:    decodeStrings(r.KeyPoints),
		Decisions:    decodeStrings(r.Decisions),
		Participants: decodeStrings(r.Participants),
		MessageCount: r.MessageCount,
		CreatedAt:    parseTime(r.CreatedAt),
		UpdatedAt:    parseTime(r.UpdatedAt),
	}
}

type featureRow struct {
	FeatureID    string         `db:"feature_id"`
	EntityID     string         `db:"entity_id"`
	ProjectID    sql.NullString `db:"project_id"`
	Name         string         `db:"name"`
	Description  string         `db:"description"`
	Status       string         `db:"status"`
	Files        string         `db:"files"`
	Contributors string         `db:"contributors"`
	CreatedAt    string         `db:"created_at"`
	UpdatedAt    string         `db:"updated_at"`
}

func (r featureRow) toModel() models.FeatureContext {
	return models.FeatureContext{
		FeatureID:    r.FeatureID,
		EntityID:     r.EntityID,
		ProjectID:    r.ProjectID.String,
		Name:         r.Name,
		Description:  r.Description,
		Status:       r.Status,
		Files:        decodeStrings(r.Files),
		Contributors: decodeStrings(r.Contributors),
		CreatedAt:    parseTime(r.CreatedAt),
		UpdatedAt:    parseTime(r.UpdatedAt),
	}
}

type fileContextRow struct {
	ContextID     string         `db:"context_id"`
	EntityID      string         `db:"entity_id"`
	ProjectID     sql.NullString `db:"project_id"`
	FilePath      string         `db:"file_path"`
	ChangeType    string         `db:"change_type"`
	ChangeSummary string         `db:"change_summary"`
	CommitSHA     string         `db:"commit_sha"`
	Author        string         `db:"author"`
	CreatedAt     string         `db:"created_at"`
	UpdatedAt     string         `db:"updated_at"`
}

func (r fileContextRow) toModel() models.FileContextHistory {
	return models.FileContextHistory{
		ContextID:     r.ContextID,
		EntityID:      r.EntityID,
		ProjectID:     r.ProjectID.String,
		FilePath:      r.FilePath,
		ChangeType:    r.ChangeType,
		ChangeSummary: r.ChangeSummary,
		CommitSHA:     r.CommitSHA,
		Author:        r.Author,
		CreatedAt:     parseTime(r.CreatedAt),
		UpdatedAt:     parseTime(r.UpdatedAt),
	}
}

// UpsertDecision stores d keyed by DecisionID.
func (s *Store) UpsertDecision(ctx context.Context, d models.DecisionRecord) (*models.DecisionRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.UpsertDecision")
	defer span.End()

	if err := s.check(d); err != nil {
		return nil, err
	}
	alternatives, err := encodeStrings(d.Alternatives)
	if err != nil {
		return nil, err
	}
	now := s.timestamp()
	row, err := upsertRecord[decisionRow](ctx, s, "decision_records", decisionColumns, []any{
		d.DecisionID, d.EntityID, nullString(d.ProjectID), d.Title, d.Context, d.Decision,
		d.Consequences, alternatives, d.Status, now, now,
	})
	if err != nil {
		return nil, err
	}
	out := row.toModel()
	return &out, nil
}

// GetDecision returns the decision record, scoped to projectID when set.
func (s *Store) GetDecision(ctx context.Context, decisionID, projectID string) (*models.DecisionRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.GetDecision")
	defer span.End()

	row, err := getRecord[decisionRow](ctx, s, s.db, "decision_records", decisionColumns, decisionID, projectID)
	if err != nil {
		return nil, err
	}
	out := row.toModel()
	return &out, nil
}

// UpsertDiscussionSummary stores d keyed by SummaryID.
func (s *Store) UpsertDiscussionSummary(ctx context.Context, d models.DiscussionSummary) (*models.DiscussionSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.UpsertDiscussionSummary")
	defer span.End()

	if err := s.check(d); err != nil {
		return nil, err
	}
	keyPoints, err := encodeStrings(d.KeyPoints)
	if err != nil {
		return nil, err
	}
	decisions, err := encodeStrings(d.Decisions)
	if err != nil {
		return nil, err
	}
	participants, err := encodeStrings(d.Participants)
	if err != nil {
		return nil, err
	}
	now := s.timestamp()
	row, err := upsertRecord[discussionRow](ctx, s, "discussion_summaries", discussionColumns, []any{
		d.SummaryID, d.EntityID, nullString(d.ProjectID), d.Platform, d.Channel, d.Summary,
		keyPoints, decisions, participants, d.MessageCount, now, now,
	})
	if err != nil {
		return nil, err
	}
	out := row.toModel()
	return &out, nil
}

// GetDiscussionSummary returns the summary, scoped to projectID when set.
func (s *Store) GetDiscussionSummary(ctx context.Context, summaryID, projectID string) (*models.DiscussionSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.GetDiscussionSummary")
	defer span.End()

	row, err := getRecord[discussionRow](ctx, s, s.db, "discussion_summaries", discussionColumns, summaryID, projectID)
	if err != nil {
		return nil, err
	}
	out := row.toModel()
	return &out, nil
}

// UpsertFeatureContext stores f keyed by FeatureID.
func (s *Store) UpsertFeatureContext(ctx context.Context, f models.FeatureContext) (*models.FeatureContext, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.UpsertFeatureContext")
	defer span.End()

	if err := s.check(f); err != nil {
		return nil, err
	}
	files, err := encodeStrings(f.Files)
	if err != nil {
		return nil, err
	}
	contributors, err := encodeStrings(f.Contributors)
	if err != nil {
		return nil, err
	}
	now := s.timestamp()
	row, err := upsertRecord[featureRow](ctx, s, "feature_contexts", featureColumns, []any{
		f.FeatureID, f.EntityID, nullString(f.ProjectID), f.Name, f.Description, f.Status,
		files, contributors, now, now,
	})
	if err != nil {
		return nil, err
	}
	out := row.toModel()
	return &out, nil
}

// GetFeatureContext returns the feature, scoped to projectID when set.
func (s *Store) GetFeatureContext(ctx context.Context, featureID, projectID string) (*models.FeatureContext, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.GetFeatureContext")
	defer span.End()

	row, err := getRecord[featureRow](ctx, s, s.db, "feature_contexts", featureColumns, featureID, projectID)
	if err != nil {
		return nil, err
	}
	out := row.toModel()
	return &out, nil
}

// UpsertFileContext stores f keyed by ContextID.
func (s *Store) UpsertFileContext(ctx context.Context, f models.FileContextHistory) (*models.FileContextHistory, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.UpsertFileContext")
	defer span.End()

	if err := s.check(f); err != nil {
		return nil, err
	}
	now := s.timestamp()
	row, err := upsertRecord[fileContextRow](ctx, s, "file_context_history", fileContextColumns, []any{
		f.ContextID, f.EntityID, nullString(f.ProjectID), f.FilePath, f.ChangeType,
		f.ChangeSummary, f.CommitSHA, f.Author, now, now,
	})
	if err != nil {
		return nil, err
	}
	out := row.toModel()
	return &out, nil
}

// GetFileContext returns one file history entry, scoped to projectID when set.
func (s *Store) GetFileContext(ctx context.Context, contextID, projectID string) (*models.FileContextHistory, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.GetFileContext")
	defer span.End()

	row, err := getRecord[fileContextRow](ctx, s, s.db, "file_context_history", fileContextColumns, contextID, projectID)
	if err != nil {
		return nil, err
	}
	out := row.toModel()
	return &out, nil
}

// ListFileHistory returns the recorded changes to filePath, newest first.
func (s *Store) ListFileHistory(ctx context.Context, filePath, projectID string, limit int) ([]models.FileContextHistory, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Store.ListFileHistory")
	defer span.End()

	if filePath == "" {
		return nil, apperr.Wrap(apperr.ErrInvalidArgument, "file path is required")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(fileContextColumns...)
	sb.From("file_context_history")
	sb.Where(sb.Equal("file_path", filePath))
	if projectID != "" {
		sb.Where(sb.Equal("project_id", projectID))
	}
	sb.OrderBy("created_at DESC", "context_id")
	sb.Limit(limit)

	query, args := sb.Build()
	var rows []fileContextRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, args...); err != nil {
		return nil, s.fail("list file history", err)
	}
	out := make([]models.FileContextHistory, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// upsertRecord writes one satellite row and reads it back in the same
// transaction. cols[0] is the primary key.
func upsertRecord[R any](ctx context.Context, s *Store, table string, cols []string, values []any) (R, error) {
	var zero R

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(cols...)
	ib.Values(values...)
	query, args := ib.Build()

	sets := make([]string, 0, len(cols))
	for _, c := range cols[1:] {
		if c != "created_at" {
			sets = append(sets, c+" = excluded."+c)
		}
	}
	query += " ON CONFLICT (" + cols[0] + ") DO UPDATE SET " + strings.Join(sets, ", ")

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return zero, s.fail("begin upsert "+table, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return zero, s.fail("upsert "+table, err)
	}
	key, _ := values[0].(string)
	row, err := getRecord[R](ctx, s, tx, table, cols, key, "")
	if err != nil {
		return zero, err
	}
	if err := tx.Commit(); err != nil {
		return zero, s.fail("commit upsert "+table, err)
	}
	return row, nil
}

func getRecord[R any](ctx context.Context, s *Store, q sqlx.QueryerContext, table string, cols []string, key, projectID string) (R, error) {
	var row R

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(cols...)
	sb.From(table)
	sb.Where(sb.Equal(cols[0], key))
	if projectID != "" {
		sb.Where(sb.Equal("project_id", projectID))
	}
	query, args := sb.Build()
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if isNoRows(err) {
			return row, apperr.Wrap(apperr.ErrNotFound, "%s %q", table, key)
		}
		return row, s.fail("get "+table, err)
	}
	return row, nil
}

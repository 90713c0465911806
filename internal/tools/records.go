package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/models"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/session"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/storage"
)

// RecordTools holds references needed by the satellite record handlers.
type RecordTools struct {
	Store   *storage.Store
	Session *session.Session
}

// --- Input types ---

type UpsertDecisionInput struct {
	DecisionID   string   `json:"decision_id" jsonschema:"Decision identifier (e.g., ADR number)"`
	EntityID     string   `json:"entity_id" jsonschema:"Entity this decision belongs to"`
	ProjectID    string   `json:"project_id,omitempty" jsonschema:"Owning project id (defaults to the active project)"`
	Title        string   `json:"title" jsonschema:"Decision title"`
	Context      string   `json:"context,omitempty" jsonschema:"Forces and background"`
	Decision     string   `json:"decision,omitempty" jsonschema:"What was decided"`
	Consequences string   `json:"consequences,omitempty" jsonschema:"Resulting trade-offs"`
	Alternatives []string `json:"alternatives,omitempty" jsonschema:"Options that were considered"`
	Status       string   `json:"status,omitempty" jsonschema:"Lifecycle status (proposed, accepted, superseded)"`
}

type UpsertDiscussionSummaryInput struct {
	SummaryID    string   `json:"summary_id" jsonschema:"Summary identifier (e.g., thread id)"`
	EntityID     string   `json:"entity_id" jsonschema:"Entity this summary belongs to"`
	ProjectID    string   `json:"project_id,omitempty" jsonschema:"Owning project id (defaults to the active project)"`
	Platform     string   `json:"platform,omitempty" jsonschema:"Chat or review platform"`
	Channel      string   `json:"channel,omitempty" jsonschema:"Channel or thread location"`
	Summary      string   `json:"summary" jsonschema:"Condensed discussion"`
	KeyPoints    []string `json:"key_points,omitempty" jsonschema:"Main points raised"`
	Decisions    []string `json:"decisions,omitempty" jsonschema:"Decisions reached"`
	Participants []string `json:"participants,omitempty" jsonschema:"People involved"`
	MessageCount int      `json:"message_count,omitempty" jsonschema:"Number of messages summarized"`
}

type UpsertFeatureContextInput struct {
	FeatureID    string   `json:"feature_id" jsonschema:"Feature identifier"`
	EntityID     string   `json:"entity_id" jsonschema:"Entity this feature belongs to"`
	ProjectID    string   `json:"project_id,omitempty" jsonschema:"Owning project id (defaults to the active project)"`
	Name         string   `json:"name" jsonschema:"Feature name"`
	Description  string   `json:"description,omitempty" jsonschema:"What the feature does"`
	Status       string   `json:"status,omitempty" jsonschema:"Delivery status"`
	Files        []string `json:"files,omitempty" jsonschema:"Files implementing the feature"`
	Contributors []string `json:"contributors,omitempty" jsonschema:"People who worked on it"`
}

type UpsertFileContextInput struct {
	ContextID     string `json:"context_id" jsonschema:"History entry identifier"`
	EntityID      string `json:"entity_id" jsonschema:"Entity this change belongs to (usually a commit)"`
	ProjectID     string `json:"project_id,omitempty" jsonschema:"Owning project id (defaults to the active project)"`
	FilePath      string `json:"file_path" jsonschema:"Repository-relative file path"`
	ChangeType    string `json:"change_type,omitempty" jsonschema:"added, modified, deleted or renamed"`
	ChangeSummary string `json:"change_summary,omitempty" jsonschema:"Why the file changed"`
	CommitSHA     string `json:"commit_sha,omitempty" jsonschema:"Commit that made the change"`
	Author        string `json:"author,omitempty" jsonschema:"Change author"`
}

type GetRecordInput struct {
	ID        string `json:"id" jsonschema:"Record identifier"`
	ProjectID string `json:"project_id,omitempty" jsonschema:"Require the record to belong to this project (defaults to the active project)"`
}

type GetFileHistoryInput struct {
	FilePath  string `json:"file_path" jsonschema:"Repository-relative file path"`
	ProjectID string `json:"project_id,omitempty" jsonschema:"Project id (defaults to the active project)"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum results (default 50)"`
}

// --- Handlers ---

func (t *RecordTools) UpsertDecision(ctx context.Context, _ *mcp.CallToolRequest, input UpsertDecisionInput) (*mcp.CallToolResult, any, error) {
	d, err := t.Store.UpsertDecision(ctx, models.DecisionRecord{
		DecisionID:   input.DecisionID,
		EntityID:     input.EntityID,
		ProjectID:    t.Session.ProjectID(input.ProjectID),
		Title:        input.Title,
		Context:      input.Context,
		Decision:     input.Decision,
		Consequences: input.Consequences,
		Alternatives: input.Alternatives,
		Status:       input.Status,
	})
	if err != nil {
		return toolError("Failed to upsert decision: %v", err), nil, nil
	}
	return toolJSON(d)
}

func (t *RecordTools) GetDecision(ctx context.Context, _ *mcp.CallToolRequest, input GetRecordInput) (*mcp.CallToolResult, any, error) {
	d, err := t.Store.GetDecision(ctx, input.ID, t.Session.ProjectID(input.ProjectID))
	if err != nil {
		return toolError("Failed to get decision: %v", err), nil, nil
	}
	return toolJSON(d)
}

func (t *RecordTools) UpsertDiscussionSummary(ctx context.Context, _ *mcp.CallToolRequest, input UpsertDiscussionSummaryInput) (*mcp.CallToolResult, any, error) {
	d, err := t.Store.UpsertDiscussionSummary(ctx, models.DiscussionSummary{
		SummaryID:    input.SummaryID,
		EntityID:     input.EntityID,
		ProjectID:    t.Session.ProjectID(input.ProjectID),
		Platform:     input.Platform,
		Channel:      input.Channel,
		Summary:      input.Summary,
		KeyPoints:    input.KeyPoints,
		Decisions:    input.Decisions,
		Participants: input.Participants,
		MessageCount: input.MessageCount,
	})
	if err != nil {
		return toolError("Failed to upsert discussion summary: %v", err), nil, nil
	}
	return toolJSON(d)
}

func (t *RecordTools) GetDiscussionSummary(ctx context.Context, _ *mcp.CallToolRequest, input GetRecordInput) (*mcp.CallToolResult, any, error) {
	d, err := t.Store.GetDiscussionSummary(ctx, input.ID, t.Session.ProjectID(input.ProjectID))
	if err != nil {
		return toolError("Failed to get discussion summary: %v", err), nil, nil
	}
	return toolJSON(d)
}

func (t *RecordTools) UpsertFeatureContext(ctx context.Context, _ *mcp.CallToolRequest, input UpsertFeatureContextInput) (*mcp.CallToolResult, any, error) {
	f, err := t.Store.UpsertFeatureContext(ctx, models.FeatureContext{
		FeatureID:    input.FeatureID,
		EntityID:     input.EntityID,
		ProjectID:    t.Session.ProjectID(input.ProjectID),
		Name:         input.Name,
		Description:  input.Description,
		Status:       input.Status,
		Files:        input.Files,
		Contributors: input.Contributors,
	})
	if err != nil {
		return toolError("Failed to upsert feature context: %v", err), nil, nil
	}
	return toolJSON(f)
}

func (t *RecordTools) GetFeatureContext(ctx context.Context, _ *mcp.CallToolRequest, input GetRecordInput) (*mcp.CallToolResult, any, error) {
	f, err := t.Store.GetFeatureContext(ctx, input.ID, t.Session.ProjectID(input.ProjectID))
	if err != nil {
		return toolError("Failed to get feature context: %v", err), nil, nil
	}
	return toolJSON(f)
}

func (t *RecordTools) UpsertFileContext(ctx context.Context, _ *mcp.CallToolRequest, input UpsertFileContextInput) (*mcp.CallToolResult, any, error) {
	f, err := t.Store.UpsertFileContext(ctx, models.FileContextHistory{
		ContextID:     input.ContextID,
		EntityID:      input.EntityID,
		ProjectID:     t.Session.ProjectID(input.ProjectID),
		FilePath:      input.FilePath,
		ChangeType:    input.ChangeType,
		ChangeSummary: input.ChangeSummary,
		CommitSHA:     input.CommitSHA,
		Author:        input.Author,
	})
	if err != nil {
		return toolError("Failed to upsert file context: %v", err), nil, nil
	}
	return toolJSON(f)
}

func (t *RecordTools) GetFileHistory(ctx context.Context, _ *mcp.CallToolRequest, input GetFileHistoryInput) (*mcp.CallToolResult, any, error) {
	history, err := t.Store.ListFileHistory(ctx, input.FilePath, t.Session.ProjectID(input.ProjectID), input.Limit)
	if err != nil {
		return toolError("Failed to get file history: %v", err), nil, nil
	}
	return toolJSON(history)
}

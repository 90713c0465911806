package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/graph"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/models"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/session"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/storage"
)

// DefaultTraversalDepth is used when traverse_graph gets no max_depth.
const DefaultTraversalDepth = 2

// KnowledgeTools holds references needed by knowledge graph tool handlers.
// A project_id left empty defaults to the session's active project.
type KnowledgeTools struct {
	Store   *storage.Store
	Engine  *graph.Engine
	Session *session.Session
}

// --- Input types ---

type UpsertEntityInput struct {
	EntityType     string         `json:"entity_type" jsonschema:"Entity type (e.g., pull-request, issue, commit, decision)"`
	ExternalID     string         `json:"external_id" jsonschema:"Identifier on the source platform; with entity_type it is the natural key"`
	Title          string         `json:"title,omitempty" jsonschema:"Short human-readable title"`
	Content        string         `json:"content,omitempty" jsonschema:"Full text body"`
	Metadata       map[string]any `json:"metadata,omitempty" jsonschema:"Arbitrary structured attributes"`
	PlatformSource string         `json:"platform_source,omitempty" jsonschema:"Originating platform (github, slack, ...)"`
	SourceEventIDs []string       `json:"source_event_ids,omitempty" jsonschema:"Ids of the raw events this entity was built from"`
	Participants   []string       `json:"participants,omitempty" jsonschema:"People involved"`
	Embedding      []float32      `json:"embedding,omitempty" jsonschema:"Vector used by search_similar"`
	ProjectID      string         `json:"project_id,omitempty" jsonschema:"Owning project id (defaults to the active project)"`
}

type GetEntityInput struct {
	ID        string `json:"id" jsonschema:"Entity id"`
	ProjectID string `json:"project_id,omitempty" jsonschema:"Require the entity to belong to this project (defaults to the active project)"`
}

type DeleteEntityInput struct {
	ID string `json:"id" jsonschema:"Entity id; its relationships are removed too"`
}

type ListEntitiesInput struct {
	ProjectID   string   `json:"project_id,omitempty" jsonschema:"Project id (defaults to the active project)"`
	EntityTypes []string `json:"entity_types,omitempty" jsonschema:"Only return these entity types"`
	Limit       int      `json:"limit,omitempty" jsonschema:"Maximum results (default 50)"`
}

type UpsertRelationshipInput struct {
	SourceEntityID   string         `json:"source_entity_id" jsonschema:"Source entity id"`
	TargetEntityID   string         `json:"target_entity_id" jsonschema:"Target entity id"`
	RelationshipType string         `json:"relationship_type" jsonschema:"Relationship type (e.g., implements, discussed_in, touches)"`
	Strength         *float64       `json:"strength,omitempty" jsonschema:"Non-negative weight (default 1.0)"`
	Metadata         map[string]any `json:"metadata,omitempty" jsonschema:"Arbitrary structured attributes"`
}

type GetRelationshipsInput struct {
	EntityID          string   `json:"entity_id" jsonschema:"Entity id; edges in both directions are returned"`
	RelationshipTypes []string `json:"relationship_types,omitempty" jsonschema:"Only return these relationship types"`
}

type DeleteRelationshipInput struct {
	ID string `json:"id" jsonschema:"Relationship id"`
}

type SearchEntitiesInput struct {
	Query          string   `json:"query" jsonschema:"Free-text query; every word must match title or content"`
	EntityTypes    []string `json:"entity_types,omitempty" jsonschema:"Only return these entity types"`
	Platforms      []string `json:"platforms,omitempty" jsonschema:"Only return entities from these platforms"`
	CreatedAfter   string   `json:"created_after,omitempty" jsonschema:"RFC3339 lower bound on creation time"`
	CreatedBefore  string   `json:"created_before,omitempty" jsonschema:"RFC3339 upper bound on creation time"`
	ProjectID      string   `json:"project_id,omitempty" jsonschema:"Project id (defaults to the active project)"`
	IncludeContent bool     `json:"include_content,omitempty" jsonschema:"Return full content bodies"`
	Limit          int      `json:"limit,omitempty" jsonschema:"Maximum results (default 50)"`
}

type SearchSimilarInput struct {
	Embedding   []float32 `json:"embedding" jsonschema:"Query vector"`
	EntityTypes []string  `json:"entity_types,omitempty" jsonschema:"Only return these entity types"`
	ProjectID   string    `json:"project_id,omitempty" jsonschema:"Project id (defaults to the active project)"`
	Limit       int       `json:"limit,omitempty" jsonschema:"Maximum results (default 10)"`
}

type TraverseGraphInput struct {
	EntityID          string   `json:"entity_id" jsonschema:"Seed entity id"`
	MaxDepth          *int     `json:"max_depth,omitempty" jsonschema:"Maximum hops from the seed (default 2)"`
	RelationshipTypes []string `json:"relationship_types,omitempty" jsonschema:"Only return edges of these types"`
	ProjectID         string   `json:"project_id,omitempty" jsonschema:"Restrict every node to this project (defaults to the active project)"`
}

type GetRelatedEntitiesInput struct {
	EntityID          string   `json:"entity_id" jsonschema:"Entity id"`
	RelationshipTypes []string `json:"relationship_types,omitempty" jsonschema:"Only follow these relationship types"`
	ProjectID         string   `json:"project_id,omitempty" jsonschema:"Project id (defaults to the active project)"`
	Limit             int      `json:"limit,omitempty" jsonschema:"Maximum results (default 20)"`
}

// --- Handlers ---

func (t *KnowledgeTools) UpsertEntity(ctx context.Context, _ *mcp.CallToolRequest, input UpsertEntityInput) (*mcp.CallToolResult, any, error) {
	e, err := t.Store.UpsertEntity(ctx, models.KnowledgeEntity{
		EntityType:     input.EntityType,
		ExternalID:     input.ExternalID,
		Title:          input.Title,
		Content:        input.Content,
		Metadata:       input.Metadata,
		PlatformSource: input.PlatformSource,
		SourceEventIDs: input.SourceEventIDs,
		Participants:   input.Participants,
		Embedding:      input.Embedding,
		ProjectID:      t.entityProjectID(input),
	})
	if err != nil {
		return toolError("Failed to upsert entity: %v", err), nil, nil
	}
	return toolJSON(e)
}

// entityProjectID picks the owning project for an upsert. A legacy
// metadata project id takes precedence over the session default.
func (t *KnowledgeTools) entityProjectID(input UpsertEntityInput) string {
	if input.ProjectID != "" {
		return input.ProjectID
	}
	if _, ok := input.Metadata[storage.LegacyProjectKey]; ok {
		return ""
	}
	return t.Session.ProjectID("")
}

func (t *KnowledgeTools) GetEntity(ctx context.Context, _ *mcp.CallToolRequest, input GetEntityInput) (*mcp.CallToolResult, any, error) {
	if input.ID == "" {
		return toolError("Entity id is required"), nil, nil
	}

	e, err := t.Store.GetEntityScoped(ctx, input.ID, t.Session.ProjectID(input.ProjectID))
	if err != nil {
		return toolError("Failed to get entity: %v", err), nil, nil
	}
	return toolJSON(e)
}

func (t *KnowledgeTools) DeleteEntity(ctx context.Context, _ *mcp.CallToolRequest, input DeleteEntityInput) (*mcp.CallToolResult, any, error) {
	if input.ID == "" {
		return toolError("Entity id is required"), nil, nil
	}

	if err := t.Store.DeleteEntity(ctx, input.ID); err != nil {
		return toolError("Failed to delete entity: %v", err), nil, nil
	}
	return toolText(fmt.Sprintf("Entity %q deleted.", input.ID)), nil, nil
}

func (t *KnowledgeTools) ListEntities(ctx context.Context, _ *mcp.CallToolRequest, input ListEntitiesInput) (*mcp.CallToolResult, any, error) {
	projectID := t.Session.ProjectID(input.ProjectID)
	if projectID == "" {
		return toolError("No project given and no active project. Use switch_project to select one."), nil, nil
	}

	entities, err := t.Store.ListEntitiesByProject(ctx, projectID, input.EntityTypes, input.Limit)
	if err != nil {
		return toolError("Failed to list entities: %v", err), nil, nil
	}
	return toolJSON(entities)
}

func (t *KnowledgeTools) UpsertRelationship(ctx context.Context, _ *mcp.CallToolRequest, input UpsertRelationshipInput) (*mcp.CallToolResult, any, error) {
	strength := 1.0
	if input.Strength != nil {
		strength = *input.Strength
	}

	rel, err := t.Store.UpsertRelationship(ctx, models.KnowledgeRelationship{
		SourceEntityID:   input.SourceEntityID,
		TargetEntityID:   input.TargetEntityID,
		RelationshipType: input.RelationshipType,
		Strength:         strength,
		Metadata:         input.Metadata,
	})
	if err != nil {
		return toolError("Failed to upsert relationship: %v", err), nil, nil
	}
	return toolJSON(rel)
}

func (t *KnowledgeTools) GetRelationships(ctx context.Context, _ *mcp.CallToolRequest, input GetRelationshipsInput) (*mcp.CallToolResult, any, error) {
	if input.EntityID == "" {
		return toolError("Entity id is required"), nil, nil
	}

	rels, err := t.Store.GetRelationshipsForEntity(ctx, input.EntityID, input.RelationshipTypes)
	if err != nil {
		return toolError("Failed to get relationships: %v", err), nil, nil
	}
	return toolJSON(rels)
}

func (t *KnowledgeTools) DeleteRelationship(ctx context.Context, _ *mcp.CallToolRequest, input DeleteRelationshipInput) (*mcp.CallToolResult, any, error) {
	if input.ID == "" {
		return toolError("Relationship id is required"), nil, nil
	}

	if err := t.Store.DeleteRelationship(ctx, input.ID); err != nil {
		return toolError("Failed to delete relationship: %v", err), nil, nil
	}
	return toolText(fmt.Sprintf("Relationship %q deleted.", input.ID)), nil, nil
}

func (t *KnowledgeTools) SearchEntities(ctx context.Context, _ *mcp.CallToolRequest, input SearchEntitiesInput) (*mcp.CallToolResult, any, error) {
	after, err := parseTimeArg("created_after", input.CreatedAfter)
	if err != nil {
		return toolError("Search failed: %v", err), nil, nil
	}
	before, err := parseTimeArg("created_before", input.CreatedBefore)
	if err != nil {
		return toolError("Search failed: %v", err), nil, nil
	}

	results, err := t.Store.SearchEntities(ctx, input.Query, models.SearchFilters{
		EntityTypes:    input.EntityTypes,
		Platforms:      input.Platforms,
		CreatedAfter:   after,
		CreatedBefore:  before,
		ProjectID:      t.Session.ProjectID(input.ProjectID),
		IncludeContent: input.IncludeContent,
	}, input.Limit)
	if err != nil {
		return toolError("Search failed: %v", err), nil, nil
	}
	return toolJSON(results)
}

func (t *KnowledgeTools) SearchSimilar(ctx context.Context, _ *mcp.CallToolRequest, input SearchSimilarInput) (*mcp.CallToolResult, any, error) {
	results, err := t.Store.SearchSimilar(ctx, input.Embedding, input.EntityTypes, t.Session.ProjectID(input.ProjectID), input.Limit)
	if err != nil {
		return toolError("Similarity search failed: %v", err), nil, nil
	}
	return toolJSON(results)
}

func (t *KnowledgeTools) TraverseGraph(ctx context.Context, _ *mcp.CallToolRequest, input TraverseGraphInput) (*mcp.CallToolResult, any, error) {
	depth := DefaultTraversalDepth
	if input.MaxDepth != nil {
		depth = *input.MaxDepth
	}

	res, err := t.Engine.Traverse(ctx, graph.Query{
		StartEntityID:     input.EntityID,
		MaxDepth:          depth,
		RelationshipTypes: input.RelationshipTypes,
		ProjectID:         t.Session.ProjectID(input.ProjectID),
	})
	if err != nil {
		return toolError("Traversal failed: %v", err), nil, nil
	}
	return toolJSON(res)
}

func (t *KnowledgeTools) GetRelatedEntities(ctx context.Context, _ *mcp.CallToolRequest, input GetRelatedEntitiesInput) (*mcp.CallToolResult, any, error) {
	entities, err := t.Engine.GetRelatedEntities(ctx, input.EntityID, input.RelationshipTypes, t.Session.ProjectID(input.ProjectID), input.Limit)
	if err != nil {
		return toolError("Failed to get related entities: %v", err), nil, nil
	}
	return toolJSON(entities)
}

package server

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/graph"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/logger"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/metrics"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/session"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/storage"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/tools"
)

// Version is reported to clients during initialization.
const Version = "0.2.0"

// Deps are the collaborators shared by every tool. Logger and Metrics may
// be nil.
type Deps struct {
	Store   *storage.Store
	Engine  *graph.Engine
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

type registrar struct {
	srv *mcp.Server
	log *logger.Logger
	m   *metrics.Metrics
}

func add[In any](r registrar, name, description string, h tools.Handler[In]) {
	wrapped := tools.Observe(r.m, r.log, name, h)
	mcp.AddTool(r.srv, &mcp.Tool{Name: name, Description: description}, mcp.ToolHandlerFor[In, any](wrapped))
}

// New creates a fully configured MCP server with all tools registered.
// Each server owns its own session, so the active project is per server.
func New(d Deps) *mcp.Server {
	sess := session.New()

	pt := &tools.ProjectTools{Store: d.Store, Session: sess}
	kt := &tools.KnowledgeTools{Store: d.Store, Engine: d.Engine, Session: sess}
	rt := &tools.RecordTools{Store: d.Store, Session: sess}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "knowledge-graph",
		Version: Version,
	}, nil)
	r := registrar{srv: srv, log: d.Logger, m: d.Metrics}

	// Project management tools
	add(r, "list_projects", "List projects with optional status filter (active, archived, all)", pt.ListProjects)
	add(r, "create_project", "Create a new project and make it the active one", pt.CreateProject)
	add(r, "switch_project", "Switch the active project used as the default project_id", pt.SwitchProject)
	add(r, "get_current_project", "Get information about the currently active project", pt.GetCurrentProject)
	add(r, "archive_project", "Archive a project (preserves data, makes it inactive)", pt.ArchiveProject)
	add(r, "restore_project", "Restore an archived project back to active status", pt.RestoreProject)

	// Entity and relationship tools
	add(r, "upsert_entity", "Create or update an entity identified by entity_type and external_id", kt.UpsertEntity)
	add(r, "get_entity", "Get an entity by id, optionally requiring it to belong to a project", kt.GetEntity)
	add(r, "delete_entity", "Delete an entity and every relationship touching it", kt.DeleteEntity)
	add(r, "list_entities", "List the newest entities of a project", kt.ListEntities)
	add(r, "upsert_relationship", "Create or update a typed, weighted edge between two entities", kt.UpsertRelationship)
	add(r, "get_relationships", "List the edges touching an entity, strongest first", kt.GetRelationships)
	add(r, "delete_relationship", "Delete a relationship by id", kt.DeleteRelationship)

	// Search and graph tools
	add(r, "search_entities", "Full-text search over entity titles and content, best match first", kt.SearchEntities)
	add(r, "search_similar", "Find entities whose embeddings are closest to a query vector", kt.SearchSimilar)
	add(r, "traverse_graph", "Walk the graph from a seed entity up to max_depth hops", kt.TraverseGraph)
	add(r, "get_related_entities", "List the direct neighbours of an entity, newest first", kt.GetRelatedEntities)

	// Satellite record tools
	add(r, "upsert_decision", "Create or update a decision record", rt.UpsertDecision)
	add(r, "get_decision", "Get a decision record by id", rt.GetDecision)
	add(r, "upsert_discussion_summary", "Create or update a discussion summary", rt.UpsertDiscussionSummary)
	add(r, "get_discussion_summary", "Get a discussion summary by id", rt.GetDiscussionSummary)
	add(r, "upsert_feature_context", "Create or update a feature context", rt.UpsertFeatureContext)
	add(r, "get_feature_context", "Get a feature context by id", rt.GetFeatureContext)
	add(r, "upsert_file_context", "Record an explained change to a file", rt.UpsertFileContext)
	add(r, "get_file_history", "List the recorded changes to a file, newest first", rt.GetFileHistory)

	return srv
}

package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/apperr"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/models"
)

// memGraph is an in-memory Reader.
type memGraph struct {
	mu       sync.Mutex
	entities map[string]models.KnowledgeEntity
	rels     []models.KnowledgeRelationship
	relErr   error
	lookups  int
}

func newMemGraph() *memGraph {
	return &memGraph{entities: map[string]models.KnowledgeEntity{}}
}

func (m *memGraph) addEntity(id, projectID string) {
	m.entities[id] = models.KnowledgeEntity{
		ID:         id,
		EntityType: "issue",
		ExternalID: id,
		Title:      id,
		ProjectID:  projectID,
		CreatedAt:  time.Date(2025, 1, 1, 0, 0, len(m.entities), 0, time.UTC),
	}
}

func (m *memGraph) addEdge(src, dst, typ string, strength float64) {
	m.rels = append(m.rels, models.KnowledgeRelationship{
		ID:               fmt.Sprintf("%s-%s-%s", src, typ, dst),
		SourceEntityID:   src,
		TargetEntityID:   dst,
		RelationshipType: typ,
		Strength:         strength,
	})
}

func (m *memGraph) GetEntityScoped(_ context.Context, id, projectID string) (*models.KnowledgeEntity, error) {
	e, ok := m.entities[id]
	if !ok || (projectID != "" && e.ProjectID != projectID) {
		return nil, apperr.Wrap(apperr.ErrNotFound, "entity %q", id)
	}
	return &e, nil
}

func (m *memGraph) GetEntitiesByIDs(_ context.Context, ids []string, projectID string, limit int) ([]models.KnowledgeEntity, error) {
	var out []models.KnowledgeEntity
	for _, id := range ids {
		e, ok := m.entities[id]
		if !ok || (projectID != "" && e.ProjectID != projectID) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memGraph) GetRelationshipsForEntity(_ context.Context, entityID string, types []string) ([]models.KnowledgeRelationship, error) {
	m.mu.Lock()
	m.lookups++
	m.mu.Unlock()
	if m.relErr != nil {
		return nil, m.relErr
	}
	var out []models.KnowledgeRelationship
	for _, r := range m.rels {
		if (r.SourceEntityID == entityID || r.TargetEntityID == entityID) && typeAllowed(r.RelationshipType, types) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memGraph) GetRelationshipsAmongEntities(_ context.Context, ids []string, types []string) ([]models.KnowledgeRelationship, error) {
	in := map[string]bool{}
	for _, id := range ids {
		in[id] = true
	}
	var out []models.KnowledgeRelationship
	for _, r := range m.rels {
		if in[r.SourceEntityID] && in[r.TargetEntityID] && typeAllowed(r.RelationshipType, types) {
			out = append(out, r)
		}
	}
	return out, nil
}

func typeAllowed(typ string, types []string) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == typ {
			return true
		}
	}
	return false
}

func pathIDs(res *models.TraversalResult) []string {
	ids := make([]string, len(res.Path))
	for i, n := range res.Path {
		ids[i] = n.Entity.ID
	}
	return ids
}

func uniqueIDs(res *models.TraversalResult) []string {
	ids := make([]string, len(res.Entities))
	for i, e := range res.Entities {
		ids[i] = e.ID
	}
	return ids
}

// chain builds A -0.9- B -0.5- C.
func chain() *memGraph {
	g := newMemGraph()
	g.addEntity("A", "p1")
	g.addEntity("B", "p1")
	g.addEntity("C", "p1")
	g.addEdge("A", "B", "discussed_in", 0.9)
	g.addEdge("B", "C", "touches", 0.5)
	return g
}

func TestTraverseChain(t *testing.T) {
	res, err := New(chain()).Traverse(context.Background(), Query{StartEntityID: "A", MaxDepth: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, pathIDs(res))
	assert.Equal(t, []string{"A", "B", "C"}, uniqueIDs(res))
	assert.Equal(t, 2, res.Depth)
	assert.InDelta(t, 0.9, res.Path[1].PathStrength, 1e-9)
	assert.InDelta(t, 1.4, res.Path[2].PathStrength, 1e-9)
	assert.InDelta(t, 2.3, res.TotalStrength, 1e-9)
	assert.Len(t, res.Relationships, 2)
}

func TestTraverseFollowsEdgesBothWays(t *testing.T) {
	res, err := New(chain()).Traverse(context.Background(), Query{StartEntityID: "C", MaxDepth: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "A"}, pathIDs(res))
	assert.InDelta(t, 1.4, res.Path[2].PathStrength, 1e-9)
}

func TestTraverseDepthZero(t *testing.T) {
	res, err := New(chain()).Traverse(context.Background(), Query{StartEntityID: "A"})
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, pathIDs(res))
	assert.Equal(t, 0, res.Depth)
	assert.Zero(t, res.TotalStrength)
	assert.Empty(t, res.Relationships)
}

func TestTraverseStopsAtMaxDepth(t *testing.T) {
	res, err := New(chain()).Traverse(context.Background(), Query{StartEntityID: "A", MaxDepth: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, pathIDs(res))
	assert.Equal(t, 1, res.Depth)
	require.Len(t, res.Relationships, 1)
	assert.Equal(t, "A-discussed_in-B", res.Relationships[0].ID)
}

func TestTraverseCycleTerminates(t *testing.T) {
	g := newMemGraph()
	for _, id := range []string{"A", "B", "C"} {
		g.addEntity(id, "")
	}
	g.addEdge("A", "B", "x", 1)
	g.addEdge("B", "C", "x", 1)
	g.addEdge("C", "A", "x", 1)

	res, err := New(g).Traverse(context.Background(), Query{StartEntityID: "A", MaxDepth: 6})
	require.NoError(t, err)

	// A-B-C and A-C-B: two paths of two hops, never back to A.
	assert.Equal(t, 2, res.Depth)
	assert.Len(t, res.Path, 5)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, uniqueIDs(res))
	for _, n := range res.Path[1:] {
		assert.NotEqual(t, "A", n.Entity.ID)
	}
	assert.Len(t, res.Relationships, 3)
}

func TestTraverseIndependentPathsRevisit(t *testing.T) {
	g := newMemGraph()
	for _, id := range []string{"S", "L", "R", "T"} {
		g.addEntity(id, "")
	}
	g.addEdge("S", "L", "x", 0.3)
	g.addEdge("S", "R", "x", 0.6)
	g.addEdge("L", "T", "x", 0.1)
	g.addEdge("R", "T", "x", 0.1)

	res, err := New(g).Traverse(context.Background(), Query{StartEntityID: "S", MaxDepth: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"S", "R", "L", "T", "T"}, pathIDs(res))
	assert.Equal(t, []string{"S", "R", "L", "T"}, uniqueIDs(res))
	assert.InDelta(t, 0.7, res.Path[3].PathStrength, 1e-9)
	assert.InDelta(t, 0.4, res.Path[4].PathStrength, 1e-9)
}

func TestTraverseSkipsDanglingEdges(t *testing.T) {
	g := chain()
	g.addEdge("B", "ghost", "mentions", 5)

	res, err := New(g).Traverse(context.Background(), Query{StartEntityID: "A", MaxDepth: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, uniqueIDs(res))
	for _, r := range res.Relationships {
		assert.NotEqual(t, "ghost", r.TargetEntityID)
	}
}

func TestTraverseProjectScope(t *testing.T) {
	g := chain()
	g.addEntity("X", "p2")
	g.addEntity("Y", "p1")
	g.addEntity("G", "")
	g.addEdge("A", "X", "links", 1)
	g.addEdge("X", "Y", "links", 1)
	g.addEdge("A", "G", "links", 1)
	ctx := context.Background()

	res, err := New(g).Traverse(ctx, Query{StartEntityID: "A", MaxDepth: 3, ProjectID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, uniqueIDs(res), "Y is only reachable through X")
	for _, r := range res.Relationships {
		assert.NotContains(t, []string{"X", "G"}, r.Other("A"))
	}

	res, err = New(g).Traverse(ctx, Query{StartEntityID: "A", MaxDepth: 3})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B", "C", "X", "Y", "G"}, uniqueIDs(res))

	_, err = New(g).Traverse(ctx, Query{StartEntityID: "X", MaxDepth: 1, ProjectID: "p1"})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = New(g).Traverse(ctx, Query{StartEntityID: "G", MaxDepth: 1, ProjectID: "p1"})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTraverseRelationshipTypeFilterAppliesToOutput(t *testing.T) {
	res, err := New(chain()).Traverse(context.Background(), Query{
		StartEntityID:     "A",
		MaxDepth:          2,
		RelationshipTypes: []string{"touches"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, uniqueIDs(res))
	require.Len(t, res.Relationships, 1)
	assert.Equal(t, "touches", res.Relationships[0].RelationshipType)
}

func TestTraverseInvalidArguments(t *testing.T) {
	e := New(chain(), WithMaxDepth(3))
	ctx := context.Background()

	for name, q := range map[string]Query{
		"negative depth": {StartEntityID: "A", MaxDepth: -1},
		"too deep":       {StartEntityID: "A", MaxDepth: 4},
		"no start":       {MaxDepth: 1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := e.Traverse(ctx, q)
			require.ErrorIs(t, err, apperr.ErrInvalidArgument)
		})
	}

	_, err := e.Traverse(ctx, Query{StartEntityID: "missing", MaxDepth: 1})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTraversePropagatesStorageErrors(t *testing.T) {
	g := chain()
	g.relErr = apperr.Wrap(apperr.ErrStorageUnavailable, "disk gone")

	_, err := New(g).Traverse(context.Background(), Query{StartEntityID: "A", MaxDepth: 2})
	require.ErrorIs(t, err, apperr.ErrStorageUnavailable)
}

func TestTraverseLooksUpEachFrontierEntityOnce(t *testing.T) {
	g := newMemGraph()
	for _, id := range []string{"S", "L", "R", "T", "U"} {
		g.addEntity(id, "")
	}
	g.addEdge("S", "L", "x", 1)
	g.addEdge("S", "R", "x", 1)
	g.addEdge("L", "T", "x", 1)
	g.addEdge("R", "T", "x", 1)
	g.addEdge("T", "U", "x", 1)

	_, err := New(g, WithConcurrency(2)).Traverse(context.Background(), Query{StartEntityID: "S", MaxDepth: 3})
	require.NoError(t, err)
	// S; L, R; T (reached twice, expanded once).
	assert.Equal(t, 4, g.lookups)
}

func TestGetRelatedEntities(t *testing.T) {
	g := newMemGraph()
	for _, id := range []string{"hub", "old", "mid", "new"} {
		g.addEntity(id, "p1")
	}
	g.addEntity("foreign", "p2")
	g.addEdge("hub", "old", "mentions", 1)
	g.addEdge("mid", "hub", "implements", 1)
	g.addEdge("hub", "new", "mentions", 1)
	g.addEdge("hub", "new", "implements", 1)
	g.addEdge("hub", "foreign", "mentions", 1)
	g.addEdge("hub", "hub", "mentions", 1)
	g.addEdge("hub", "ghost", "mentions", 1)
	e := New(g)
	ctx := context.Background()

	got, err := e.GetRelatedEntities(ctx, "hub", nil, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"foreign", "new", "mid", "old"}, entityIDs(got))

	got, err = e.GetRelatedEntities(ctx, "hub", []string{"implements"}, "p1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "mid"}, entityIDs(got))

	got, err = e.GetRelatedEntities(ctx, "hub", nil, "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "mid"}, entityIDs(got))

	got, err = e.GetRelatedEntities(ctx, "old", []string{"implements"}, "", 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = e.GetRelatedEntities(ctx, "foreign", nil, "p1", 0)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func entityIDs(es []models.KnowledgeEntity) []string {
	ids := make([]string, len(es))
	for i, e := range es {
		ids[i] = e.ID
	}
	return ids
}

func TestTraverseCanceledContext(t *testing.T) {
	g := chain()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g.relErr = context.Canceled

	_, err := New(g).Traverse(ctx, Query{StartEntityID: "A", MaxDepth: 1})
	require.True(t, errors.Is(err, context.Canceled))
}

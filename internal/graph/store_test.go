package graph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/apperr"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/graph"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/models"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/storage"
)

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.OpenDir(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func upsert(t *testing.T, s *storage.Store, typ, ext, project string) *models.KnowledgeEntity {
	t.Helper()
	e, err := s.UpsertEntity(context.Background(), models.KnowledgeEntity{EntityType: typ, ExternalID: ext, Title: ext, ProjectID: project})
	require.NoError(t, err)
	return e
}

func link(t *testing.T, s *storage.Store, a, b *models.KnowledgeEntity, typ string, strength float64) {
	t.Helper()
	_, err := s.UpsertRelationship(context.Background(), models.KnowledgeRelationship{
		SourceEntityID:   a.ID,
		TargetEntityID:   b.ID,
		RelationshipType: typ,
		Strength:         strength,
	})
	require.NoError(t, err)
}

func TestTraverseOverStore(t *testing.T) {
	s := openStore(t)
	a := upsert(t, s, models.EntityTypeDecision, "A", "p1")
	b := upsert(t, s, models.EntityTypeDiscussionSummary, "B", "p1")
	c := upsert(t, s, models.EntityTypeFileContext, "C", "p1")
	link(t, s, a, b, "discussed_in", 0.9)
	link(t, s, b, c, "touches", 0.5)

	res, err := graph.New(s).Traverse(context.Background(), graph.Query{StartEntityID: a.ID, MaxDepth: 2})
	require.NoError(t, err)

	require.Len(t, res.Path, 3)
	assert.Equal(t, a.ID, res.Path[0].Entity.ID)
	assert.Equal(t, b.ID, res.Path[1].Entity.ID)
	assert.Equal(t, c.ID, res.Path[2].Entity.ID)
	assert.Equal(t, 2, res.Depth)
	assert.InDelta(t, 1.4, res.Path[2].PathStrength, 1e-9)
	assert.Len(t, res.Entities, 3)
	assert.Len(t, res.Relationships, 2)
}

func TestTraverseOverStoreScoping(t *testing.T) {
	s := openStore(t)
	a := upsert(t, s, "issue", "a", "A")
	bridge := upsert(t, s, "issue", "bridge", "B")
	beyond := upsert(t, s, "issue", "beyond", "A")
	near := upsert(t, s, "issue", "near", "A")
	link(t, s, a, bridge, "links", 1)
	link(t, s, bridge, beyond, "links", 1)
	link(t, s, a, near, "links", 0.1)

	e := graph.New(s)
	ctx := context.Background()

	res, err := e.Traverse(ctx, graph.Query{StartEntityID: a.ID, MaxDepth: 3, ProjectID: "A"})
	require.NoError(t, err)
	var ids []string
	for _, ent := range res.Entities {
		ids = append(ids, ent.ID)
		assert.Equal(t, "A", ent.ProjectID)
	}
	assert.Equal(t, []string{a.ID, near.ID}, ids)

	_, err = e.Traverse(ctx, graph.Query{StartEntityID: bridge.ID, MaxDepth: 1, ProjectID: "A"})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	related, err := e.GetRelatedEntities(ctx, a.ID, nil, "A", 0)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, near.ID, related[0].ID)
}

func TestTraverseAfterEntityDelete(t *testing.T) {
	s := openStore(t)
	a := upsert(t, s, "issue", "a", "")
	b := upsert(t, s, "issue", "b", "")
	c := upsert(t, s, "issue", "c", "")
	link(t, s, a, b, "links", 1)
	link(t, s, b, c, "links", 1)

	require.NoError(t, s.DeleteEntity(context.Background(), b.ID))

	res, err := graph.New(s).Traverse(context.Background(), graph.Query{StartEntityID: a.ID, MaxDepth: 3})
	require.NoError(t, err)
	require.Len(t, res.Path, 1)
	assert.Empty(t, res.Relationships)
	assert.NotEqual(t, c.ID, res.Path[0].Entity.ID)
}

package storage

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/apperr"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/models"
)

// stepClock advances one second per reading so every write gets a distinct,
// increasing timestamp.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithClock(newStepClock().Now)}, opts...)
	s, err := OpenDir(t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustUpsertEntity(t *testing.T, s *Store, e models.KnowledgeEntity) *models.KnowledgeEntity {
	t.Helper()
	out, err := s.UpsertEntity(context.Background(), e)
	require.NoError(t, err)
	return out
}

func mustUpsertRelationship(t *testing.T, s *Store, src, dst, typ string, strength float64) *models.KnowledgeRelationship {
	t.Helper()
	out, err := s.UpsertRelationship(context.Background(), models.KnowledgeRelationship{
		SourceEntityID:   src,
		TargetEntityID:   dst,
		RelationshipType: typ,
		Strength:         strength,
	})
	require.NoError(t, err)
	return out
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return "id-" + strconv.Itoa(g.n)
}

func TestOpenDirCreatesDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s, err := OpenDir(dir)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, DBFileName))
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenDir(dir)
	require.NoError(t, err)
	_, err = s.UpsertEntity(context.Background(), models.KnowledgeEntity{EntityType: "issue", ExternalID: "1", Title: "kept"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenDir(dir)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetEntityByExternalID(context.Background(), "issue", "1", "")
	require.NoError(t, err)
	require.Equal(t, "kept", got.Title)
}

func TestWithIDGenerator(t *testing.T) {
	s := newTestStore(t, WithIDGenerator(&seqIDs{}))
	e := mustUpsertEntity(t, s, models.KnowledgeEntity{EntityType: "issue", ExternalID: "1"})
	require.Equal(t, "id-1", e.ID)
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	s, err := OpenDir(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.GetEntity(context.Background(), "x")
	require.ErrorIs(t, err, apperr.ErrStorageUnavailable)
	require.ErrorIs(t, s.Ping(context.Background()), apperr.ErrStorageUnavailable)
}

// Package graph explores the knowledge graph outward from a seed entity.
//
// Traversal is an in-process breadth-first expansion over the relationship
// store. Edges are followed in both directions, a node is never revisited
// along the path that reached it, and when a project is given every node
// admitted to the frontier must belong to it.
package graph

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/apperr"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/logger"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/models"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/tracing"
)

// DefaultMaxDepth bounds Query.MaxDepth unless WithMaxDepth overrides it.
const DefaultMaxDepth = 6

// DefaultConcurrency is the number of adjacency lookups run at once while
// expanding one level.
const DefaultConcurrency = 8

// Reader is the read side of the entity and relationship stores.
// *storage.Store implements it.
type Reader interface {
	GetEntityScoped(ctx context.Context, id, projectID string) (*models.KnowledgeEntity, error)
	GetEntitiesByIDs(ctx context.Context, ids []string, projectID string, limit int) ([]models.KnowledgeEntity, error)
	GetRelationshipsForEntity(ctx context.Context, entityID string, relationshipTypes []string) ([]models.KnowledgeRelationship, error)
	GetRelationshipsAmongEntities(ctx context.Context, entityIDs []string, relationshipTypes []string) ([]models.KnowledgeRelationship, error)
}

// Engine runs traversals against a Reader. It keeps no per-call state and
// is safe for concurrent use.
type Engine struct {
	r           Reader
	maxDepth    int
	concurrency int
	log         *logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDepth sets the largest accepted Query.MaxDepth.
func WithMaxDepth(n int) Option {
	return func(e *Engine) { e.maxDepth = n }
}

// WithConcurrency sets how many adjacency lookups run in parallel.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New returns an Engine reading through r.
func New(r Reader, opts ...Option) *Engine {
	e := &Engine{
		r:           r,
		maxDepth:    DefaultMaxDepth,
		concurrency: DefaultConcurrency,
		log:         logger.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query describes one traversal.
type Query struct {
	StartEntityID string
	MaxDepth      int
	// RelationshipTypes filters the returned edge set. Expansion follows
	// every edge regardless.
	RelationshipTypes []string
	// ProjectID, when set, restricts the seed and every discovered node.
	ProjectID string
}

// step is one discovered path: the ids along it, seed first.
type step struct {
	path     []string
	depth    int
	strength float64
}

func (s step) last() string { return s.path[len(s.path)-1] }

func (s step) contains(id string) bool {
	for _, p := range s.path {
		if p == id {
			return true
		}
	}
	return false
}

// Traverse explores the graph breadth-first from q.StartEntityID up to
// q.MaxDepth hops. Every discovered path yields one PathNode; the seed is
// the single node at depth 0. A seed outside q.ProjectID is not found.
func (e *Engine) Traverse(ctx context.Context, q Query) (*models.TraversalResult, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Engine.Traverse")
	defer span.End()

	if q.StartEntityID == "" {
		return nil, apperr.Wrap(apperr.ErrInvalidArgument, "start entity id is required")
	}
	if q.MaxDepth < 0 || q.MaxDepth > e.maxDepth {
		return nil, apperr.Wrap(apperr.ErrInvalidArgument, "max depth %d outside [0, %d]", q.MaxDepth, e.maxDepth)
	}

	seed, err := e.r.GetEntityScoped(ctx, q.StartEntityID, q.ProjectID)
	if err != nil {
		return nil, err
	}

	known := map[string]models.KnowledgeEntity{seed.ID: *seed}
	excluded := make(map[string]struct{})
	nodes := []models.PathNode{{Entity: *seed}}
	frontier := []step{{path: []string{seed.ID}}}

	for depth := 0; depth < q.MaxDepth && len(frontier) > 0; depth++ {
		adjacency, err := e.adjacency(ctx, frontier)
		if err != nil {
			return nil, err
		}
		if err := e.admit(ctx, adjacency, known, excluded, q.ProjectID); err != nil {
			return nil, err
		}

		var next []step
		for _, st := range frontier {
			from := st.last()
			for _, rel := range adjacency[from] {
				to := rel.Other(from)
				if st.contains(to) {
					continue
				}
				ent, ok := known[to]
				if !ok {
					continue
				}
				path := make([]string, len(st.path), len(st.path)+1)
				copy(path, st.path)
				found := step{path: append(path, to), depth: st.depth + 1, strength: st.strength + rel.Strength}
				nodes = append(nodes, models.PathNode{Entity: ent, Depth: found.depth, PathStrength: found.strength})
				next = append(next, found)
			}
		}
		frontier = next
	}

	sortPath(nodes)

	res := &models.TraversalResult{Path: nodes}
	seen := make(map[string]struct{}, len(known))
	ids := make([]string, 0, len(known))
	for _, n := range nodes {
		res.TotalStrength += n.PathStrength
		if n.Depth > res.Depth {
			res.Depth = n.Depth
		}
		if _, dup := seen[n.Entity.ID]; dup {
			continue
		}
		seen[n.Entity.ID] = struct{}{}
		ids = append(ids, n.Entity.ID)
		res.Entities = append(res.Entities, n.Entity)
	}

	if q.MaxDepth > 0 {
		rels, err := e.r.GetRelationshipsAmongEntities(ctx, ids, q.RelationshipTypes)
		if err != nil {
			return nil, err
		}
		res.Relationships = rels
	}
	if res.Relationships == nil {
		res.Relationships = []models.KnowledgeRelationship{}
	}

	e.log.Debug("traversal complete",
		"start", seed.ID,
		"max_depth", q.MaxDepth,
		"depth", res.Depth,
		"paths", len(res.Path),
		"entities", len(res.Entities),
		"relationships", len(res.Relationships),
	)
	return res, nil
}

// adjacency loads the edges of every distinct entity on the frontier,
// running up to e.concurrency lookups at once.
func (e *Engine) adjacency(ctx context.Context, frontier []step) (map[string][]models.KnowledgeRelationship, error) {
	var ids []string
	seen := make(map[string]struct{}, len(frontier))
	for _, st := range frontier {
		id := st.last()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	edges := make([][]models.KnowledgeRelationship, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			rels, err := e.r.GetRelationshipsForEntity(gctx, id, nil)
			if err != nil {
				return err
			}
			edges[i] = rels
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]models.KnowledgeRelationship, len(ids))
	for i, id := range ids {
		out[id] = edges[i]
	}
	return out, nil
}

// admit loads the not-yet-seen neighbours in adjacency into known.
// Neighbours that do not exist or fall outside projectID go to excluded and
// are never expanded.
func (e *Engine) admit(ctx context.Context, adjacency map[string][]models.KnowledgeRelationship, known map[string]models.KnowledgeEntity, excluded map[string]struct{}, projectID string) error {
	var missing []string
	queued := make(map[string]struct{})
	for from, rels := range adjacency {
		for _, rel := range rels {
			to := rel.Other(from)
			if _, ok := known[to]; ok {
				continue
			}
			if _, ok := excluded[to]; ok {
				continue
			}
			if _, ok := queued[to]; ok {
				continue
			}
			queued[to] = struct{}{}
			missing = append(missing, to)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)

	found, err := e.r.GetEntitiesByIDs(ctx, missing, projectID, 0)
	if err != nil {
		return err
	}
	for _, ent := range found {
		if projectID != "" && ent.ProjectID != projectID {
			continue
		}
		known[ent.ID] = ent
	}
	for _, id := range missing {
		if _, ok := known[id]; !ok {
			excluded[id] = struct{}{}
		}
	}
	return nil
}

// sortPath orders nodes by depth, then by path strength descending, then by
// entity id. Nodes that tie on all three keep discovery order.
func sortPath(nodes []models.PathNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		if a.PathStrength != b.PathStrength {
			return a.PathStrength > b.PathStrength
		}
		return a.Entity.ID < b.Entity.ID
	})
}

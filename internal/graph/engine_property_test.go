package graph

import (
	"context"
	"fmt"
	"math"
	"testing"

	"pgregory.net/rapid"
)

// drawGraph builds a random multigraph of up to eight entities spread over
// two projects and no project.
func drawGraph(t *rapid.T) *memGraph {
	g := newMemGraph()
	n := rapid.IntRange(1, 8).Draw(t, "entities")
	for i := range n {
		project := rapid.SampledFrom([]string{"p1", "p2", ""}).Draw(t, fmt.Sprintf("project-%d", i))
		g.addEntity(fmt.Sprintf("n%d", i), project)
	}
	edges := rapid.IntRange(0, 14).Draw(t, "edges")
	for i := range edges {
		src := rapid.IntRange(0, n).Draw(t, fmt.Sprintf("src-%d", i))
		dst := rapid.IntRange(0, n).Draw(t, fmt.Sprintf("dst-%d", i))
		typ := rapid.SampledFrom([]string{"a", "b"}).Draw(t, fmt.Sprintf("type-%d", i))
		strength := rapid.Float64Range(0, 1).Draw(t, fmt.Sprintf("strength-%d", i))
		// Index n names an entity that was never stored.
		g.addEdge(fmt.Sprintf("n%d", src), fmt.Sprintf("n%d", dst), typ, strength)
	}
	return g
}

// simplePaths counts, by brute force, the paths of at most maxDepth hops
// from start that never repeat an entity and only visit admitted entities.
func simplePaths(g *memGraph, start string, maxDepth int, projectID string) int {
	admitted := func(id string) bool {
		e, ok := g.entities[id]
		return ok && (projectID == "" || e.ProjectID == projectID)
	}
	var walk func(path []string) int
	walk = func(path []string) int {
		if len(path)-1 == maxDepth {
			return 0
		}
		from := path[len(path)-1]
		count := 0
		for _, r := range g.rels {
			if r.SourceEntityID != from && r.TargetEntityID != from {
				continue
			}
			to := r.Other(from)
			if !admitted(to) || contains(path, to) {
				continue
			}
			count += 1 + walk(append(append([]string(nil), path...), to))
		}
		return count
	}
	return 1 + walk([]string{start})
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestTraverseProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := drawGraph(t)
		start := fmt.Sprintf("n%d", rapid.IntRange(0, len(g.entities)-1).Draw(t, "start"))
		maxDepth := rapid.IntRange(0, 4).Draw(t, "maxDepth")
		projectID := rapid.SampledFrom([]string{"", "p1"}).Draw(t, "scope")

		res, err := New(g).Traverse(context.Background(), Query{StartEntityID: start, MaxDepth: maxDepth, ProjectID: projectID})
		if projectID != "" && g.entities[start].ProjectID != projectID {
			if err == nil {
				t.Fatalf("seed outside scope was accepted")
			}
			return
		}
		if err != nil {
			t.Fatalf("traverse: %v", err)
		}

		if want := simplePaths(g, start, maxDepth, projectID); len(res.Path) != want {
			t.Fatalf("got %d paths, want %d", len(res.Path), want)
		}
		if res.Path[0].Entity.ID != start || res.Path[0].Depth != 0 {
			t.Fatalf("first node = %+v, want seed at depth 0", res.Path[0])
		}

		var total float64
		maxSeen := 0
		for i, n := range res.Path {
			if n.Depth > maxDepth {
				t.Fatalf("node %s at depth %d beyond %d", n.Entity.ID, n.Depth, maxDepth)
			}
			if projectID != "" && n.Entity.ProjectID != projectID {
				t.Fatalf("node %s from project %q leaked into scope %q", n.Entity.ID, n.Entity.ProjectID, projectID)
			}
			if i > 0 {
				prev := res.Path[i-1]
				if prev.Depth > n.Depth || (prev.Depth == n.Depth && prev.PathStrength < n.PathStrength) {
					t.Fatalf("path not ordered at %d", i)
				}
				if n.Entity.ID == start {
					t.Fatalf("seed revisited at %d", i)
				}
			}
			total += n.PathStrength
			maxSeen = max(maxSeen, n.Depth)
		}
		if res.Depth != maxSeen {
			t.Fatalf("depth = %d, want %d", res.Depth, maxSeen)
		}
		if math.Abs(res.TotalStrength-total) > 1e-9 {
			t.Fatalf("total strength = %v, want %v", res.TotalStrength, total)
		}

		seen := map[string]bool{}
		for _, e := range res.Entities {
			if seen[e.ID] {
				t.Fatalf("entity %s listed twice", e.ID)
			}
			seen[e.ID] = true
		}
		for _, r := range res.Relationships {
			if !seen[r.SourceEntityID] || !seen[r.TargetEntityID] {
				t.Fatalf("relationship %s leaves the discovered set", r.ID)
			}
		}
	})
}

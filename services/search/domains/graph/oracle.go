// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/AleutianAI/AleutianSearch/services/search/queue"
)

type dijkstraItem struct {
	v    int
	dist float64
	slot int32
}

// ShortestFrom returns the optimal cost from src to every vertex.
func (g *Graph) ShortestFrom(src int) []float64 {
	return g.dijkstra([]int{src}, g.adj)
}

// DistanceToGoals returns the optimal cost from every vertex to its
// nearest goal.
func (g *Graph) DistanceToGoals() []float64 {
	inbound := make([][]Edge, len(g.adj))
	for u, edges := range g.adj {
		for _, e := range edges {
			inbound[e.To] = append(inbound[e.To], Edge{To: u, Cost: e.Cost})
		}
	}
	return g.dijkstra(g.goalList, inbound)
}

// OptimalCost returns the optimal cost from the start to goal index gi.
func (g *Graph) OptimalCost(gi int) float64 {
	return g.ShortestFrom(g.start)[g.goalList[gi]]
}

func (g *Graph) dijkstra(sources []int, adj [][]Edge) []float64 {
	dist := make([]float64, len(adj))
	items := make([]*dijkstraItem, len(adj))
	for v := range dist {
		dist[v] = math.Inf(1)
		items[v] = &dijkstraItem{v: v, dist: math.Inf(1), slot: queue.NotQueued}
	}

	pq := queue.New(
		func(a, b *dijkstraItem) bool { return a.dist < b.dist },
		func(x *dijkstraItem) *int32 { return &x.slot },
	)
	for _, s := range sources {
		items[s].dist = 0
		pq.Push(items[s])
	}
	for pq.Len() > 0 {
		it, _ := pq.Pop()
		dist[it.v] = it.dist
		for _, e := range adj[it.v] {
			nd := it.dist + e.Cost
			next := items[e.To]
			if nd < next.dist {
				next.dist = nd
				if pq.Contains(next) {
					pq.Fix(next)
				} else if math.IsInf(dist[e.To], 1) {
					pq.Push(next)
				}
			}
		}
	}
	return dist
}

// Random builds a connected random undirected graph with n vertices.
//
// Vertices form a random spanning tree plus extra random edges. Costs are
// drawn from [1, maxCost]. The heuristic is alpha times the true distance
// to the goal, which is consistent for alpha in [0, 1].
func Random(rng *rand.Rand, n, extra int, maxCost, alpha float64) (*Graph, error) {
	if n < 2 {
		return nil, fmt.Errorf("random graph needs at least 2 vertices, got %d", n)
	}
	type edge struct {
		u, v int
		c    float64
	}
	var edges []edge
	for v := 1; v < n; v++ {
		edges = append(edges, edge{rng.Intn(v), v, 1 + rng.Float64()*(maxCost-1)})
	}
	for i := 0; i < extra; i++ {
		u, v := rng.Intn(n), rng.Intn(n)
		if u != v {
			edges = append(edges, edge{u, v, 1 + rng.Float64()*(maxCost-1)})
		}
	}

	name := func(v int) string { return fmt.Sprintf("v%d", v) }
	build := func(h []float64, consistent bool) (*Graph, error) {
		b := NewBuilder(fmt.Sprintf("random-%d", n)).Consistent(consistent)
		for v := 0; v < n; v++ {
			b.Vertex(name(v), h[v])
		}
		for _, e := range edges {
			b.Edge(name(e.u), name(e.v), e.c)
		}
		return b.Build(name(0), name(n-1))
	}

	blind, err := build(make([]float64, n), true)
	if err != nil {
		return nil, err
	}
	h := blind.DistanceToGoals()
	for v := range h {
		h[v] *= alpha
	}
	return build(h, alpha <= 1)
}

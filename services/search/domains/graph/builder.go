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
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianSearch/services/search/domain"
)

// Builder assembles a Graph.
type Builder struct {
	name       string
	names      []string
	index      map[string]int
	adj        [][]Edge
	h          []float64
	d          []float64
	hasD       []bool
	consistent bool
	err        error
}

// NewBuilder creates an empty builder.
func NewBuilder(name string) *Builder {
	return &Builder{name: name, index: make(map[string]int)}
}

// Consistent declares whether the heuristic is consistent.
func (b *Builder) Consistent(c bool) *Builder {
	b.consistent = c
	return b
}

// Vertex adds a vertex with heuristic h. d defaults to the hop distance
// to the nearest goal.
func (b *Builder) Vertex(name string, h float64) *Builder {
	return b.vertex(name, h, 0, false)
}

// VertexD adds a vertex with explicit h and d.
func (b *Builder) VertexD(name string, h, d float64) *Builder {
	return b.vertex(name, h, d, true)
}

func (b *Builder) vertex(name string, h, d float64, hasD bool) *Builder {
	if b.err != nil {
		return b
	}
	if _, ok := b.index[name]; ok {
		b.err = fmt.Errorf("%w: %s", ErrDuplicateVertex, name)
		return b
	}
	b.index[name] = len(b.names)
	b.names = append(b.names, name)
	b.adj = append(b.adj, nil)
	b.h = append(b.h, h)
	b.d = append(b.d, d)
	b.hasD = append(b.hasD, hasD)
	return b
}

// Edge adds an undirected edge.
func (b *Builder) Edge(from, to string, cost float64) *Builder {
	b.Arc(from, to, cost)
	if from != to {
		b.Arc(to, from, cost)
	}
	return b
}

// Arc adds a directed edge.
func (b *Builder) Arc(from, to string, cost float64) *Builder {
	if b.err != nil {
		return b
	}
	u, ok := b.index[from]
	if !ok {
		b.err = fmt.Errorf("%w: %s", ErrUnknownVertex, from)
		return b
	}
	v, ok := b.index[to]
	if !ok {
		b.err = fmt.Errorf("%w: %s", ErrUnknownVertex, to)
		return b
	}
	if cost < 0 || math.IsNaN(cost) {
		b.err = fmt.Errorf("%w: %s-%s %v", ErrNegativeCost, from, to, cost)
		return b
	}
	b.adj[u] = append(b.adj[u], Edge{To: v, Cost: cost})
	return b
}

// Build finishes the graph.
func (b *Builder) Build(start string, goals ...string) (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(goals) == 0 {
		return nil, ErrNoGoal
	}
	s, ok := b.index[start]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVertex, start)
	}

	g := &Graph{
		name:       b.name,
		names:      append([]string(nil), b.names...),
		index:      make(map[string]int, len(b.index)),
		adj:        make([][]Edge, len(b.adj)),
		rev:        make([][]domain.Operator, len(b.adj)),
		h:          append([]float64(nil), b.h...),
		d:          append([]float64(nil), b.d...),
		start:      s,
		goals:      make(map[int]int, len(goals)),
		consistent: b.consistent,
	}
	for k, v := range b.index {
		g.index[k] = v
	}
	for v := range b.adj {
		g.adj[v] = append([]Edge(nil), b.adj[v]...)
	}
	for _, name := range goals {
		v, ok := b.index[name]
		if !ok {
			return nil, fmt.Errorf("%w: goal %s", ErrUnknownVertex, name)
		}
		if _, dup := g.goals[v]; !dup {
			g.goals[v] = len(g.goalList)
			g.goalList = append(g.goalList, v)
		}
	}

	for u := range g.adj {
		g.rev[u] = make([]domain.Operator, len(g.adj[u]))
		for i, e := range g.adj[u] {
			g.rev[u][i] = domain.NoOp
			for j, back := range g.adj[e.To] {
				if back.To == u {
					g.rev[u][i] = domain.Operator(j)
					break
				}
			}
		}
	}

	hops := g.hopsToGoal()
	for v := range g.d {
		if !b.hasD[v] {
			g.d[v] = hops[v]
		}
	}
	return g, nil
}

// hopsToGoal returns the unit-cost distance of every vertex to its
// nearest goal, +Inf when unreachable.
func (g *Graph) hopsToGoal() []float64 {
	inbound := make([][]int, len(g.adj))
	for u, edges := range g.adj {
		for _, e := range edges {
			inbound[e.To] = append(inbound[e.To], u)
		}
	}
	dist := make([]float64, len(g.adj))
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	var frontier []int
	for _, v := range g.goalList {
		dist[v] = 0
		frontier = append(frontier, v)
	}
	for len(frontier) > 0 {
		v := frontier[0]
		frontier = frontier[1:]
		for _, u := range inbound[v] {
			if math.IsInf(dist[u], 1) {
				dist[u] = dist[v] + 1
				frontier = append(frontier, u)
			}
		}
	}
	return dist
}

// -----------------------------------------------------------------------------
// YAML
// -----------------------------------------------------------------------------

// File is the YAML layout of a graph.
type File struct {
	Name       string       `yaml:"name"`
	Start      string       `yaml:"start"`
	Goals      []string     `yaml:"goals"`
	Consistent bool         `yaml:"consistent"`
	Directed   bool         `yaml:"directed"`
	MaxNodes   int64        `yaml:"max_generated"`
	Vertices   []FileVertex `yaml:"vertices"`
	Edges      []FileEdge   `yaml:"edges"`
}

// FileVertex is one vertex in a graph file.
type FileVertex struct {
	Name string   `yaml:"name"`
	H    float64  `yaml:"h"`
	D    *float64 `yaml:"d,omitempty"`
}

// FileEdge is one edge in a graph file.
type FileEdge struct {
	From string  `yaml:"from"`
	To   string  `yaml:"to"`
	Cost float64 `yaml:"cost"`
}

// Parse decodes a graph from YAML.
func Parse(data []byte) (*Graph, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse graph: %w", err)
	}
	b := NewBuilder(f.Name).Consistent(f.Consistent)
	for _, v := range f.Vertices {
		if v.D != nil {
			b.VertexD(v.Name, v.H, *v.D)
		} else {
			b.Vertex(v.Name, v.H)
		}
	}
	for _, e := range f.Edges {
		if f.Directed {
			b.Arc(e.From, e.To, e.Cost)
		} else {
			b.Edge(e.From, e.To, e.Cost)
		}
	}
	g, err := b.Build(f.Start, f.Goals...)
	if err != nil {
		return nil, err
	}
	return g.WithMaxGenerated(f.MaxNodes), nil
}

// Load reads a graph file.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	return Parse(data)
}

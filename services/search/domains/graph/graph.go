// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph is an explicit weighted graph search domain.
//
// Vertices carry a heuristic h and a distance estimate d. Operators are
// indices into a vertex's edge list. A graph with more than one goal is a
// multi-goal domain. The package also provides a Dijkstra oracle used to
// verify search results.
package graph

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianSearch/services/search/domain"
)

// Errors returned while building a graph.
var (
	ErrUnknownVertex   = errors.New("unknown vertex")
	ErrDuplicateVertex = errors.New("duplicate vertex")
	ErrNegativeCost    = errors.New("edge cost must be non-negative")
	ErrNoGoal          = errors.New("graph has no goal")
)

// Edge is a directed edge.
type Edge struct {
	To   int
	Cost float64
}

// State is a vertex with its estimates.
type State struct {
	V int
	h float64
	d float64
}

// H returns the heuristic value.
func (s State) H() float64 { return s.h }

// D returns the distance estimate.
func (s State) D() float64 { return s.d }

// Graph is an immutable search graph.
//
// Thread Safety: Safe for concurrent use once built.
type Graph struct {
	name       string
	names      []string
	index      map[string]int
	adj        [][]Edge
	rev        [][]domain.Operator
	h          []float64
	d          []float64
	start      int
	goals      map[int]int
	goalList   []int
	consistent bool
	maxNodes   int64
}

var _ domain.MultiGoalDomain = (*Graph)(nil)

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// NumVertices returns the vertex count.
func (g *Graph) NumVertices() int { return len(g.names) }

// VertexName returns the name of v.
func (g *Graph) VertexName(v int) string { return g.names[v] }

// Vertex returns the index of a named vertex.
func (g *Graph) Vertex(name string) (int, bool) {
	v, ok := g.index[name]
	return v, ok
}

// Edges returns the outgoing edges of v.
func (g *Graph) Edges(v int) []Edge { return g.adj[v] }

// Start returns the start vertex.
func (g *Graph) Start() int { return g.start }

// Goals returns the goal vertices in goal-index order.
func (g *Graph) Goals() []int { return g.goalList }

// WithStart returns a copy of g searching from another vertex.
func (g *Graph) WithStart(v int) *Graph {
	cp := *g
	cp.start = v
	return &cp
}

// WithMaxGenerated returns a copy of g with a generation limit.
func (g *Graph) WithMaxGenerated(n int64) *Graph {
	cp := *g
	cp.maxNodes = n
	return &cp
}

func (g *Graph) state(v int) State { return State{V: v, h: g.h[v], d: g.d[v]} }

// -----------------------------------------------------------------------------
// domain.Domain
// -----------------------------------------------------------------------------

func (g *Graph) InitialState() domain.State { return g.state(g.start) }

func (g *Graph) IsGoal(s domain.State) bool {
	_, ok := g.goals[s.(State).V]
	return ok
}

func (g *Graph) GoalCount() int { return len(g.goalList) }

func (g *Graph) GoalIndex(s domain.State) int {
	if i, ok := g.goals[s.(State).V]; ok {
		return i
	}
	return -1
}

func (g *Graph) NumOperators(s domain.State) int { return len(g.adj[s.(State).V]) }

func (g *Graph) Operator(s domain.State, i int) domain.Operator { return domain.Operator(i) }

func (g *Graph) Apply(s domain.State, op domain.Operator) (domain.State, error) {
	v := s.(State).V
	if op < 0 || int(op) >= len(g.adj[v]) {
		return nil, fmt.Errorf("%w: %d at vertex %s", domain.ErrInvalidOperator, op, g.names[v])
	}
	return g.state(g.adj[v][op].To), nil
}

// Reverse returns the edge of the child leading back to parent, or NoOp
// for a one-way edge.
func (g *Graph) Reverse(op domain.Operator, parent domain.State) domain.Operator {
	v := parent.(State).V
	if op < 0 || int(op) >= len(g.rev[v]) {
		return domain.NoOp
	}
	return g.rev[v][op]
}

func (g *Graph) Pack(s domain.State) domain.PackedKey {
	var w domain.KeyWriter
	w.Put(32, uint64(s.(State).V))
	k, _ := w.Key()
	return k
}

func (g *Graph) Unpack(k domain.PackedKey) (domain.State, error) {
	r := domain.NewKeyReader(k)
	v := int(r.Get(32))
	if r.Err() != nil || v >= len(g.names) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidKey, k)
	}
	return g.state(v), nil
}

func (g *Graph) UnpackLite(k domain.PackedKey) (domain.State, error) {
	s, err := g.Unpack(k)
	if err != nil {
		return nil, err
	}
	st := s.(State)
	st.h, st.d = 0, 0
	return st, nil
}

// Cost prices the edge op of parent. The child state is not needed.
func (g *Graph) Cost(op domain.Operator, state, parent domain.State) float64 {
	return g.adj[parent.(State).V][op].Cost
}

func (g *Graph) HeuristicConsistent() bool { return g.consistent }

func (g *Graph) MaxGeneratedNodes() int64 { return g.maxNodes }

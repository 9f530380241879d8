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
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSearch/services/search/domain"
)

const diamondYAML = `
name: diamond
start: s
goals: [t]
consistent: true
max_generated: 500
vertices:
  - {name: s, h: 2}
  - {name: a, h: 1}
  - {name: b, h: 1, d: 7}
  - {name: t, h: 0}
edges:
  - {from: s, to: a, cost: 1}
  - {from: s, to: b, cost: 1}
  - {from: a, to: t, cost: 3}
  - {from: b, to: t, cost: 1}
`

func TestParse_Diamond(t *testing.T) {
	g, err := Parse([]byte(diamondYAML))
	require.NoError(t, err)

	assert.Equal(t, "diamond", g.Name())
	assert.Equal(t, 4, g.NumVertices())
	assert.Equal(t, int64(500), g.MaxGeneratedNodes())
	assert.True(t, g.HeuristicConsistent())

	s := g.InitialState()
	assert.Equal(t, 2.0, s.H())
	assert.Equal(t, 2.0, s.D(), "d defaults to hops to the goal")

	b, ok := g.Vertex("b")
	require.True(t, ok)
	assert.Equal(t, 7.0, g.state(b).D())

	assert.InDelta(t, 2.0, g.OptimalCost(0), 1e-12)
	assert.Equal(t, 1, len(g.Goals()))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{"unknown edge vertex", "start: a\ngoals: [a]\nvertices: [{name: a}]\nedges: [{from: a, to: z, cost: 1}]\n", ErrUnknownVertex},
		{"duplicate vertex", "start: a\ngoals: [a]\nvertices: [{name: a}, {name: a}]\n", ErrDuplicateVertex},
		{"negative cost", "start: a\ngoals: [b]\nvertices: [{name: a}, {name: b}]\nedges: [{from: a, to: b, cost: -1}]\n", ErrNegativeCost},
		{"no goal", "start: a\nvertices: [{name: a}]\n", ErrNoGoal},
		{"unknown start", "start: q\ngoals: [a]\nvertices: [{name: a}]\n", ErrUnknownVertex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diamond.yaml")
	require.NoError(t, os.WriteFile(path, []byte(diamondYAML), 0o600))

	g, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "diamond", g.Name())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGraph_ReverseOperators(t *testing.T) {
	g, err := NewBuilder("mixed").
		Vertex("a", 0).Vertex("b", 0).Vertex("c", 0).
		Edge("a", "b", 1).
		Arc("b", "c", 2).
		Build("a", "c")
	require.NoError(t, err)

	a := g.InitialState()
	b, err := g.Apply(a, 0)
	require.NoError(t, err)
	assert.Equal(t, "b", g.VertexName(b.(State).V))

	back := g.Reverse(0, a)
	require.NotEqual(t, domain.NoOp, back)
	again, err := g.Apply(b, back)
	require.NoError(t, err)
	assert.Equal(t, a.(State).V, again.(State).V)

	oneWay := domain.Operator(1)
	assert.Equal(t, domain.NoOp, g.Reverse(oneWay, b), "arc b->c has no way back")

	_, err = g.Apply(a, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidOperator)
}

func TestGraph_PackRoundTrip(t *testing.T) {
	g, err := Parse([]byte(diamondYAML))
	require.NoError(t, err)

	for v := 0; v < g.NumVertices(); v++ {
		s := g.state(v)
		got, err := g.Unpack(g.Pack(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)

		lite, err := g.UnpackLite(g.Pack(s))
		require.NoError(t, err)
		assert.Equal(t, v, lite.(State).V)
		assert.Zero(t, lite.H())
	}

	var w domain.KeyWriter
	w.Put(32, 99)
	k, _ := w.Key()
	_, err = g.Unpack(k)
	assert.ErrorIs(t, err, domain.ErrInvalidKey)
}

func TestGraph_MultiGoal(t *testing.T) {
	g, err := NewBuilder("two").
		Vertex("s", 0).Vertex("x", 0).Vertex("y", 0).
		Edge("s", "x", 1).Edge("s", "y", 2).
		Build("s", "x", "y", "x")
	require.NoError(t, err)

	assert.Equal(t, 2, g.GoalCount())
	v := domain.Classify(g)
	assert.Equal(t, domain.MultiGoal, v.Kind)

	y, _ := g.Vertex("y")
	assert.Equal(t, 1, g.GoalIndex(g.state(y)))
	assert.Equal(t, -1, g.GoalIndex(g.InitialState()))
}

func TestDijkstra_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	g, err := Random(rng, 25, 40, 9, 1)
	require.NoError(t, err)

	n := g.NumVertices()
	// Floyd-Warshall as an independent check.
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			dist[i][j] = math.Inf(1)
		}
		dist[i][i] = 0
		for _, e := range g.Edges(i) {
			dist[i][e.To] = math.Min(dist[i][e.To], e.Cost)
		}
	}
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if d := dist[i][k] + dist[k][j]; d < dist[i][j] {
					dist[i][j] = d
				}
			}
		}
	}

	got := g.ShortestFrom(g.Start())
	for v := 0; v < n; v++ {
		assert.InDelta(t, dist[g.Start()][v], got[v], 1e-9, "vertex %d", v)
	}

	toGoal := g.DistanceToGoals()
	goal := g.Goals()[0]
	for v := 0; v < n; v++ {
		assert.InDelta(t, dist[v][goal], toGoal[v], 1e-9)
		assert.InDelta(t, toGoal[v], g.state(v).H(), 1e-9, "alpha 1 gives the perfect heuristic")
	}
}

func TestRandom_Rejects(t *testing.T) {
	_, err := Random(rand.New(rand.NewSource(1)), 1, 0, 5, 1)
	assert.Error(t, err)
}

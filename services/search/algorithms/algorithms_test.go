// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package algorithms

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSearch/services/search/domain"
	"github.com/AleutianAI/AleutianSearch/services/search/domains/graph"
	"github.com/AleutianAI/AleutianSearch/services/search/domains/tiles"
	"github.com/AleutianAI/AleutianSearch/services/search/engine"
)

const eps = 1e-9

func chainGraph(t *testing.T) *graph.Graph {
	t.Helper()
	return chainGraphBetween(t, "A0", "A6")
}

func chainGraphBetween(t *testing.T, start, goal string) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder("chain")
	for i, h := range []float64{6, 5, 0, 3, 0, 1, 0} {
		b.Vertex(fmt.Sprintf("A%d", i), h)
	}
	b.Edge("A0", "A1", 1).Edge("A1", "A2", 1).Edge("A2", "A3", 1).
		Edge("A3", "A4", 1).Edge("A4", "A5", 1).Edge("A5", "A6", 1).
		Edge("A0", "A2", 5.9).Edge("A2", "A4", 3.9).Edge("A0", "A6", 11.8)
	g, err := b.Build(start, goal)
	require.NoError(t, err)
	return g
}

func randomGraphs(t *testing.T, seed int64, count int, alpha float64) []*graph.Graph {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	out := make([]*graph.Graph, count)
	for i := range out {
		g, err := graph.Random(rng, 30+rng.Intn(40), 40+rng.Intn(60), 10, alpha)
		require.NoError(t, err)
		out[i] = g
	}
	return out
}

func weighted(w float64) *engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Weight = w
	return cfg
}

func solve(t *testing.T, name string, cfg *engine.Config, d domain.Domain) *engine.Result {
	t.Helper()
	algo, err := New(name, cfg)
	require.NoError(t, err)
	res, err := algo.Solve(context.Background(), d)
	require.NoError(t, err)
	return res
}

func TestAlgorithms_ChainScenario(t *testing.T) {
	tests := []struct {
		name string
		cfg  *engine.Config
	}{
		{"astar", nil},
		{"wastar", weighted(1)},
		{"ees", weighted(1)},
		{"dps", weighted(1)},
		{"awastar", weighted(1)},
		{"apts", weighted(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := solve(t, tt.name, tt.cfg, chainGraph(t))
			require.True(t, res.Solved)
			assert.InDelta(t, 6.0, res.Best().Cost, eps)
			assert.Equal(t, engine.StatusGoalFound, res.Status)
		})
	}
}

// From A5 back to A0 the unit chain is the cheapest route, even though
// h(A0) = 6 is not zero at the goal and h(A1) = 5 overestimates.
func TestAStar_ChainReversed(t *testing.T) {
	g := chainGraphBetween(t, "A5", "A0")
	assert.InDelta(t, 5.0, g.OptimalCost(0), eps)

	res := solve(t, "astar", nil, g)
	require.True(t, res.Solved)
	assert.InDelta(t, 5.0, res.Best().Cost, eps)
	assert.Equal(t, 5, res.Best().Length)
}

func TestAStar_ChainReopensTwice(t *testing.T) {
	res := solve(t, "astar", nil, chainGraph(t))
	assert.Equal(t, int64(2), res.Stats.Reopened)
	assert.Equal(t, "astar", res.Algorithm)
	assert.Equal(t, "chain", res.Domain)
}

func TestAStar_OptimalOnRandomGraphs(t *testing.T) {
	for _, alpha := range []float64{0, 0.5, 1} {
		for i, g := range randomGraphs(t, int64(100*alpha)+1, 15, alpha) {
			t.Run(fmt.Sprintf("alpha=%v/%d", alpha, i), func(t *testing.T) {
				res := solve(t, "astar", nil, g)
				require.True(t, res.Solved)
				assert.InDelta(t, g.OptimalCost(0), res.Best().Cost, eps)
			})
		}
	}
}

func TestBoundedSuboptimal_WithinWeight(t *testing.T) {
	graphs := randomGraphs(t, 7, 20, 0.8)
	for _, name := range []string{"wastar", "ees", "dps"} {
		for _, w := range []float64{1.5, 2, 5} {
			for i, g := range graphs {
				t.Run(fmt.Sprintf("%s/w=%v/%d", name, w, i), func(t *testing.T) {
					res := solve(t, name, weighted(w), g)
					require.True(t, res.Solved)
					opt := g.OptimalCost(0)
					assert.LessOrEqual(t, res.Best().Cost, w*opt+eps)
					assert.GreaterOrEqual(t, res.Best().Cost, opt-eps)
				})
			}
		}
	}
}

func TestDPS_ReorderIntervalKeepsBound(t *testing.T) {
	cfg := weighted(2)
	cfg.ReorderInterval = 5
	for _, g := range randomGraphs(t, 9, 10, 0.9) {
		res := solve(t, "dps", cfg, g)
		require.True(t, res.Solved)
		assert.LessOrEqual(t, res.Best().Cost, 2*g.OptimalCost(0)+eps)
		assert.Contains(t, res.Extras, "reorders")
	}
}

func TestDPS_HoldsGoalUntilCertified(t *testing.T) {
	tests := []struct {
		name   string
		weight float64
		build  func(*graph.Builder) *graph.Builder
		cost   float64
	}{
		{
			name:   "released when open runs out",
			weight: 1,
			build: func(b *graph.Builder) *graph.Builder {
				return b.Vertex("S", 2).Vertex("A", 1).Vertex("G", 0).
					Edge("S", "G", 3).Edge("S", "A", 1)
			},
			cost: 3,
		},
		{
			name:   "certified once fmin rises",
			weight: 1.5,
			build: func(b *graph.Builder) *graph.Builder {
				return b.Vertex("S", 2).Vertex("A", 1).Vertex("B", 2).Vertex("G", 0).
					Edge("S", "G", 5).Edge("S", "A", 1).Edge("A", "B", 1)
			},
			cost: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := tt.build(graph.NewBuilder("held")).Build("S", "G")
			require.NoError(t, err)

			res := solve(t, "dps", weighted(tt.weight), g)
			require.True(t, res.Solved)
			assert.Equal(t, engine.StatusGoalFound, res.Status)
			assert.InDelta(t, tt.cost, res.Best().Cost, eps)
			assert.Equal(t, 1.0, res.Extras["held_goals"])
		})
	}
}

func TestEES_FallsBackFromFocal(t *testing.T) {
	tests := []struct {
		name  string
		build func(*graph.Builder) *graph.Builder
		pick  string
		cost  float64
	}{
		{
			// A looks closest by d but its fHat is far above fmin.
			name: "open",
			build: func(b *graph.Builder) *graph.Builder {
				return b.VertexD("S", 2, 2).VertexD("A", 3, 0).VertexD("B", 1, 1).VertexD("G", 0, 0).
					Edge("S", "A", 4).Edge("S", "B", 1).Edge("B", "G", 1)
			},
			pick: "open_picks",
			cost: 2,
		},
		{
			// The first step inflates f, so every fHat overshoots the bound.
			name: "cleanup",
			build: func(b *graph.Builder) *graph.Builder {
				return b.VertexD("S", 1, 1).VertexD("C", 1, 1).VertexD("G", 0, 0).
					Edge("S", "C", 2).Edge("C", "G", 1)
			},
			pick: "cleanup_picks",
			cost: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := tt.build(graph.NewBuilder("ees")).Build("S", "G")
			require.NoError(t, err)

			res := solve(t, "ees", weighted(1), g)
			require.True(t, res.Solved)
			assert.InDelta(t, tt.cost, res.Best().Cost, eps)
			assert.Positive(t, res.Extras[tt.pick])
		})
	}
}

func TestEES_RelinksSubtreesOnCheaperPath(t *testing.T) {
	res := solve(t, "ees", weighted(1), chainGraph(t))
	require.True(t, res.Solved)
	assert.Positive(t, res.Extras["relinked"])

	picks := res.Extras["focal_picks"] + res.Extras["open_picks"] + res.Extras["cleanup_picks"]
	assert.GreaterOrEqual(t, picks, float64(res.Stats.Expanded))
}

func TestPotentialSearch_CostBound(t *testing.T) {
	for i, g := range randomGraphs(t, 13, 15, 0.7) {
		opt := g.OptimalCost(0)
		cfg := engine.DefaultConfig()
		cfg.MaxCost = 1.5 * opt

		t.Run(fmt.Sprint(i), func(t *testing.T) {
			res := solve(t, "pts", cfg, g)
			require.True(t, res.Solved)
			assert.LessOrEqual(t, res.Best().Cost, cfg.MaxCost+eps)
		})
	}
}

func TestPotentialSearch_RerunWhenBoundUnreachableWithoutReopen(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.MaxCost = 7
	cfg.Reopen = false
	cfg.Rerun = engine.RerunNewAR

	res := solve(t, "pts", cfg, chainGraph(t))
	require.True(t, res.Solved)
	assert.LessOrEqual(t, res.Best().Cost, 7.0)
}

func TestAnytime_ConvergesToOptimal(t *testing.T) {
	for _, name := range []string{"awastar", "apts"} {
		for i, g := range randomGraphs(t, 21, 10, 0.9) {
			t.Run(fmt.Sprintf("%s/%d", name, i), func(t *testing.T) {
				var a *Anytime
				var err error
				if name == "apts" {
					a, err = NewAPTS(weighted(3))
				} else {
					a, err = NewAWAStar(weighted(3))
				}
				require.NoError(t, err)

				s, err := a.Start(g)
				require.NoError(t, err)

				opt := g.OptimalCost(0)
				prev := math.Inf(1)
				for !s.Done() {
					sol, err := s.Next(context.Background())
					require.NoError(t, err)
					assert.LessOrEqual(t, s.LowerBound(), opt+eps)
					if sol != nil {
						assert.Less(t, sol.Cost, prev, "incumbents strictly improve")
						prev = sol.Cost
					}
				}

				assert.InDelta(t, opt, s.Incumbent(), eps)
				assert.InDelta(t, opt, s.LowerBound(), eps)
				require.NotEmpty(t, s.Iterations())

				res := s.Result()
				assert.Equal(t, engine.StatusGoalFound, res.Status)
				assert.Equal(t, 1.0, res.Extras["proved_optimal"])
			})
		}
	}
}

func TestAnytime_TimeLimitCoversWholeSession(t *testing.T) {
	cfg := weighted(5)
	cfg.TimeLimit = 50 * time.Millisecond
	a, err := NewAWAStar(cfg)
	require.NoError(t, err)

	s, err := a.Start(chainGraph(t))
	require.NoError(t, err)

	first, err := s.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.InDelta(t, 11.8, first.Cost, eps)

	time.Sleep(60 * time.Millisecond)
	next, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Equal(t, engine.StatusTimedOut, s.Status())
	assert.False(t, s.Done())

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.StatusTimedOut, res.Status)
	assert.InDelta(t, 11.8, res.Extras["incumbent"], eps)
}

func TestAnytime_SolveRunsToCompletion(t *testing.T) {
	a, err := NewAWAStar(weighted(5))
	require.NoError(t, err)

	res, err := a.Solve(context.Background(), chainGraph(t))
	require.NoError(t, err)
	assert.InDelta(t, 6.0, res.Extras["incumbent"], eps)
	assert.True(t, a.Properties().Anytime)
}

func TestFifteenPuzzle_WeightTradesCostForExpansions(t *testing.T) {
	rng := rand.New(rand.NewSource(2025))
	var exp1, exp2 int64
	for i := 0; i < 5; i++ {
		p, err := tiles.RandomWalk(4, 4, 40, rng)
		require.NoError(t, err)

		opt := solve(t, "astar", nil, p)
		fast := solve(t, "wastar", weighted(2), p)
		require.True(t, opt.Solved)
		require.True(t, fast.Solved)

		assert.LessOrEqual(t, fast.Best().Cost, 2*opt.Best().Cost)
		assert.GreaterOrEqual(t, fast.Best().Cost, opt.Best().Cost)
		assert.Equal(t, int(opt.Best().Cost), opt.Best().Length)

		exp1 += opt.Stats.Expanded
		exp2 += fast.Stats.Expanded
	}
	assert.LessOrEqual(t, exp2, exp1)
}

func TestAStar_MultiGoal(t *testing.T) {
	g, err := graph.NewBuilder("two-goals").Consistent(true).
		Vertex("s", 0).Vertex("a", 0).Vertex("b", 0).Vertex("x", 0).Vertex("y", 0).
		Edge("s", "a", 1).Edge("a", "x", 1).Edge("s", "b", 3).Edge("b", "y", 3).
		Build("s", "x", "y")
	require.NoError(t, err)

	res := solve(t, "astar", nil, g)
	require.Len(t, res.Solutions, 2)
	assert.InDelta(t, 2.0, res.Solutions[0].Cost, eps)
	assert.Equal(t, 0, res.Solutions[0].GoalIndex)
	assert.InDelta(t, 6.0, res.Solutions[1].Cost, eps)
	assert.Equal(t, 1, res.Solutions[1].GoalIndex)
}

func TestAStar_ForcesUnitWeight(t *testing.T) {
	a, err := NewAStar(weighted(4))
	require.NoError(t, err)
	assert.Equal(t, 1.0, a.Config().Weight)
	assert.True(t, a.Properties().Optimal)
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"apts", "astar", "awastar", "dps", "ees", "pts", "wastar"}, Names())

	for _, name := range Names() {
		algo, err := New(name, nil)
		require.NoError(t, err, name)
		assert.Equal(t, name, algo.Name())
	}

	algo, err := New(" EES ", nil)
	require.NoError(t, err)
	assert.Equal(t, "ees", algo.Name())

	_, err = New("ida", nil)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	_, err = New("wastar", weighted(0.5))
	assert.ErrorIs(t, err, engine.ErrInvalidConfig)
}

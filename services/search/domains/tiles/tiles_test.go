// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tiles

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSearch/services/search/domain"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		layout  string
		wantErr error
	}{
		{"goal 3x3", 3, 3, "0 1 2 3 4 5 6 7 8", nil},
		{"one move 3x3", 3, 3, "1 0 2 3 4 5 6 7 8", nil},
		{"swapped pair 3x3", 3, 3, "0 2 1 3 4 5 6 7 8", ErrUnsolvable},
		{"one move down 4x4", 4, 4, "4 1 2 3 0 5 6 7 8 9 10 11 12 13 14 15", nil},
		{"swapped pair 4x4", 4, 4, "0 2 1 3 4 5 6 7 8 9 10 11 12 13 14 15", ErrUnsolvable},
		{"repeated tile", 3, 3, "0 1 1 3 4 5 6 7 8", ErrInvalidTile},
		{"too few tiles", 3, 3, "0 1 2", ErrInvalidTile},
		{"not a number", 2, 2, "0 1 x 3", ErrInvalidTile},
		{"too large", 5, 5, "0", ErrBoardSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.w, tt.h, tt.layout)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPuzzle_ManhattanAndGoal(t *testing.T) {
	p, err := Parse(3, 3, "1 2 5 3 4 0 6 7 8")
	require.NoError(t, err)

	s := p.InitialState()
	// tile 1: cell 0 -> 1, tile 2: cell 1 -> 2, tile 5: cell 2 -> 5.
	assert.Equal(t, 3.0, s.H())
	assert.Equal(t, s.H(), s.D())
	assert.False(t, p.IsGoal(s))
	assert.Equal(t, "tiles-3x3", p.Name())

	goal, err := Parse(3, 3, "0 1 2 3 4 5 6 7 8")
	require.NoError(t, err)
	assert.True(t, goal.IsGoal(goal.InitialState()))
	assert.Zero(t, goal.InitialState().H())
}

func TestPuzzle_ApplyReverseAndIncrementalH(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p, err := RandomWalk(4, 4, 60, rng)
	require.NoError(t, err)

	s := p.InitialState()
	for step := 0; step < 200; step++ {
		n := p.NumOperators(s)
		require.GreaterOrEqual(t, n, 2)
		op := p.Operator(s, rng.Intn(n))

		child, err := p.Apply(s, op)
		require.NoError(t, err)
		assert.Equal(t, p.manhattan(child.(Board)), child.H(), "incremental h at step %d", step)
		assert.Equal(t, 1.0, p.Cost(op, child, s))

		back, err := p.Apply(child, p.Reverse(op, s))
		require.NoError(t, err)
		assert.Equal(t, s.(Board).Cells, back.(Board).Cells)
		s = child
	}
}

func TestPuzzle_ApplyRejectsNonAdjacent(t *testing.T) {
	p, err := Parse(3, 3, "0 1 2 3 4 5 6 7 8")
	require.NoError(t, err)
	_, err = p.Apply(p.InitialState(), domain.Operator(8))
	assert.ErrorIs(t, err, domain.ErrInvalidOperator)
}

func TestPuzzle_PackRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 20; i++ {
		p, err := RandomWalk(4, 4, 80, rng)
		require.NoError(t, err)
		s := p.InitialState()

		k := p.Pack(s)
		full, err := p.Unpack(k)
		require.NoError(t, err)
		assert.Equal(t, s, full)

		lite, err := p.UnpackLite(k)
		require.NoError(t, err)
		assert.Equal(t, s.(Board).Cells, lite.(Board).Cells)
		assert.Equal(t, s.(Board).Blank, lite.(Board).Blank)
	}
}

func TestPuzzle_UnpackRejectsCorruptKey(t *testing.T) {
	p, err := Parse(2, 2, "0 1 2 3")
	require.NoError(t, err)

	var w domain.KeyWriter
	for i := 0; i < 4; i++ {
		w.Put(4, 1)
	}
	k, err := w.Key()
	require.NoError(t, err)

	_, err = p.Unpack(k)
	assert.ErrorIs(t, err, domain.ErrInvalidKey)
}

func TestRandomWalk_AlwaysSolvable(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		p, err := RandomWalk(4, 4, 30+i, rng)
		require.NoError(t, err)
		assert.True(t, p.solvable(p.Start()))

		again, err := Parse(4, 4, p.Layout(p.Start()))
		require.NoError(t, err)
		assert.Equal(t, p.Start(), again.Start())
	}
}

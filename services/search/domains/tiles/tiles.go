// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tiles is the sliding-tile puzzle domain with the Manhattan
// distance heuristic.
//
// Boards have at most 16 cells and pack into 4 bits per cell. Tile 0 is
// the blank. The goal places tile i on cell i. An operator is the cell the
// blank moves to, so the reverse of a move is the blank's previous cell.
package tiles

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianSearch/services/search/domain"
)

// MaxCells is the largest supported board.
const MaxCells = 16

// Errors returned when building puzzles.
var (
	ErrBoardSize   = errors.New("unsupported board size")
	ErrInvalidTile = errors.New("invalid tile layout")
	ErrUnsolvable  = errors.New("instance is not solvable")
)

// Board is a puzzle state.
type Board struct {
	Cells [MaxCells]uint8
	Blank uint8
	h     float64
}

// H returns the Manhattan distance.
func (b Board) H() float64 { return b.h }

// D equals H under unit costs.
func (b Board) D() float64 { return b.h }

// Puzzle is a sliding-tile instance.
//
// Thread Safety: Safe for concurrent use; states are values.
type Puzzle struct {
	width, height int
	cells         int
	start         Board
	moves         [MaxCells][]uint8
	dist          [MaxCells][MaxCells]uint8
	maxNodes      int64
	name          string
}

var _ domain.Domain = (*Puzzle)(nil)

// New creates a width x height puzzle from a start layout.
//
// Inputs:
//
//	width, height - Board dimensions, width*height <= 16.
//	layout - Tile on each cell in row-major order, 0 for the blank.
//
// Outputs:
//
//	*Puzzle - The instance.
//	error - ErrBoardSize, ErrInvalidTile or ErrUnsolvable.
func New(width, height int, layout []int) (*Puzzle, error) {
	p, err := newPuzzle(width, height)
	if err != nil {
		return nil, err
	}
	if len(layout) != p.cells {
		return nil, fmt.Errorf("%w: %d tiles for %d cells", ErrInvalidTile, len(layout), p.cells)
	}
	seen := make([]bool, p.cells)
	var b Board
	for i, t := range layout {
		if t < 0 || t >= p.cells || seen[t] {
			return nil, fmt.Errorf("%w: tile %d at cell %d", ErrInvalidTile, t, i)
		}
		seen[t] = true
		b.Cells[i] = uint8(t)
		if t == 0 {
			b.Blank = uint8(i)
		}
	}
	if !p.solvable(b) {
		return nil, ErrUnsolvable
	}
	b.h = p.manhattan(b)
	p.start = b
	return p, nil
}

// Parse reads a whitespace separated layout, e.g. "1 2 3 0 ...".
func Parse(width, height int, s string) (*Puzzle, error) {
	fields := strings.Fields(s)
	layout := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTile, f)
		}
		layout[i] = v
	}
	return New(width, height, layout)
}

// RandomWalk returns an instance produced by walking the blank from the
// goal for the given number of steps, never undoing the previous move.
func RandomWalk(width, height, steps int, rng *rand.Rand) (*Puzzle, error) {
	p, err := newPuzzle(width, height)
	if err != nil {
		return nil, err
	}
	b := p.goal()
	prev := -1
	for i := 0; i < steps; i++ {
		opts := p.moves[b.Blank]
		to := opts[rng.Intn(len(opts))]
		if int(to) == prev && len(opts) > 1 {
			i--
			continue
		}
		prev = int(b.Blank)
		b.Cells[b.Blank], b.Cells[to] = b.Cells[to], 0
		b.Blank = to
	}
	b.h = p.manhattan(b)
	p.start = b
	return p, nil
}

func newPuzzle(width, height int) (*Puzzle, error) {
	if width < 2 || height < 2 || width*height > MaxCells {
		return nil, fmt.Errorf("%w: %dx%d", ErrBoardSize, width, height)
	}
	p := &Puzzle{width: width, height: height, cells: width * height}
	p.name = fmt.Sprintf("tiles-%dx%d", width, height)
	for c := 0; c < p.cells; c++ {
		r, col := c/width, c%width
		if r > 0 {
			p.moves[c] = append(p.moves[c], uint8(c-width))
		}
		if col > 0 {
			p.moves[c] = append(p.moves[c], uint8(c-1))
		}
		if col < width-1 {
			p.moves[c] = append(p.moves[c], uint8(c+1))
		}
		if r < height-1 {
			p.moves[c] = append(p.moves[c], uint8(c+width))
		}
		for t := 0; t < p.cells; t++ {
			tr, tc := t/width, t%width
			p.dist[c][t] = uint8(abs(r-tr) + abs(col-tc))
		}
	}
	return p, nil
}

func (p *Puzzle) goal() Board {
	var b Board
	for i := 0; i < p.cells; i++ {
		b.Cells[i] = uint8(i)
	}
	return b
}

// manhattan sums the distance of every tile but the blank to its goal cell.
func (p *Puzzle) manhattan(b Board) float64 {
	var sum int
	for c := 0; c < p.cells; c++ {
		if t := b.Cells[c]; t != 0 {
			sum += int(p.dist[c][t])
		}
	}
	return float64(sum)
}

// solvable applies the inversion parity rule.
func (p *Puzzle) solvable(b Board) bool {
	inv := 0
	for i := 0; i < p.cells; i++ {
		for j := i + 1; j < p.cells; j++ {
			if b.Cells[i] != 0 && b.Cells[j] != 0 && b.Cells[i] > b.Cells[j] {
				inv++
			}
		}
	}
	if p.width%2 == 1 {
		return inv%2 == 0
	}
	blankRow := int(b.Blank) / p.width
	return (inv+blankRow)%2 == 0
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// WithMaxGenerated returns a copy with a generation limit.
func (p *Puzzle) WithMaxGenerated(n int64) *Puzzle {
	cp := *p
	cp.maxNodes = n
	return &cp
}

// Name returns e.g. "tiles-4x4".
func (p *Puzzle) Name() string { return p.name }

// Start returns the start board.
func (p *Puzzle) Start() Board { return p.start }

// Layout renders a board in row-major order.
func (p *Puzzle) Layout(b Board) string {
	parts := make([]string, p.cells)
	for i := 0; i < p.cells; i++ {
		parts[i] = strconv.Itoa(int(b.Cells[i]))
	}
	return strings.Join(parts, " ")
}

// -----------------------------------------------------------------------------
// domain.Domain
// -----------------------------------------------------------------------------

func (p *Puzzle) InitialState() domain.State { return p.start }

func (p *Puzzle) IsGoal(s domain.State) bool {
	b := s.(Board)
	for i := 0; i < p.cells; i++ {
		if b.Cells[i] != uint8(i) {
			return false
		}
	}
	return true
}

func (p *Puzzle) NumOperators(s domain.State) int { return len(p.moves[s.(Board).Blank]) }

func (p *Puzzle) Operator(s domain.State, i int) domain.Operator {
	return domain.Operator(p.moves[s.(Board).Blank][i])
}

// Apply slides the tile on cell op into the blank.
func (p *Puzzle) Apply(s domain.State, op domain.Operator) (domain.State, error) {
	b := s.(Board)
	if !p.adjacent(b.Blank, op) {
		return nil, fmt.Errorf("%w: blank %d cannot move to %d", domain.ErrInvalidOperator, b.Blank, op)
	}
	to := uint8(op)
	t := b.Cells[to]
	b.h += float64(p.dist[b.Blank][t]) - float64(p.dist[to][t])
	b.Cells[b.Blank], b.Cells[to] = t, 0
	b.Blank = to
	return b, nil
}

func (p *Puzzle) adjacent(blank uint8, op domain.Operator) bool {
	for _, m := range p.moves[blank] {
		if domain.Operator(m) == op {
			return true
		}
	}
	return false
}

// Reverse moves the blank back to where it was.
func (p *Puzzle) Reverse(op domain.Operator, parent domain.State) domain.Operator {
	return domain.Operator(parent.(Board).Blank)
}

func (p *Puzzle) Pack(s domain.State) domain.PackedKey {
	b := s.(Board)
	var w domain.KeyWriter
	for i := 0; i < p.cells; i++ {
		w.Put(4, uint64(b.Cells[i]))
	}
	k, _ := w.Key()
	return k
}

func (p *Puzzle) Unpack(k domain.PackedKey) (domain.State, error) {
	b, err := p.unpack(k)
	if err != nil {
		return nil, err
	}
	b.h = p.manhattan(b)
	return b, nil
}

func (p *Puzzle) UnpackLite(k domain.PackedKey) (domain.State, error) {
	b, err := p.unpack(k)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (p *Puzzle) unpack(k domain.PackedKey) (Board, error) {
	var b Board
	r := domain.NewKeyReader(k)
	var seen uint32
	for i := 0; i < p.cells; i++ {
		t := uint8(r.Get(4))
		if int(t) >= p.cells || seen&(1<<t) != 0 {
			return Board{}, fmt.Errorf("%w: %s", domain.ErrInvalidKey, k)
		}
		seen |= 1 << t
		b.Cells[i] = t
		if t == 0 {
			b.Blank = uint8(i)
		}
	}
	if err := r.Err(); err != nil {
		return Board{}, err
	}
	return b, nil
}

// Cost is 1 for every move.
func (p *Puzzle) Cost(op domain.Operator, state, parent domain.State) float64 { return 1 }

func (p *Puzzle) HeuristicConsistent() bool { return true }

func (p *Puzzle) MaxGeneratedNodes() int64 { return p.maxNodes }

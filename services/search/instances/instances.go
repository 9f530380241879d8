// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package instances builds search problems from user-facing descriptions:
// a graph file or YAML document, an explicit tile layout, or a random walk
// from the tile goal.
package instances

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/AleutianAI/AleutianSearch/services/search/domain"
	"github.com/AleutianAI/AleutianSearch/services/search/domains/graph"
	"github.com/AleutianAI/AleutianSearch/services/search/domains/tiles"
)

var (
	// ErrNoInstance is returned when a Spec names no problem.
	ErrNoInstance = errors.New("no instance: give a graph, a tile layout or a walk length")

	// ErrAmbiguous is returned when a Spec names more than one problem.
	ErrAmbiguous = errors.New("instance: give exactly one of graph, tile layout or walk")

	// ErrBoardSize is returned when the board size cannot be inferred.
	ErrBoardSize = errors.New("cannot infer board size")
)

// Spec describes one problem instance. Exactly one of GraphPath,
// GraphYAML, Layout or Walk selects the problem.
type Spec struct {
	GraphPath string `json:"-"`
	GraphYAML string `json:"graph,omitempty"`
	Layout    string `json:"tiles,omitempty"`
	Width     int    `json:"width,omitempty" binding:"gte=0,lte=16"`
	Height    int    `json:"height,omitempty" binding:"gte=0,lte=16"`
	Walk      int    `json:"walk,omitempty" binding:"gte=0"`
	Seed      int64  `json:"seed,omitempty"`
}

// Instance is a built problem plus what is needed to report on it.
type Instance struct {
	Domain domain.Domain

	// Description identifies the instance in run records: the graph path
	// or name, or the tile layout.
	Description string

	Graph  *graph.Graph
	Puzzle *tiles.Puzzle
}

// Build creates the domain described by s.
func (s Spec) Build() (*Instance, error) {
	n := 0
	for _, set := range []bool{s.GraphPath != "", s.GraphYAML != "", s.Layout != "", s.Walk > 0} {
		if set {
			n++
		}
	}
	switch {
	case n == 0:
		return nil, ErrNoInstance
	case n > 1:
		return nil, ErrAmbiguous
	}

	switch {
	case s.GraphPath != "":
		g, err := graph.Load(s.GraphPath)
		if err != nil {
			return nil, err
		}
		return &Instance{Domain: g, Description: s.GraphPath, Graph: g}, nil

	case s.GraphYAML != "":
		g, err := graph.Parse([]byte(s.GraphYAML))
		if err != nil {
			return nil, err
		}
		return &Instance{Domain: g, Description: g.Name(), Graph: g}, nil

	case s.Layout != "":
		w, h, err := s.Dimensions(len(strings.Fields(s.Layout)))
		if err != nil {
			return nil, err
		}
		p, err := tiles.Parse(w, h, s.Layout)
		if err != nil {
			return nil, err
		}
		return puzzleInstance(p), nil

	default:
		w, h, _ := s.Dimensions(0)
		p, err := tiles.RandomWalk(w, h, s.Walk, rand.New(rand.NewSource(s.Seed)))
		if err != nil {
			return nil, err
		}
		return puzzleInstance(p), nil
	}
}

func puzzleInstance(p *tiles.Puzzle) *Instance {
	return &Instance{Domain: p, Description: p.Layout(p.Start()), Puzzle: p}
}

// Dimensions resolves the board width and height. n > 0 is the number of
// cells in an explicit layout; a missing width is inferred from it, as a
// square board when no height is given either. With no layout the default
// board is 4x4.
func (s Spec) Dimensions(n int) (int, int, error) {
	w, h := s.Width, s.Height
	if w == 0 {
		switch {
		case n == 0:
			w = 4
		case h > 0 && n%h == 0:
			w = n / h
		default:
			side := int(math.Round(math.Sqrt(float64(n))))
			if side*side != n {
				return 0, 0, fmt.Errorf("%w from %d tiles; set width and height", ErrBoardSize, n)
			}
			w = side
		}
	}
	if h == 0 {
		h = w
		if n > 0 && n%w == 0 {
			h = n / w
		}
	}
	return w, h, nil
}

// PathLabels names the states along a graph solution. It returns nil for
// tile puzzles.
func (in *Instance) PathLabels(states []domain.State) []string {
	if in.Graph == nil {
		return nil
	}
	out := make([]string, 0, len(states))
	for _, s := range states {
		gs, ok := s.(graph.State)
		if !ok {
			return nil
		}
		out = append(out, in.Graph.VertexName(gs.V))
	}
	return out
}

// TileFactory returns a constructor producing a fresh puzzle per call, for
// use as a batch job's domain factory.
func TileFactory(width, height int, layout string) func() (domain.Domain, error) {
	return func() (domain.Domain, error) {
		p, err := tiles.Parse(width, height, layout)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

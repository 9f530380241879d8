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

	"github.com/AleutianAI/AleutianSearch/services/search/domain"
	"github.com/AleutianAI/AleutianSearch/services/search/engine"
)

// -----------------------------------------------------------------------------
// A* / Weighted A*
// -----------------------------------------------------------------------------

// AStar is best-first search ordered by g + w*h with ties to larger g.
//
// Description:
//
//	With weight 1 this is A*, optimal under an admissible heuristic when
//	reopening is enabled. With weight w > 1 it is weighted A*, whose
//	solution costs at most w times the optimum.
//
// Thread Safety: Safe for concurrent Solve calls.
type AStar struct {
	base
}

// NewAStar creates A*. The weight is forced to 1.
func NewAStar(cfg *engine.Config, opts ...Option) (*AStar, error) {
	if cfg == nil {
		cfg = engine.DefaultConfig()
	}
	cfg = cfg.Clone()
	cfg.Weight = 1
	b, err := newBase("astar", cfg, opts)
	if err != nil {
		return nil, err
	}
	return &AStar{base: b}, nil
}

// NewWAStar creates weighted A* using cfg.Weight.
func NewWAStar(cfg *engine.Config, opts ...Option) (*AStar, error) {
	b, err := newBase("wastar", cfg, opts)
	if err != nil {
		return nil, err
	}
	return &AStar{base: b}, nil
}

// Properties reports optimality for weight 1 and the weight bound otherwise.
func (a *AStar) Properties() Properties {
	return Properties{Optimal: a.cfg.Weight == 1, Bound: a.cfg.Weight}
}

// Engine builds a fresh engine for d.
func (a *AStar) Engine(d domain.Domain) (*engine.Engine, error) {
	w := a.cfg.Weight
	return a.newEngine(d, engine.NewOpenList(engine.LessWeighted(w), engine.WeightedEval(w), true))
}

// Solve runs the search to the first goal.
func (a *AStar) Solve(ctx context.Context, d domain.Domain) (*engine.Result, error) {
	e, err := a.Engine(d)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx)
}

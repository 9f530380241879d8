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
	"math"

	"github.com/AleutianAI/AleutianSearch/services/search/domain"
	"github.com/AleutianAI/AleutianSearch/services/search/engine"
)

// -----------------------------------------------------------------------------
// Potential Search
// -----------------------------------------------------------------------------

// PotentialSearch expands the node with the highest potential (C - g) / h
// for a cost bound C, here max-cost.
//
// Description:
//
//	Nodes with f > C are pruned, so any solution found costs at most C.
//	Reopening can be disabled; the rerun policy then decides what happens
//	when OPEN runs out without a solution.
//
// Thread Safety: Safe for concurrent Solve calls.
type PotentialSearch struct {
	base
}

// NewPotentialSearch creates potential search bounded by cfg.MaxCost.
func NewPotentialSearch(cfg *engine.Config, opts ...Option) (*PotentialSearch, error) {
	b, err := newBase("pts", cfg, opts)
	if err != nil {
		return nil, err
	}
	return &PotentialSearch{base: b}, nil
}

// Properties reports a cost bound rather than a factor.
func (p *PotentialSearch) Properties() Properties {
	return Properties{Bound: math.NaN()}
}

// Engine builds a fresh engine for d.
func (p *PotentialSearch) Engine(d domain.Domain) (*engine.Engine, error) {
	return p.newEngine(d, newPotentialFrontier(p.cfg.MaxCost))
}

// Solve runs until a solution within the bound is found.
func (p *PotentialSearch) Solve(ctx context.Context, d domain.Domain) (*engine.Result, error) {
	e, err := p.Engine(d)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx)
}

// potentialFrontier orders OPEN by (bound - g) / h, highest first.
//
// An unbounded potential orders by h alone, which is the limit of the
// potential as the bound grows. Lowering the bound re-heaps OPEN.
type potentialFrontier struct {
	*engine.OpenList
	bound float64
}

func newPotentialFrontier(bound float64) *potentialFrontier {
	p := &potentialFrontier{bound: bound}
	p.OpenList = engine.NewOpenList(p.less, fEval, true)
	return p
}

func (p *potentialFrontier) less(a, b *engine.Node) bool {
	if math.IsInf(p.bound, 1) {
		if a.H != b.H {
			return a.H < b.H
		}
		return a.G > b.G
	}
	pa, pb := potential(p.bound, a), potential(p.bound, b)
	if pa != pb {
		return pa > pb
	}
	return a.G > b.G
}

// BoundChanged re-heaps OPEN under the new incumbent.
func (p *potentialFrontier) BoundChanged(bound float64) {
	if bound < p.bound {
		p.bound = bound
		p.Reheap()
	}
}

// potential returns (bound - g) / h, +Inf when h is zero.
func potential(bound float64, n *engine.Node) float64 {
	if n.H <= 0 {
		return math.Inf(1)
	}
	return (bound - n.G) / n.H
}

// fEval is the unweighted evaluation g + h.
func fEval(n *engine.Node) float64 { return n.F() }

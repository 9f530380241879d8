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
// Dynamic Potential Search
// -----------------------------------------------------------------------------

// DPS is dynamic potential search.
//
// Description:
//
//	DPS orders OPEN by the potential (w * fmin - g) / h, where fmin is the
//	minimum f in OPEN. Whenever fmin changes the whole OPEN is re-heaped,
//	at most once every FR pops when FR is set.
//
//	A goal is returned only if g <= w * fmin. Otherwise it is held as the
//	incumbent, nodes with f >= g are pruned, and the search continues
//	until w * fmin reaches the held cost, a cheaper goal is accepted, or
//	OPEN runs out.
//
// Thread Safety: Safe for concurrent Solve calls.
type DPS struct {
	base
}

// NewDPS creates dynamic potential search with cfg.Weight and cfg.ReorderInterval.
func NewDPS(cfg *engine.Config, opts ...Option) (*DPS, error) {
	b, err := newBase("dps", cfg, opts)
	if err != nil {
		return nil, err
	}
	return &DPS{base: b}, nil
}

// Properties reports the weight bound.
func (s *DPS) Properties() Properties {
	return Properties{Optimal: s.cfg.Weight == 1, Bound: s.cfg.Weight}
}

// Solve runs DPS to the first certified goal.
func (s *DPS) Solve(ctx context.Context, d domain.Domain) (*engine.Result, error) {
	f := newDPSFrontier(s.cfg.Weight, s.cfg.ReorderInterval)
	e, err := s.newEngine(d, f)
	if err != nil {
		return nil, err
	}
	res, err := e.Run(ctx)
	if res != nil {
		res.SetExtra("reorders", float64(f.reorders))
		res.SetExtra("held_goals", float64(f.held))
	}
	return res, err
}

type dpsFrontier struct {
	*engine.OpenList
	weight   float64
	interval int

	fmin     float64
	pops     int
	reorders int64
	held     int64
}

func newDPSFrontier(weight float64, interval int) *dpsFrontier {
	f := &dpsFrontier{weight: weight, interval: interval, fmin: math.Inf(1)}
	f.OpenList = engine.NewOpenList(f.less, fEval, true)
	return f
}

func (f *dpsFrontier) less(a, b *engine.Node) bool {
	ua, ub := f.priority(a), f.priority(b)
	if ua != ub {
		return ua > ub
	}
	return a.G > b.G
}

func (f *dpsFrontier) priority(n *engine.Node) float64 {
	if n.H <= 0 {
		return math.Inf(1)
	}
	return (f.weight*f.fmin - n.G) / n.H
}

// Pop re-heaps OPEN when fmin moved and the throttle allows it.
func (f *dpsFrontier) Pop() *engine.Node {
	f.pops++
	if cur := f.OpenList.Fmin(); cur != f.fmin && (f.interval <= 0 || f.pops >= f.interval) {
		f.fmin = cur
		f.pops = 0
		f.reorders++
		f.Reheap()
	}
	return f.OpenList.Pop()
}

// AcceptGoal accepts n when g <= w * fmin over the rest of OPEN.
func (f *dpsFrontier) AcceptGoal(n *engine.Node) bool {
	if n.G <= f.weight*f.OpenList.Fmin() {
		return true
	}
	f.held++
	return false
}

// Certified reports whether a held goal of the given cost is within bound.
func (f *dpsFrontier) Certified(cost float64) bool {
	return cost <= f.weight*f.OpenList.Fmin()
}

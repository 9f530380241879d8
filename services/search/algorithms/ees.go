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
	"github.com/AleutianAI/AleutianSearch/services/search/queue"
)

// -----------------------------------------------------------------------------
// Explicit Estimation Search
// -----------------------------------------------------------------------------

// maxDistanceError keeps dHat = d / (1 - err) finite.
const maxDistanceError = 0.999

// EES is explicit estimation search.
//
// Description:
//
//	EES keeps three orderings over the same node set: CLEANUP by f,
//	OPEN by fHat and FOCAL by dHat. Each iteration it takes the FOCAL best
//	when its fHat is within weight * min f, else the OPEN best under the
//	same test, else the CLEANUP best. A goal is therefore always returned
//	within weight times the optimal cost.
//
//	The corrected estimates come from single-step errors measured along
//	the path: at every expansion the child with minimum f gives
//	errH = f(child) - f(parent) and errD = d(child) + 1 - d(parent), both
//	clamped at zero, and each node averages the errors of its ancestors:
//
//	  dHat = d / (1 - avgErrD)
//	  hHat = h + dHat * avgErrH
//	  fHat = g + hHat
//
//	When a duplicate gets a cheaper parent, its subtree's path errors are
//	recomputed from the new parent and re-keyed in all three queues.
//
// Thread Safety: Safe for concurrent Solve calls.
type EES struct {
	base
}

// NewEES creates explicit estimation search with cfg.Weight.
func NewEES(cfg *engine.Config, opts ...Option) (*EES, error) {
	b, err := newBase("ees", cfg, opts)
	if err != nil {
		return nil, err
	}
	return &EES{base: b}, nil
}

// Properties reports the weight bound.
func (s *EES) Properties() Properties {
	return Properties{Optimal: s.cfg.Weight == 1, Bound: s.cfg.Weight}
}

// Solve runs EES to the first goal.
func (s *EES) Solve(ctx context.Context, d domain.Domain) (*engine.Result, error) {
	f := newEESFrontier(s.cfg.Weight)
	e, err := s.newEngine(d, f)
	if err != nil {
		return nil, err
	}
	res, err := e.Run(ctx)
	if res != nil {
		res.SetExtra("focal_picks", float64(f.picks[pickFocal]))
		res.SetExtra("open_picks", float64(f.picks[pickOpen]))
		res.SetExtra("cleanup_picks", float64(f.picks[pickCleanup]))
		res.SetExtra("relinked", float64(f.relinked))
	}
	return res, err
}

const (
	pickFocal = iota
	pickOpen
	pickCleanup
)

// eesFrontier holds the three queues and the parent/child tree.
type eesFrontier struct {
	weight   float64
	open     *queue.Heap[*engine.Node]
	cleanup  *queue.Heap[*engine.Node]
	focal    *queue.Heap[*engine.Node]
	nodes    func(engine.NodeID) *engine.Node
	children map[engine.NodeID][]engine.NodeID
	picks    [3]int64
	relinked int64
}

func newEESFrontier(weight float64) *eesFrontier {
	return &eesFrontier{
		weight:   weight,
		open:     queue.New(lessFHat, engine.OpenSlot),
		cleanup:  queue.New(engine.LessF, engine.CleanupSlot),
		focal:    queue.New(lessDHat, engine.FocalSlot),
		children: make(map[engine.NodeID][]engine.NodeID),
	}
}

func lessFHat(a, b *engine.Node) bool {
	if a.FHat != b.FHat {
		return a.FHat < b.FHat
	}
	return a.G > b.G
}

func lessDHat(a, b *engine.Node) bool {
	if a.DHat != b.DHat {
		return a.DHat < b.DHat
	}
	return a.FHat < b.FHat
}

func (q *eesFrontier) Attach(nodes func(engine.NodeID) *engine.Node) { q.nodes = nodes }

func (q *eesFrontier) Len() int { return q.cleanup.Len() }

func (q *eesFrontier) Push(n *engine.Node) {
	estimate(n)
	q.open.Push(n)
	q.cleanup.Push(n)
	q.focal.Push(n)
}

// Pop applies the three-queue selection rule.
func (q *eesFrontier) Pop() *engine.Node {
	best, ok := q.cleanup.Peek()
	if !ok {
		return nil
	}
	bound := q.weight * best.F()

	n, pick := best, pickCleanup
	if f, _ := q.focal.Peek(); f.FHat <= bound {
		n, pick = f, pickFocal
	} else if o, _ := q.open.Peek(); o.FHat <= bound {
		n, pick = o, pickOpen
	}
	q.picks[pick]++
	q.Remove(n)
	return n
}

func (q *eesFrontier) Contains(n *engine.Node) bool { return q.cleanup.Contains(n) }

func (q *eesFrontier) Update(n *engine.Node) {
	estimate(n)
	q.open.Fix(n)
	q.cleanup.Fix(n)
	q.focal.Fix(n)
}

func (q *eesFrontier) Remove(n *engine.Node) {
	q.open.Remove(n)
	q.cleanup.Remove(n)
	q.focal.Remove(n)
}

func (q *eesFrontier) Evaluate(n *engine.Node) float64 { return n.F() }

func (q *eesFrontier) Each(fn func(*engine.Node)) { q.cleanup.Each(fn) }

func (q *eesFrontier) Clear() {
	q.open.Clear()
	q.cleanup.Clear()
	q.focal.Clear()
	clear(q.children)
}

// Fmin returns the CLEANUP minimum, a lower bound on the optimal cost.
func (q *eesFrontier) Fmin() float64 {
	if n, ok := q.cleanup.Peek(); ok {
		return n.F()
	}
	return math.Inf(1)
}

// Prepare measures the single-step error at parent and derives the
// corrected estimates of its children.
func (q *eesFrontier) Prepare(parent *engine.Node, children []*engine.Node) {
	if parent == nil {
		for _, c := range children {
			c.ErrH, c.ErrD, c.Depth = 0, 0, 0
			estimate(c)
		}
		return
	}

	var best *engine.Node
	for _, c := range children {
		if best == nil || c.F() < best.F() || (c.F() == best.F() && c.D < best.D) {
			best = c
		}
	}
	parent.StepH, parent.StepD = 0, 0
	if best != nil {
		parent.StepH = math.Max(0, best.F()-parent.F())
		parent.StepD = math.Max(0, best.D+1-parent.D)
	}
	for _, c := range children {
		inherit(c, parent)
	}
}

// Linked records a new node under its parent.
func (q *eesFrontier) Linked(n *engine.Node) {
	if n.Parent != engine.NoNode {
		q.children[n.Parent] = append(q.children[n.Parent], n.ID)
	}
}

// Relinked moves n under its new parent and recomputes the path errors of
// its whole subtree.
func (q *eesFrontier) Relinked(n *engine.Node, oldParent engine.NodeID) {
	q.relinked++
	if oldParent != n.Parent {
		q.detach(oldParent, n.ID)
		q.children[n.Parent] = append(q.children[n.Parent], n.ID)
	}

	if p := q.nodes(n.Parent); p != nil {
		inherit(n, p)
	} else {
		estimate(n)
	}
	q.Update(n)

	visited := map[engine.NodeID]bool{n.ID: true}
	pending := []*engine.Node{n}
	for len(pending) > 0 {
		x := pending[0]
		pending = pending[1:]
		for _, id := range q.children[x.ID] {
			if visited[id] {
				continue
			}
			visited[id] = true
			c := q.nodes(id)
			if c == nil || c.Parent != x.ID {
				continue
			}
			inherit(c, x)
			q.Update(c)
			pending = append(pending, c)
		}
	}
}

func (q *eesFrontier) detach(parent, id engine.NodeID) {
	kids := q.children[parent]
	for i, k := range kids {
		if k == id {
			kids[i] = kids[len(kids)-1]
			q.children[parent] = kids[:len(kids)-1]
			return
		}
	}
}

// inherit derives c's path errors from its parent p.
func inherit(c, p *engine.Node) {
	c.ErrH = p.ErrH + p.StepH
	c.ErrD = p.ErrD + p.StepD
	c.Depth = p.Depth + 1
	estimate(c)
}

// estimate computes hHat, dHat and fHat from the averaged path errors.
func estimate(n *engine.Node) {
	var errH, errD float64
	if n.Depth > 0 {
		errH = n.ErrH / float64(n.Depth)
		errD = n.ErrD / float64(n.Depth)
	}
	errD = math.Min(errD, maxDistanceError)
	n.DHat = n.D / (1 - errD)
	n.HHat = n.H + n.DHat*errH
	n.FHat = n.G + n.HHat
}

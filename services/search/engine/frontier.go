// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"math"

	"github.com/AleutianAI/AleutianSearch/services/search/queue"
)

// -----------------------------------------------------------------------------
// Frontier contract
// -----------------------------------------------------------------------------

// Frontier is the OPEN list of an algorithm.
//
// Description:
//
//	The engine owns Closed and the duplicate procedure. The frontier owns
//	the node ordering: which node comes out next and how a candidate path
//	is weighed. Every algorithm variant is an engine plus a frontier.
//
//	Evaluate returns the weighted cost of n, lower is better. The engine
//	uses it to detect non-improving cheaper duplicates.
//
// Thread Safety: Implementations are owned by one engine.
type Frontier interface {
	Len() int
	Push(n *Node)
	Pop() *Node
	Contains(n *Node) bool
	Update(n *Node)
	Remove(n *Node)
	Evaluate(n *Node) float64
	Each(fn func(*Node))
	Clear()
}

// FminTracker is implemented by frontiers that track the minimum f in OPEN.
// Fmin returns +Inf when OPEN is empty.
type FminTracker interface {
	Fmin() float64
}

// Preparer is implemented by frontiers that compute derived estimates for
// a batch of successors before they are routed. parent is nil for the root.
type Preparer interface {
	Prepare(parent *Node, children []*Node)
}

// TreeObserver is implemented by frontiers that maintain the parent/child
// tree. Linked is called for every new node with a parent. Relinked is
// called after an existing node was given a cheaper path.
type TreeObserver interface {
	Linked(n *Node)
	Relinked(n *Node, oldParent NodeID)
}

// BoundObserver is notified when the incumbent bound changes.
type BoundObserver interface {
	BoundChanged(bound float64)
}

// ExpansionObserver is notified before each expansion.
type ExpansionObserver interface {
	Expanding(n *Node)
}

// GoalPolicy decides whether a goal may be returned immediately.
//
// AcceptGoal returns false to hold a goal as the incumbent. The engine then
// asks Certified with the held cost once per iteration and returns the
// held goal as soon as it is certified or OPEN is exhausted.
type GoalPolicy interface {
	AcceptGoal(n *Node) bool
	Certified(cost float64) bool
}

// Resolver is given access to node handles when a frontier is attached.
type Resolver interface {
	Attach(nodes func(NodeID) *Node)
}

// -----------------------------------------------------------------------------
// OpenList
// -----------------------------------------------------------------------------

// OpenList is a single-ordering frontier with an optional f-heap for fmin.
//
// Thread Safety: Not safe for concurrent use.
type OpenList struct {
	open  *queue.Heap[*Node]
	fheap *queue.Heap[*Node]
	eval  func(*Node) float64
}

// NewOpenList creates a frontier.
//
// Inputs:
//
//	less - OPEN ordering.
//	eval - Weighted evaluation, lower is better.
//	trackF - Maintain a second heap by f so Fmin is O(1).
func NewOpenList(less queue.Less[*Node], eval func(*Node) float64, trackF bool) *OpenList {
	l := &OpenList{open: queue.New(less, OpenSlot), eval: eval}
	if trackF {
		l.fheap = queue.New(LessF, CleanupSlot)
	}
	return l
}

func (l *OpenList) Len() int { return l.open.Len() }

func (l *OpenList) Push(n *Node) {
	l.open.Push(n)
	if l.fheap != nil {
		l.fheap.Push(n)
	}
}

func (l *OpenList) Pop() *Node {
	n, ok := l.open.Pop()
	if !ok {
		return nil
	}
	if l.fheap != nil {
		l.fheap.Remove(n)
	}
	return n
}

func (l *OpenList) Peek() *Node {
	n, _ := l.open.Peek()
	return n
}

func (l *OpenList) Contains(n *Node) bool { return l.open.Contains(n) }

func (l *OpenList) Update(n *Node) {
	l.open.Fix(n)
	if l.fheap != nil {
		l.fheap.Fix(n)
	}
}

func (l *OpenList) Remove(n *Node) {
	l.open.Remove(n)
	if l.fheap != nil {
		l.fheap.Remove(n)
	}
}

func (l *OpenList) Evaluate(n *Node) float64 { return l.eval(n) }

func (l *OpenList) Each(fn func(*Node)) { l.open.Each(fn) }

func (l *OpenList) Clear() {
	l.open.Clear()
	if l.fheap != nil {
		l.fheap.Clear()
	}
}

// Reheap rebuilds the OPEN ordering after a global priority change.
func (l *OpenList) Reheap() { l.open.Reheap() }

// Fmin returns the minimum f in OPEN, +Inf when empty. Without an f-heap
// it scans OPEN.
func (l *OpenList) Fmin() float64 {
	if l.fheap != nil {
		if n, ok := l.fheap.Peek(); ok {
			return n.F()
		}
		return math.Inf(1)
	}
	fmin := math.Inf(1)
	l.open.Each(func(n *Node) { fmin = math.Min(fmin, n.F()) })
	return fmin
}

// -----------------------------------------------------------------------------
// Orderings
// -----------------------------------------------------------------------------

// LessF orders by f, ties to larger g.
func LessF(a, b *Node) bool {
	fa, fb := a.F(), b.F()
	if fa != fb {
		return fa < fb
	}
	return a.G > b.G
}

// WeightedEval returns g + w*h.
func WeightedEval(w float64) func(*Node) float64 {
	return func(n *Node) float64 { return n.G + w*n.H }
}

// LessWeighted orders by g + w*h, ties to larger g.
func LessWeighted(w float64) queue.Less[*Node] {
	return func(a, b *Node) bool {
		fa, fb := a.G+w*a.H, b.G+w*b.H
		if fa != fb {
			return fa < fb
		}
		return a.G > b.G
	}
}

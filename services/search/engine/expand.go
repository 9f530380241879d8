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
	"fmt"

	"github.com/AleutianAI/AleutianSearch/services/search/domain"
)

// successor is a generated child before it is routed through Closed.
type successor struct {
	node     Node
	cost     float64
	existing *Node
}

// expand generates every successor of n except the one undoing the edge
// that produced n, applies BPMX, and routes each child.
func (e *Engine) expand(n *Node, s domain.State) error {
	n.Expansions++
	e.stats.Expanded++
	if e.expObs != nil {
		e.expObs.Expanding(n)
	}

	e.succ = e.succ[:0]
	ops := e.dom.NumOperators(s)
	for i := 0; i < ops; i++ {
		op := e.dom.Operator(s, i)
		if op == n.Pop {
			continue
		}
		child, err := e.dom.Apply(s, op)
		if err != nil {
			return &SearchError{
				Algorithm: e.algorithm,
				Operation: "apply",
				Err:       fmt.Errorf("operator %d: %w", op, err),
			}
		}
		cost := e.dom.Cost(op, child, s)
		key := e.dom.Pack(child)
		e.stats.Generated++

		e.succ = append(e.succ, successor{
			node: Node{
				Key:    key,
				Parent: n.ID,
				Op:     op,
				Pop:    e.dom.Reverse(op, s),
				G:      n.G + cost,
				H:      child.H(),
				D:      child.D(),
				Depth:  n.Depth + 1,
			},
			cost:     cost,
			existing: e.closed[key],
		})
	}

	if e.cfg.BPMX {
		e.propagate(n)
		if e.prunable(n) {
			e.stats.Pruned++
			return nil
		}
	}

	if e.prep != nil {
		e.children = e.children[:0]
		for i := range e.succ {
			e.children = append(e.children, &e.succ[i].node)
		}
		e.prep.Prepare(n, e.children)
	}

	for i := range e.succ {
		if err := e.route(n, &e.succ[i]); err != nil {
			return err
		}
	}

	if e.hooks.Expanded != nil {
		e.hooks.Expanded(n)
	}
	return nil
}

// propagate runs both BPMX passes over the successors of n.
//
// Upward: n.h = max(n.h, child.h - cost) over every child, using the
// Closed copy's h for children already generated. Downward: each fresh
// child's h = max(child.h, n.h - cost). Closed copies are raised when
// they are routed.
func (e *Engine) propagate(n *Node) {
	best := n.H
	for i := range e.succ {
		sc := &e.succ[i]
		h := sc.node.H
		if sc.existing != nil && sc.existing.H > h {
			h = sc.existing.H
		}
		if v := h - sc.cost; v > best {
			best = v
		}
	}
	if best > n.H {
		e.raiseH(n, best)
	}

	for i := range e.succ {
		sc := &e.succ[i]
		if v := n.H - sc.cost; v > sc.node.H {
			sc.node.H = v
		}
	}
}

func (e *Engine) raiseH(n *Node, h float64) {
	old := n.H
	n.H = h
	if e.hooks.HRaised != nil {
		e.hooks.HRaised(n, old)
	}
}

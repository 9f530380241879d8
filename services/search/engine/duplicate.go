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
	"log/slog"
)

// maxDiagnostics caps the diagnostics kept per session.
const maxDiagnostics = 64

// route merges one successor of parent into Closed and OPEN.
//
// Description:
//
//	A key not in Closed becomes a new node in OPEN and Closed. A key in
//	Closed is a duplicate. When the new path is strictly cheaper, the
//	frontier's weighted evaluation must improve too; otherwise the update
//	is skipped as an inconsistency artifact, which is an error in strict
//	mode when the heuristic is declared consistent. An improving path
//	overwrites g, op, pop and parent in place and then the node is
//	re-keyed if still in OPEN, reopened if reopening is enabled, or moved
//	to the inconsistency list.
func (e *Engine) route(parent *Node, sc *successor) error {
	d := e.closed[sc.node.Key]
	if d == nil {
		return e.insert(sc)
	}

	e.stats.Duplicates++

	raised := false
	if e.cfg.BPMX {
		if v := parent.H - sc.cost; v > d.H {
			e.raiseH(d, v)
			raised = true
		}
	}

	if d.G > sc.node.G {
		trial := *d
		trial.G = sc.node.G
		oldEval := e.frontier.Evaluate(d)
		newEval := e.frontier.Evaluate(&trial)
		if !(newEval < oldEval) {
			if err := e.inconsistent(d, sc, oldEval, newEval); err != nil {
				return err
			}
			if raised && e.frontier.Contains(d) {
				e.frontier.Update(d)
			}
			return nil
		}

		oldParent := d.Parent
		d.G = sc.node.G
		d.Op = sc.node.Op
		d.Pop = sc.node.Pop
		d.Parent = sc.node.Parent
		if sc.node.H > d.H {
			d.H = sc.node.H
		}
		if e.tree != nil {
			e.tree.Relinked(d, oldParent)
		}

		switch {
		case e.frontier.Contains(d):
			e.frontier.Update(d)
			e.stats.OpenUpdated++
		case e.reopen:
			e.frontier.Push(d)
			e.stats.Reopened++
		case !d.incons:
			d.incons = true
			e.incons = append(e.incons, d)
		}
		e.closed[d.Key] = d
		return nil
	}

	if raised && e.frontier.Contains(d) {
		e.frontier.Update(d)
	}
	return nil
}

func (e *Engine) insert(sc *successor) error {
	n, err := e.arena.Alloc()
	if err != nil {
		return err
	}
	id := n.ID
	*n = sc.node
	n.ID = id
	n.resetSlots()
	e.closed[n.Key] = n
	e.frontier.Push(n)
	if e.tree != nil {
		e.tree.Linked(n)
	}
	return nil
}

// inconsistent handles a cheaper duplicate whose weighted evaluation did
// not improve. It returns an error only in strict mode with a heuristic
// declared consistent.
func (e *Engine) inconsistent(d *Node, sc *successor, oldEval, newEval float64) error {
	e.stats.InconsistentSkips++
	if !e.dom.HeuristicConsistent() {
		return nil
	}

	diag := Diagnostic{
		Key:         d.Key.String(),
		OldG:        d.G,
		NewG:        sc.node.G,
		OldEval:     oldEval,
		NewEval:     newEval,
		H:           d.H,
		Consistent:  true,
		Description: "cheaper duplicate did not improve the weighted evaluation",
	}
	if len(e.diagnostics) < maxDiagnostics {
		e.diagnostics = append(e.diagnostics, diag)
	}
	e.logger.Warn("heuristic inconsistency",
		slog.String("algorithm", e.algorithm),
		slog.String("domain", e.domainName),
		slog.String("key", diag.Key),
		slog.Float64("old_g", diag.OldG),
		slog.Float64("new_g", diag.NewG),
		slog.Float64("old_eval", oldEval),
		slog.Float64("new_eval", newEval),
	)
	if e.cfg.Strict() {
		return &InconsistencyError{Diagnostic: diag}
	}
	return nil
}

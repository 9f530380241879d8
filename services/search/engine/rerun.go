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

// maybeRerun applies the rerun policy once OPEN is exhausted.
//
// The policy fires at most once per session, only when the search was
// configured without reopening and found no solution. It returns true
// when the search should continue.
func (e *Engine) maybeRerun() (bool, error) {
	if e.cfg.Reopen || e.reran || len(e.solutions) > 0 {
		return false, nil
	}
	switch e.cfg.Rerun {
	case RerunNewAR:
		e.reran = true
		e.reopen = true
		e.stats.Reruns++
		e.logger.Info("rerun from scratch with reopening",
			slog.String("algorithm", e.algorithm),
			slog.Int64("expanded", e.stats.Expanded),
			slog.Int("incons", len(e.incons)),
		)
		e.frontier.Clear()
		clear(e.closed)
		e.incons = nil
		e.arena.Reset()
		e.seeded = false
		return true, e.seed()

	case RerunContinueAR:
		e.reran = true
		e.reopen = true
		e.stats.Reruns++
		e.logger.Info("continue with inconsistency list and reopening",
			slog.String("algorithm", e.algorithm),
			slog.Int64("expanded", e.stats.Expanded),
			slog.Int("incons", len(e.incons)),
		)
		for _, d := range e.incons {
			d.incons = false
			if !e.frontier.Contains(d) {
				e.frontier.Push(d)
			}
		}
		e.incons = e.incons[:0]
		return e.frontier.Len() > 0, nil
	}
	return false, nil
}

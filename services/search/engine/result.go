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
	"time"

	"github.com/AleutianAI/AleutianSearch/services/search/domain"
)

// Status is the state of a search.
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusGoalFound
	StatusExhausted
	StatusAborted
	StatusTimedOut
	StatusNodeLimitReached
)

var statusNames = [...]string{
	StatusIdle:             "idle",
	StatusRunning:          "running",
	StatusGoalFound:        "goal_found",
	StatusExhausted:        "exhausted",
	StatusAborted:          "aborted",
	StatusTimedOut:         "timed_out",
	StatusNodeLimitReached: "node_limit_reached",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// MarshalText encodes the status name.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	*s = StatusIdle
	return nil
}

// Terminal reports whether the search can no longer continue.
func (s Status) Terminal() bool {
	return s != StatusIdle && s != StatusRunning && s != StatusGoalFound
}

// Stats are the search counters.
type Stats struct {
	Expanded          int64 `json:"expanded"`
	Generated         int64 `json:"generated"`
	Duplicates        int64 `json:"duplicates"`
	Reopened          int64 `json:"reopened"`
	OpenUpdated       int64 `json:"open_updated"`
	Pruned            int64 `json:"pruned"`
	InconsistentSkips int64 `json:"inconsistent_skips"`
	Reruns            int64 `json:"reruns"`
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Expanded += o.Expanded
	s.Generated += o.Generated
	s.Duplicates += o.Duplicates
	s.Reopened += o.Reopened
	s.OpenUpdated += o.OpenUpdated
	s.Pruned += o.Pruned
	s.InconsistentSkips += o.InconsistentSkips
	s.Reruns += o.Reruns
}

// Solution is a path from the initial state to a goal.
type Solution struct {
	Cost      float64           `json:"cost"`
	Length    int               `json:"length"`
	GoalIndex int               `json:"goal_index"`
	Operators []domain.Operator `json:"operators"`
	States    []domain.State    `json:"-"`
}

// Result is the outcome of a search.
type Result struct {
	Algorithm   string             `json:"algorithm"`
	Domain      string             `json:"domain"`
	Status      Status             `json:"status"`
	Solved      bool               `json:"solved"`
	Solutions   []Solution         `json:"solutions"`
	Stats       Stats              `json:"stats"`
	WallTime    time.Duration      `json:"wall_time"`
	CPUTime     time.Duration      `json:"cpu_time"`
	Extras      map[string]float64 `json:"extras,omitempty"`
	Diagnostics []Diagnostic       `json:"diagnostics,omitempty"`
}

// Best returns the cheapest solution, or nil.
func (r *Result) Best() *Solution {
	var best *Solution
	for i := range r.Solutions {
		if best == nil || r.Solutions[i].Cost < best.Cost {
			best = &r.Solutions[i]
		}
	}
	return best
}

// SetExtra records a named scalar metric.
func (r *Result) SetExtra(name string, v float64) {
	if r.Extras == nil {
		r.Extras = make(map[string]float64)
	}
	r.Extras[name] = v
}

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
	"log/slog"
	"math"
	"time"

	"github.com/AleutianAI/AleutianSearch/services/search/domain"
	"github.com/AleutianAI/AleutianSearch/services/search/engine"
)

// -----------------------------------------------------------------------------
// Anytime controller
// -----------------------------------------------------------------------------

// Anytime runs one engine repeatedly against a shrinking incumbent.
//
// Description:
//
//	Each iteration resumes the same search, prunes every node whose f is
//	not below the incumbent, and stops at the next goal, which is then
//	strictly cheaper than the incumbent. When OPEN is exhausted the last
//	incumbent is optimal.
//
//	Two orderings are provided: anytime weighted A* (g + w*h) and anytime
//	potential search ((U - g) / h where U is the incumbent, with OPEN
//	re-heaped whenever U drops).
//
// Thread Safety: Safe for concurrent Solve calls. A Session is not.
type Anytime struct {
	base
	potential bool
}

// NewAWAStar creates anytime weighted A*.
func NewAWAStar(cfg *engine.Config, opts ...Option) (*Anytime, error) {
	b, err := newBase("awastar", cfg, opts)
	if err != nil {
		return nil, err
	}
	return &Anytime{base: b}, nil
}

// NewAPTS creates anytime potential search.
func NewAPTS(cfg *engine.Config, opts ...Option) (*Anytime, error) {
	b, err := newBase("apts", cfg, opts)
	if err != nil {
		return nil, err
	}
	return &Anytime{base: b, potential: true}, nil
}

// Properties reports the anytime guarantee.
func (a *Anytime) Properties() Properties {
	return Properties{Optimal: true, Bound: a.cfg.Weight, Anytime: true}
}

// Iteration records one improvement of the incumbent.
type Iteration struct {
	Cost      float64       `json:"cost"`
	Expanded  int64         `json:"expanded"`
	Generated int64         `json:"generated"`
	Reopened  int64         `json:"reopened"`
	Fmin      float64       `json:"fmin"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Session is one anytime search in progress.
type Session struct {
	e          *engine.Engine
	logger     *slog.Logger
	start      time.Time
	incumbent  float64
	maxFmin    float64
	iterations []Iteration
	done       bool
	last       *engine.Result
}

// Start creates a session on d without running it.
func (a *Anytime) Start(d domain.Domain) (*Session, error) {
	var f engine.Frontier
	if a.potential {
		f = newPotentialFrontier(math.Inf(1))
	} else {
		w := a.cfg.Weight
		f = engine.NewOpenList(engine.LessWeighted(w), engine.WeightedEval(w), true)
	}
	e, err := a.newEngine(d, f)
	if err != nil {
		return nil, err
	}
	return &Session{
		e:         e,
		logger:    a.logger,
		start:     time.Now(),
		incumbent: math.Inf(1),
		maxFmin:   math.Inf(-1),
	}, nil
}

// Next resumes the search until the next strictly better solution.
//
// Outputs:
//
//	*engine.Solution - The new incumbent, or nil when the search is done
//	                   or stopped by a budget limit.
//	error - Hard errors from the engine.
func (s *Session) Next(ctx context.Context) (*engine.Solution, error) {
	if s.done {
		return nil, nil
	}

	res, err := s.e.Run(ctx)
	s.last = res
	s.observeFmin()
	if err != nil {
		return nil, err
	}

	switch res.Status {
	case engine.StatusGoalFound:
		sols := s.e.Solutions()
		sol := sols[len(sols)-1]
		if sol.Cost >= s.incumbent {
			return nil, nil
		}
		s.incumbent = sol.Cost
		s.e.SetIncumbent(sol.Cost)

		st := s.e.Stats()
		fmin, _ := s.e.Fmin()
		s.iterations = append(s.iterations, Iteration{
			Cost:      sol.Cost,
			Expanded:  st.Expanded,
			Generated: st.Generated,
			Reopened:  st.Reopened,
			Fmin:      fmin,
			Elapsed:   time.Since(s.start),
		})
		s.logger.Debug("incumbent improved",
			slog.Float64("cost", sol.Cost),
			slog.Float64("lower_bound", s.LowerBound()),
			slog.Int("iteration", len(s.iterations)),
		)
		return &sol, nil

	case engine.StatusExhausted:
		s.done = true
	}
	return nil, nil
}

// Run calls Next until the search is done or stopped.
func (s *Session) Run(ctx context.Context) (*engine.Result, error) {
	for !s.done {
		sol, err := s.Next(ctx)
		if err != nil {
			return s.Result(), err
		}
		if sol == nil && !s.done && s.last.Status != engine.StatusGoalFound {
			break
		}
	}
	return s.Result(), nil
}

func (s *Session) observeFmin() {
	if fmin, ok := s.e.Fmin(); ok && fmin > s.maxFmin {
		s.maxFmin = fmin
	}
}

// Done reports whether OPEN is exhausted, proving the incumbent optimal.
func (s *Session) Done() bool { return s.done }

// Status returns the status of the most recent resumption, or
// StatusIdle before the first.
func (s *Session) Status() engine.Status {
	if s.last == nil {
		return engine.StatusIdle
	}
	return s.last.Status
}

// Incumbent returns the best solution cost so far.
func (s *Session) Incumbent() float64 { return s.incumbent }

// Fmin returns the minimum f in OPEN.
func (s *Session) Fmin() float64 {
	f, _ := s.e.Fmin()
	return f
}

// MaxFmin returns the largest fmin observed between iterations.
func (s *Session) MaxFmin() float64 { return s.maxFmin }

// LowerBound returns the certified lower bound min(incumbent, maxFmin).
func (s *Session) LowerBound() float64 {
	return math.Min(s.incumbent, s.maxFmin)
}

// Iterations returns the improvement history.
func (s *Session) Iterations() []Iteration { return s.iterations }

// Engine returns the underlying engine.
func (s *Session) Engine() *engine.Engine { return s.e }

// Result returns the accumulated result. A finished search with a
// solution reports StatusGoalFound.
func (s *Session) Result() *engine.Result {
	res := s.e.Result()
	if s.done && res.Solved {
		res.Status = engine.StatusGoalFound
	}
	res.SetExtra("incumbent", s.incumbent)
	res.SetExtra("max_fmin", s.maxFmin)
	res.SetExtra("lower_bound", s.LowerBound())
	res.SetExtra("iterations", float64(len(s.iterations)))
	if s.done {
		res.SetExtra("proved_optimal", 1)
	}
	return res
}

// Solve runs the anytime search until OPEN is exhausted or a budget stops it.
func (a *Anytime) Solve(ctx context.Context, d domain.Domain) (*engine.Result, error) {
	s, err := a.Start(d)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx)
}

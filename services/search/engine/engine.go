// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine implements the generic best-first search engine.
//
// # Architecture
//
// An Engine owns the node arena, the Closed map and the inconsistency
// list. The ordering of OPEN is injected as a Frontier, so A*, weighted
// A*, potential search, dynamic potential search and explicit estimation
// search all share one expansion loop and one duplicate procedure:
//
//	┌──────────┐  pop   ┌──────────┐ successors ┌──────────┐
//	│ Frontier │ ─────▶ │  Engine  │ ─────────▶ │  Domain  │
//	│  (OPEN)  │ ◀───── │  Closed  │ ◀───────── │          │
//	└──────────┘ route  └──────────┘   states   └──────────┘
//
// Every node in OPEN is also in Closed. Nodes are never freed during a
// session; they move between OPEN, Closed and the inconsistency list.
//
// # Termination
//
// Run drives the loop until a goal is found, OPEN is exhausted, a budget
// limit is hit, or the arena runs out of memory. Run may be called again
// after StatusGoalFound to continue the same search, which is how the
// anytime controller tightens its incumbent.
//
// # Thread Safety
//
// An Engine is owned by one goroutine. Independent searches must each
// build their own engine and domain.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianSearch/services/search/domain"
)

// Hooks observe engine internals. They are intended for tests and tracing.
type Hooks struct {
	// Expanded is called after all successors of n were routed.
	Expanded func(n *Node)

	// HRaised is called when BPMX raises the h of n from old.
	HRaised func(n *Node, old float64)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithAlgorithm sets the algorithm name used in logs, spans and results.
func WithAlgorithm(name string) Option {
	return func(e *Engine) { e.algorithm = name }
}

// WithHooks installs observation hooks.
func WithHooks(h Hooks) Option {
	return func(e *Engine) { e.hooks = h }
}

// Engine is one best-first search session.
type Engine struct {
	dom        domain.Domain
	variant    domain.Variant
	domainName string
	algorithm  string
	cfg        *Config
	logger     *slog.Logger
	hooks      Hooks

	frontier Frontier
	fmin     FminTracker
	prep     Preparer
	tree     TreeObserver
	bound    BoundObserver
	expObs   ExpansionObserver
	goalPol  GoalPolicy

	arena  *Arena
	closed map[domain.PackedKey]*Node
	incons []*Node

	reopen    bool
	reran     bool
	seeded    bool
	clockOn   bool
	incumbent float64
	held      *Node

	budget      *Budget
	stats       Stats
	status      Status
	solutions   []Solution
	found       []bool
	foundCount  int
	diagnostics []Diagnostic

	wall     time.Duration
	cpu      time.Duration
	progress rate.Sometimes
	succ     []successor
	children []*Node
}

// New creates an engine.
//
// Description:
//
//	New validates cfg, classifies the domain's goal variant and discovers
//	the optional capabilities of the frontier once. The search does not
//	start until Run.
//
// Inputs:
//
//	d - The domain. Must not be nil.
//	f - The frontier defining the OPEN ordering. Must not be nil.
//	cfg - Configuration. nil uses DefaultConfig().
//	opts - Optional settings.
//
// Outputs:
//
//	*Engine - The engine, ready to Run.
//	error - Non-nil if an argument or the configuration is invalid.
func New(d domain.Domain, f Frontier, cfg *Config, opts ...Option) (*Engine, error) {
	if d == nil {
		return nil, ErrNilDomain
	}
	if f == nil {
		return nil, ErrNilFrontier
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	nodeLimit := d.MaxGeneratedNodes()
	if cfg.NodeLimit > 0 && (nodeLimit <= 0 || cfg.NodeLimit < nodeLimit) {
		nodeLimit = cfg.NodeLimit
	}

	e := &Engine{
		dom:        d,
		variant:    domain.Classify(d),
		domainName: domain.NameOf(d),
		algorithm:  "search",
		cfg:        cfg.Clone(),
		logger:     slog.Default().With(slog.String("component", "search.engine")),
		frontier:   f,
		arena:      NewArena(cfg.MemoryLimitBytes),
		closed:     make(map[domain.PackedKey]*Node),
		reopen:     cfg.Reopen,
		incumbent:  math.Inf(1),
		budget:     NewBudget(cfg.TimeLimit, nodeLimit),
		progress:   rate.Sometimes{Interval: cfg.ProgressInterval},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.found = make([]bool, e.variant.Goals)

	e.fmin, _ = f.(FminTracker)
	e.prep, _ = f.(Preparer)
	e.tree, _ = f.(TreeObserver)
	e.bound, _ = f.(BoundObserver)
	e.expObs, _ = f.(ExpansionObserver)
	e.goalPol, _ = f.(GoalPolicy)
	if r, ok := f.(Resolver); ok {
		r.Attach(e.arena.Get)
	}
	return e, nil
}

// Run drives the search until it reaches a goal or a terminal state.
//
// Description:
//
//	Run may be called again after StatusGoalFound to resume the search.
//	The time limit is measured from the first Run and covers every
//	resumption; RestartClock starts a fresh limit.
//
// Inputs:
//
//	ctx - Cancellation or deadline ends the run with StatusTimedOut.
//
// Outputs:
//
//	*Result - Snapshot of the session so far. Never nil.
//	error - Non-nil only for hard errors: domain bugs and strict-mode
//	        violations. Budget exhaustion and out-of-memory are reported
//	        through Result.Status.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	ctx, span := startRunSpan(ctx, e.algorithm, e.domainName)

	before := e.stats
	startWall := time.Now()
	startCPU := processCPUTime()
	if !e.clockOn {
		e.budget.Restart()
		e.clockOn = true
	}

	status, err := e.run(ctx)

	e.wall += time.Since(startWall)
	e.cpu += processCPUTime() - startCPU
	e.status = status

	res := e.Result()
	delta := res.Stats
	delta.Expanded -= before.Expanded
	delta.Generated -= before.Generated
	delta.Reopened -= before.Reopened

	e.logger.Debug("search run finished",
		slog.String("algorithm", e.algorithm),
		slog.String("domain", e.domainName),
		slog.String("status", status.String()),
		slog.Int64("expanded", res.Stats.Expanded),
		slog.Int64("generated", res.Stats.Generated),
		slog.Duration("wall_time", res.WallTime),
	)

	endRunSpan(span, res, err)
	recordRunMetrics(ctx, res, delta)
	return res, err
}

func (e *Engine) run(ctx context.Context) (Status, error) {
	if e.status.Terminal() {
		return e.status, nil
	}
	if !e.seeded {
		if err := e.seed(); err != nil {
			return e.fail(err)
		}
	}

	for {
		if e.held != nil && e.goalPol.Certified(e.held.G) {
			if err := e.releaseHeld(); err != nil {
				return e.fail(err)
			}
			return StatusGoalFound, nil
		}

		if e.frontier.Len() == 0 {
			if e.held != nil {
				if err := e.releaseHeld(); err != nil {
					return e.fail(err)
				}
				return StatusGoalFound, nil
			}
			rerun, err := e.maybeRerun()
			if err != nil {
				return e.fail(err)
			}
			if rerun {
				continue
			}
			return StatusExhausted, nil
		}

		if err := e.budget.Check(ctx, e.stats.Generated); err != nil {
			if errors.Is(err, ErrNodeLimitExceeded) {
				return StatusNodeLimitReached, nil
			}
			return StatusTimedOut, nil
		}

		n := e.frontier.Pop()
		if e.prunable(n) {
			e.stats.Pruned++
			continue
		}

		s, err := e.dom.Unpack(n.Key)
		if err != nil {
			return e.fail(&SearchError{Algorithm: e.algorithm, Operation: "unpack", Err: err})
		}

		if gi := e.goalIndex(s); gi >= 0 {
			if e.goalPol != nil && !e.goalPol.AcceptGoal(n) {
				e.hold(n)
				continue
			}
			if err := e.record(n, gi); err != nil {
				return e.fail(err)
			}
			if e.variant.Kind == domain.SingleGoal || e.foundCount == e.variant.Goals {
				return StatusGoalFound, nil
			}
		}

		if err := e.expand(n, s); err != nil {
			return e.fail(err)
		}

		if e.cfg.Strict() {
			if err := e.CheckInvariants(); err != nil {
				return e.fail(err)
			}
		}
		if e.stats.Expanded&1023 == 0 {
			e.progress.Do(e.logProgress)
		}
	}
}

// fail converts out-of-memory into a normal Aborted termination and
// propagates everything else.
func (e *Engine) fail(err error) (Status, error) {
	if errors.Is(err, ErrOutOfMemory) {
		e.logger.Error("search aborted: out of memory",
			slog.String("domain", e.domainName),
			slog.String("algorithm", e.algorithm),
			slog.Int64("generated", e.stats.Generated),
			slog.Int64("arena_bytes", e.arena.Bytes()),
			slog.Int("solutions", len(e.solutions)),
		)
		return StatusAborted, nil
	}
	return StatusAborted, err
}

func (e *Engine) seed() error {
	s := e.dom.InitialState()
	root, err := e.arena.Alloc()
	if err != nil {
		return err
	}
	root.Key = e.dom.Pack(s)
	root.H = s.H()
	root.D = s.D()
	if e.prep != nil {
		e.prep.Prepare(nil, []*Node{root})
	}
	e.closed[root.Key] = root
	e.frontier.Push(root)
	e.seeded = true
	return nil
}

// prunable reports whether n cannot lead to an acceptable solution:
// its f exceeds max-cost or is no better than the incumbent.
func (e *Engine) prunable(n *Node) bool {
	f := n.F()
	return f > e.cfg.MaxCost || f >= e.incumbent
}

func (e *Engine) goalIndex(s domain.State) int {
	gi := e.variant.GoalIndex(e.dom, s)
	if gi < 0 || gi >= len(e.found) {
		return -1
	}
	if e.variant.Kind == domain.MultiGoal && e.found[gi] {
		return -1
	}
	return gi
}

func (e *Engine) record(n *Node, gi int) error {
	sol, err := e.solutionFor(n)
	if err != nil {
		return err
	}
	sol.GoalIndex = gi
	e.solutions = append(e.solutions, sol)
	if !e.found[gi] {
		e.found[gi] = true
		e.foundCount++
	}
	e.logger.Debug("goal found",
		slog.String("algorithm", e.algorithm),
		slog.Int("goal", gi),
		slog.Float64("cost", sol.Cost),
		slog.Int64("expanded", e.stats.Expanded),
	)
	return nil
}

// hold keeps a goal rejected by the goal policy as the incumbent.
func (e *Engine) hold(n *Node) {
	if e.held == nil || n.G < e.held.G {
		e.held = n
	}
	e.SetIncumbent(n.G)
}

// releaseHeld records the held goal as a solution.
func (e *Engine) releaseHeld() error {
	n := e.held
	e.held = nil
	s, err := e.dom.UnpackLite(n.Key)
	if err != nil {
		return &SearchError{Algorithm: e.algorithm, Operation: "unpack held goal", Err: err}
	}
	gi := e.variant.GoalIndex(e.dom, s)
	if gi < 0 || gi >= len(e.found) {
		return &SearchError{
			Algorithm: e.algorithm,
			Operation: "release held goal",
			Err:       fmt.Errorf("%w: held state is not a goal (index %d)", ErrInvariantViolation, gi),
		}
	}
	return e.record(n, gi)
}

func (e *Engine) logProgress() {
	e.logger.Debug("search progress",
		slog.String("algorithm", e.algorithm),
		slog.Int64("expanded", e.stats.Expanded),
		slog.Int64("generated", e.stats.Generated),
		slog.Int("open", e.frontier.Len()),
		slog.Int("closed", len(e.closed)),
		slog.Duration("elapsed", e.budget.Elapsed()),
	)
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

// SetIncumbent lowers the incumbent bound. Nodes with f >= bound are pruned.
func (e *Engine) SetIncumbent(c float64) {
	if c < e.incumbent {
		e.incumbent = c
		if e.bound != nil {
			e.bound.BoundChanged(c)
		}
	}
}

// Incumbent returns the current incumbent bound.
func (e *Engine) Incumbent() float64 { return e.incumbent }

// Fmin returns the minimum f in OPEN when the frontier tracks it.
func (e *Engine) Fmin() (float64, bool) {
	if e.fmin == nil {
		return math.NaN(), false
	}
	return e.fmin.Fmin(), true
}

// RestartClock starts the time limit afresh at the next Run.
func (e *Engine) RestartClock() { e.clockOn = false }

// Stats returns the counters so far.
func (e *Engine) Stats() Stats { return e.stats }

// Status returns the status of the last Run.
func (e *Engine) Status() Status { return e.status }

// Config returns the engine's copy of its configuration.
func (e *Engine) Config() *Config { return e.cfg }

// Algorithm returns the algorithm name.
func (e *Engine) Algorithm() string { return e.algorithm }

// Solutions returns the solutions found so far.
func (e *Engine) Solutions() []Solution { return e.solutions }

// Node resolves a handle.
func (e *Engine) Node(id NodeID) *Node { return e.arena.Get(id) }

// Lookup returns the Closed node for a key, or nil.
func (e *Engine) Lookup(k domain.PackedKey) *Node { return e.closed[k] }

// OpenLen returns the number of nodes in OPEN.
func (e *Engine) OpenLen() int { return e.frontier.Len() }

// ClosedLen returns the number of nodes in Closed.
func (e *Engine) ClosedLen() int { return len(e.closed) }

// InconsLen returns the size of the inconsistency list.
func (e *Engine) InconsLen() int { return len(e.incons) }

// Reopening reports whether reopening is currently enabled.
func (e *Engine) Reopening() bool { return e.reopen }

// Result returns a snapshot of the session.
func (e *Engine) Result() *Result {
	res := &Result{
		Algorithm:   e.algorithm,
		Domain:      e.domainName,
		Status:      e.status,
		Solved:      len(e.solutions) > 0,
		Solutions:   append([]Solution(nil), e.solutions...),
		Stats:       e.stats,
		WallTime:    e.wall,
		CPUTime:     e.cpu,
		Diagnostics: append([]Diagnostic(nil), e.diagnostics...),
	}
	if fmin, ok := e.Fmin(); ok {
		res.SetExtra("fmin", fmin)
	}
	res.SetExtra("closed", float64(len(e.closed)))
	res.SetExtra("open", float64(e.frontier.Len()))
	res.SetExtra("arena_bytes", float64(e.arena.Bytes()))
	if e.cfg.Rerun != RerunNone && !e.cfg.Reopen {
		res.SetExtra("reruns", float64(e.stats.Reruns))
		res.SetExtra("incons", float64(len(e.incons)))
	}
	return res
}

// CheckInvariants verifies that every node in OPEN is the Closed node for
// its key. It runs after every expansion in strict mode.
func (e *Engine) CheckInvariants() error {
	var err error
	e.frontier.Each(func(n *Node) {
		if err != nil {
			return
		}
		if c, ok := e.closed[n.Key]; !ok || c != n {
			err = fmt.Errorf("%w: open node %s missing from closed", ErrInvariantViolation, n.Key)
		}
	})
	return err
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package domain defines the contract between a search problem and the
// best-first search engine.
//
// A domain describes an implicit state space: an initial state, a goal
// test, the operators applicable in a state, and a compact key used for
// duplicate detection. The engine never inspects states directly; it only
// stores packed keys and asks the domain to rebuild states on demand.
//
// # Packed Keys
//
// Every state must pack into a PackedKey, a fixed 128-bit value that is
// comparable and therefore usable as a map key. Pack and Unpack must be
// inverses: Pack(Unpack(k)) == k for every key the domain produces.
//
// # Goal Variants
//
// Domains come in two variants. A single-goal domain stops at the first
// goal expanded. A multi-goal domain (MultiGoalDomain) reports how many
// distinct goals exist and which one a state satisfies, and the engine
// keeps searching until each of them has a solution. Classify inspects a
// domain once and returns the matching Variant.
package domain

import (
	"errors"
	"fmt"
)

// Operator identifies an action applicable in a state.
//
// Operator values are domain specific. NoOp marks the absence of an
// operator, for example the generating operator of the initial state.
type Operator int

// NoOp is the operator of the root node and the reverse of nothing.
const NoOp Operator = -1

// ErrInvalidOperator is returned by Apply when an operator is not
// applicable in the given state. It always indicates a domain bug.
var ErrInvalidOperator = errors.New("invalid operator")

// ErrInvalidKey is returned by Unpack when a key was not produced by Pack.
var ErrInvalidKey = errors.New("invalid packed key")

// State is a point in the search space.
//
// H is the heuristic estimate of the remaining cost and D the estimate of
// the remaining number of steps (distance). Both must be non-negative.
type State interface {
	H() float64
	D() float64
}

// Domain is the problem a search algorithm runs on.
//
// Description:
//
//	Domain is consumed by the search engine through a narrow interface:
//	enumerate operators, apply one, reverse one, pack and unpack states,
//	and price a transition. Cost takes the operator, the child state and
//	then the parent state, in that order.
//
// Thread Safety: Implementations need not be safe for concurrent use.
// Each search session owns its domain.
type Domain interface {
	// InitialState returns the root of the search.
	InitialState() State

	// IsGoal reports whether s satisfies a goal condition.
	IsGoal(s State) bool

	// NumOperators returns how many operators are applicable in s.
	NumOperators(s State) int

	// Operator returns the i-th applicable operator of s, 0 <= i < NumOperators(s).
	Operator(s State, i int) Operator

	// Apply returns the state produced by applying op to s.
	Apply(s State, op Operator) (State, error)

	// Reverse returns the operator that undoes op, mapping the child back to parent.
	Reverse(op Operator, parent State) Operator

	// Pack encodes s into its duplicate-detection key.
	Pack(s State) PackedKey

	// Unpack rebuilds a state from its key, recomputing H and D.
	Unpack(k PackedKey) (State, error)

	// UnpackLite rebuilds a state without heuristic computation.
	// It is used only for path reconstruction.
	UnpackLite(k PackedKey) (State, error)

	// Cost returns the cost of the transition parent -op-> state.
	Cost(op Operator, state, parent State) float64

	// HeuristicConsistent reports whether H is consistent.
	HeuristicConsistent() bool

	// MaxGeneratedNodes is the generation limit, 0 meaning unlimited.
	MaxGeneratedNodes() int64
}

// MultiGoalDomain is a domain with several distinct goals.
type MultiGoalDomain interface {
	Domain

	// GoalCount returns the number of distinct goals.
	GoalCount() int

	// GoalIndex returns the goal s satisfies in [0, GoalCount), or -1.
	GoalIndex(s State) int
}

// Named is implemented by domains that have a name for logs and reports.
type Named interface {
	Name() string
}

// NameOf returns the domain name, or its Go type when it has none.
func NameOf(d Domain) string {
	if n, ok := d.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", d)
}

// -----------------------------------------------------------------------------
// Goal variant
// -----------------------------------------------------------------------------

// VariantKind distinguishes single-goal from multi-goal domains.
type VariantKind int

const (
	// SingleGoal domains stop at the first goal.
	SingleGoal VariantKind = iota

	// MultiGoal domains search until every goal is reached.
	MultiGoal
)

// String returns "single-goal" or "multi-goal".
func (k VariantKind) String() string {
	if k == MultiGoal {
		return "multi-goal"
	}
	return "single-goal"
}

// Variant is a domain classified once by its goal structure.
type Variant struct {
	Kind  VariantKind
	Multi MultiGoalDomain
	Goals int
}

// Classify returns the goal variant of d.
//
// A MultiGoalDomain reporting fewer than two goals is treated as a
// single-goal domain.
func Classify(d Domain) Variant {
	if m, ok := d.(MultiGoalDomain); ok && m.GoalCount() > 1 {
		return Variant{Kind: MultiGoal, Multi: m, Goals: m.GoalCount()}
	}
	return Variant{Kind: SingleGoal, Goals: 1}
}

// GoalIndex returns which goal s satisfies, or -1.
func (v Variant) GoalIndex(d Domain, s State) int {
	if v.Kind == MultiGoal {
		return v.Multi.GoalIndex(s)
	}
	if d.IsGoal(s) {
		return 0
	}
	return -1
}

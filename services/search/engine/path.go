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
	"slices"

	"github.com/AleutianAI/AleutianSearch/services/search/domain"
)

// solutionFor walks parent links from goal to the root and rebuilds the
// path with lite unpacking. The cost is re-summed from the domain.
func (e *Engine) solutionFor(goal *Node) (Solution, error) {
	var chain []*Node
	limit := e.arena.Len() + 1
	for n := goal; n != nil; n = e.arena.Get(n.Parent) {
		chain = append(chain, n)
		if len(chain) > limit {
			return Solution{}, fmt.Errorf("%w: parent cycle at %s", ErrInvariantViolation, n.Key)
		}
	}
	slices.Reverse(chain)

	sol := Solution{
		States:    make([]domain.State, 0, len(chain)),
		Operators: make([]domain.Operator, 0, len(chain)-1),
	}
	var prev domain.State
	for i, n := range chain {
		s, err := e.dom.UnpackLite(n.Key)
		if err != nil {
			return Solution{}, &SearchError{Algorithm: e.algorithm, Operation: "unpack path", Err: err}
		}
		if i > 0 {
			sol.Operators = append(sol.Operators, n.Op)
			sol.Cost += e.dom.Cost(n.Op, s, prev)
		}
		sol.States = append(sol.States, s)
		prev = s
	}
	sol.Length = len(sol.Operators)
	return sol, nil
}

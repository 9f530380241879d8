// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package algorithms provides the best-first search variants built on the
// generic engine.
//
// # Variants
//
//	astar    A*, optimal with an admissible heuristic and reopening
//	wastar   weighted A*, cost <= weight * optimal
//	pts      potential search, cost <= max-cost, with rerun policies
//	awastar  anytime weighted A*, converges to optimal
//	apts     anytime potential search, converges to optimal
//	ees      explicit estimation search, cost <= weight * optimal
//	dps      dynamic potential search, cost <= weight * optimal
//
// Each variant is an engine plus a frontier; none of them reimplements
// duplicate detection or reopening.
//
// # Usage
//
//	algo, err := algorithms.New("ees", cfg)
//	if err != nil {
//	    return err
//	}
//	res, err := algo.Solve(ctx, dom)
//
// Batches of independent searches run through Runner.
package algorithms

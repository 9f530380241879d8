// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/spf13/pflag"

	"github.com/AleutianAI/AleutianSearch/services/search/instances"
)

// registerInstanceFlags binds the flags that select a problem instance.
func registerInstanceFlags(fs *pflag.FlagSet, s *instances.Spec) {
	fs.StringVar(&s.GraphPath, "graph", "", "YAML graph file")
	fs.StringVar(&s.Layout, "tiles", "", `Tile layout, row major, 0 is the blank, e.g. "1 2 3 4 0 5 6 7 8"`)
	fs.IntVar(&s.Width, "width", 0, "Puzzle width (default: inferred from a square --tiles layout, else 4)")
	fs.IntVar(&s.Height, "height", 0, "Puzzle height (default: width)")
	fs.IntVar(&s.Walk, "walk", 0, "Generate a tile instance with this many random blank moves from the goal")
	fs.Int64Var(&s.Seed, "seed", 1, "Random seed for --walk")
}

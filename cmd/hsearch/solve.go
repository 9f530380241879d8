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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSearch/services/search/algorithms"
	"github.com/AleutianAI/AleutianSearch/services/search/domain"
	"github.com/AleutianAI/AleutianSearch/services/search/engine"
	"github.com/AleutianAI/AleutianSearch/services/search/instances"
	"github.com/AleutianAI/AleutianSearch/services/search/storage"
)

// ErrBoundViolated is returned by solve --verify when the solution is
// worse than the algorithm guarantees.
var ErrBoundViolated = errors.New("solution cost exceeds the algorithm's bound")

const costEpsilon = 1e-9

type solveFlags struct {
	instance  instances.Spec
	algorithm string
	weight    float64
	save      bool
	verify    bool
}

func newSolveCmd(a *app) *cobra.Command {
	f := &solveFlags{}
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve one graph or sliding-tile instance",
		Example: `  hsearch solve --tiles "1 2 5 3 4 0 6 7 8"
  hsearch solve --algorithm ees --weight 2 --walk 80 --width 4
  hsearch solve --graph g.yaml --algorithm pts -o max-cost=40 --verify`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSolve(cmd, f)
		},
	}
	fs := cmd.Flags()
	registerInstanceFlags(fs, &f.instance)
	fs.StringVarP(&f.algorithm, "algorithm", "a", "astar", "Algorithm: "+joinNames())
	fs.Float64VarP(&f.weight, "weight", "w", 1, "Suboptimality weight (overrides the configuration)")
	fs.BoolVar(&f.save, "save", false, "Record the run in the history database")
	fs.BoolVar(&f.verify, "verify", false, "Compare the cost with an optimal solution and check the bound")
	return cmd
}

func (a *app) runSolve(cmd *cobra.Command, f *solveFlags) error {
	ctx := cmd.Context()
	cfg := a.cfg.Clone()
	if cmd.Flags().Changed("weight") {
		cfg.Weight = f.weight
	}

	in, err := f.instance.Build()
	if err != nil {
		return err
	}
	algo, err := algorithms.New(f.algorithm, cfg, algorithms.WithLogger(a.log()))
	if err != nil {
		return err
	}

	a.log().Debug("solving",
		slog.String("algorithm", algo.Name()),
		slog.String("domain", domain.NameOf(in.Domain)),
		slog.Float64("weight", cfg.Weight),
	)
	res, err := algo.Solve(ctx, in.Domain)
	if err != nil {
		return err
	}

	var labels []string
	if best := res.Best(); best != nil {
		labels = in.PathLabels(best.States)
	}
	renderResult(a.printer, res, labels)

	if f.save {
		store, err := a.store()
		if err != nil {
			return err
		}
		rec := storage.NewRecord(in.Description, cfg, res)
		id, err := store.Save(ctx, &rec)
		if err != nil {
			return err
		}
		a.printer.Success("saved run " + id)
	}

	if f.verify {
		return a.verify(ctx, algo, cfg, in, res)
	}
	return nil
}

// verify computes the optimal cost and checks res against the algorithm's
// guarantee: within Weight of optimal, or within MaxCost for potential
// search.
func (a *app) verify(ctx context.Context, algo algorithms.Algorithm, cfg *engine.Config, in *instances.Instance, res *engine.Result) error {
	best := res.Best()
	if best == nil {
		a.printer.Warning("nothing to verify: no solution found")
		return nil
	}

	var opt float64
	if in.Graph != nil {
		opt = in.Graph.OptimalCost(best.GoalIndex)
	} else {
		oracle, err := algorithms.New("astar", nil, algorithms.WithLogger(a.log()))
		if err != nil {
			return err
		}
		ores, err := oracle.Solve(ctx, in.Domain)
		if err != nil {
			return err
		}
		ob := ores.Best()
		if ob == nil {
			return fmt.Errorf("verify: optimal search ended with %s", ores.Status)
		}
		opt = ob.Cost
	}

	limit := algo.Properties().Bound * opt
	if math.IsNaN(limit) {
		limit = cfg.MaxCost
	}
	printPairs(a.printer, "Verification", []kvPair{
		{"optimal", formatCost(opt)},
		{"found", formatCost(best.Cost)},
		{"ratio", fmt.Sprintf("%.4f", ratio(best.Cost, opt))},
		{"limit", formatCost(limit)},
	})
	if best.Cost > limit+costEpsilon {
		return fmt.Errorf("%w: cost %s, limit %s", ErrBoundViolated, formatCost(best.Cost), formatCost(limit))
	}
	a.printer.Success("within bound")
	return nil
}

func ratio(cost, opt float64) float64 {
	if opt == 0 {
		if cost == 0 {
			return 1
		}
		return math.Inf(1)
	}
	return cost / opt
}

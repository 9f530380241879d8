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
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSearch/services/search/algorithms"
	"github.com/AleutianAI/AleutianSearch/services/search/domains/tiles"
	"github.com/AleutianAI/AleutianSearch/services/search/instances"
	"github.com/AleutianAI/AleutianSearch/services/search/storage"
	"github.com/AleutianAI/AleutianSearch/services/search/telemetry"
)

type benchFlags struct {
	algorithms  []string
	instances   int
	walk        int
	width       int
	height      int
	seed        int64
	weight      float64
	concurrency int
	metricsAddr string
	metricsFile string
	save        bool
}

func newBenchCmd(a *app) *cobra.Command {
	f := &benchFlags{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run several algorithms over the same random tile instances",
		Long: `bench generates sliding-tile instances by random walks from the goal and
solves every instance with every listed algorithm, running jobs concurrently.
Metrics can be scraped while it runs (--metrics-addr) or written to a
node_exporter textfile when it finishes (--metrics-file).`,
		Example: `  hsearch bench --algorithms astar,wastar,ees --instances 20 --walk 60 -w 2
  hsearch bench --algorithms awastar --metrics-file /var/lib/node_exporter/hsearch.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runBench(cmd, f)
		},
	}
	fs := cmd.Flags()
	fs.StringSliceVar(&f.algorithms, "algorithms", []string{"astar", "wastar"}, "Algorithms to compare: "+joinNames())
	fs.IntVar(&f.instances, "instances", 10, "Number of instances")
	fs.IntVar(&f.walk, "walk", 40, "Random blank moves per instance")
	fs.IntVar(&f.width, "width", 4, "Puzzle width")
	fs.IntVar(&f.height, "height", 4, "Puzzle height")
	fs.Int64Var(&f.seed, "seed", 1, "Seed of the first instance; instance i uses seed+i")
	fs.Float64VarP(&f.weight, "weight", "w", 1, "Suboptimality weight (overrides the configuration)")
	fs.IntVar(&f.concurrency, "concurrency", 0, "Jobs in flight (default: GOMAXPROCS)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus /metrics on this address while running")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile when done")
	fs.BoolVar(&f.save, "save", false, "Record every run in the history database")
	return cmd
}

func (a *app) runBench(cmd *cobra.Command, f *benchFlags) error {
	ctx := cmd.Context()
	if f.instances <= 0 {
		return fmt.Errorf("--instances must be positive, got %d", f.instances)
	}
	cfg := a.cfg.Clone()
	if cmd.Flags().Changed("weight") {
		cfg.Weight = f.weight
	}
	for _, name := range f.algorithms {
		if _, err := algorithms.New(name, cfg); err != nil {
			return err
		}
	}

	telCfg := telemetry.DefaultConfig()
	telCfg.Writer = cmd.ErrOrStderr()
	if f.metricsAddr != "" || f.metricsFile != "" {
		telCfg.MetricExporter = "prometheus"
	}
	tel, err := telemetry.Init(ctx, telCfg)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			a.log().Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()

	if f.metricsAddr != "" {
		stop, err := a.serveMetrics(f.metricsAddr, tel.Handler())
		if err != nil {
			return err
		}
		defer stop()
	}

	layouts, err := benchInstances(f)
	if err != nil {
		return err
	}
	jobs := make([]algorithms.Job, 0, len(f.algorithms)*len(layouts))
	for _, name := range f.algorithms {
		for i, layout := range layouts {
			jobs = append(jobs, algorithms.Job{
				ID:        fmt.Sprintf("%s-%03d", name, i),
				Algorithm: name,
				Instance:  layout,
				Config:    cfg,
				NewDomain: instances.TileFactory(f.width, f.height, layout),
			})
		}
	}

	a.log().Info("bench starting",
		slog.Int("jobs", len(jobs)),
		slog.Int("instances", len(layouts)),
		slog.Int("walk", f.walk),
	)
	runner := algorithms.NewRunner(f.concurrency, algorithms.WithLogger(a.log()))
	reports, runErr := runner.Run(ctx, jobs)

	a.printer.Title(fmt.Sprintf("%dx%d puzzle, %d instances, walk %d, weight %g", f.width, f.height, len(layouts), f.walk, cfg.Weight))
	renderBench(a.printer, summarize(reports))

	if f.save {
		if err := a.saveReports(ctx, reports); err != nil {
			return err
		}
	}
	if f.metricsFile != "" {
		if err := tel.WriteTextfile(f.metricsFile); err != nil {
			return err
		}
		a.printer.Success("metrics written to " + f.metricsFile)
	}
	return runErr
}

// benchInstances generates the layouts up front so every algorithm sees
// the same instances.
func benchInstances(f *benchFlags) ([]string, error) {
	out := make([]string, 0, f.instances)
	for i := 0; i < f.instances; i++ {
		p, err := tiles.RandomWalk(f.width, f.height, f.walk, rand.New(rand.NewSource(f.seed+int64(i))))
		if err != nil {
			return nil, err
		}
		out = append(out, p.Layout(p.Start()))
	}
	return out, nil
}

func (a *app) saveReports(ctx context.Context, reports []algorithms.Report) error {
	store, err := a.store()
	if err != nil {
		return err
	}
	saved := 0
	for _, rep := range reports {
		if rep.Err != nil || rep.Result == nil {
			continue
		}
		rec := storage.NewRecord(rep.Job.Instance, rep.Job.Config, rep.Result)
		if _, err := store.Save(ctx, &rec); err != nil {
			return err
		}
		saved++
	}
	a.printer.Success(fmt.Sprintf("saved %d runs", saved))
	return nil
}

// serveMetrics serves handler on addr until the returned stop is called.
func (a *app) serveMetrics(addr string, handler http.Handler) (func(), error) {
	if handler == nil {
		return nil, telemetry.ErrNoRegistry
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	logger := a.log().With(slog.String("component", "metrics"))
	logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

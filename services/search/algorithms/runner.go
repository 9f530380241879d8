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
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianSearch/services/search/domain"
	"github.com/AleutianAI/AleutianSearch/services/search/engine"
)

// -----------------------------------------------------------------------------
// Runner
// -----------------------------------------------------------------------------

// Job is one independent search in a batch.
//
// NewDomain is called inside the job's goroutine, so every job gets its
// own domain, engine, OPEN and Closed.
type Job struct {
	ID        string
	Algorithm string
	Instance  string
	Config    *engine.Config
	NewDomain func() (domain.Domain, error)
}

// Report is the outcome of one job.
type Report struct {
	Job      Job
	Result   *engine.Result
	Err      error
	Duration time.Duration
}

// Runner executes batches of independent searches concurrently.
//
// Description:
//
//	Runner bounds concurrency with an errgroup limit. A failing job does
//	not cancel its siblings; its error is recorded in its Report. Only
//	cancellation of the parent context stops the batch early.
//
// Thread Safety: Safe for concurrent use.
type Runner struct {
	concurrency int
	opts        []Option
	logger      *slog.Logger
}

// NewRunner creates a runner.
//
// Inputs:
//
//	concurrency - Maximum jobs in flight. <= 0 uses GOMAXPROCS.
//	opts - Options passed to every algorithm.
func NewRunner(concurrency int, opts ...Option) *Runner {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	return &Runner{
		concurrency: concurrency,
		opts:        opts,
		logger:      slog.Default().With(slog.String("component", "search_runner")),
	}
}

// Run executes every job and returns reports in job order.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Report, error) {
	reports := make([]Report, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				reports[i] = Report{Job: job, Err: err}
				return err
			}
			reports[i] = r.runJob(ctx, job)
			return nil
		})
	}
	err := g.Wait()

	r.logger.Info("batch finished",
		slog.Int("jobs", len(jobs)),
		slog.Int("concurrency", r.concurrency),
	)
	return reports, err
}

func (r *Runner) runJob(ctx context.Context, job Job) Report {
	start := time.Now()
	ctx, span := otel.Tracer("aleutian.search.runner").Start(ctx, "search.job",
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.String("job.algorithm", job.Algorithm),
			attribute.String("job.instance", job.Instance),
		),
	)
	defer span.End()

	rep := Report{Job: job}
	rep.Result, rep.Err = r.solve(ctx, job)
	rep.Duration = time.Since(start)

	if rep.Err != nil {
		span.RecordError(rep.Err)
		span.SetStatus(codes.Error, rep.Err.Error())
		r.logger.Warn("job failed",
			slog.String("job", job.ID),
			slog.String("algorithm", job.Algorithm),
			slog.String("error", rep.Err.Error()),
		)
	} else if rep.Result != nil {
		span.SetAttributes(
			attribute.String("search.status", rep.Result.Status.String()),
			attribute.Int64("search.expanded", rep.Result.Stats.Expanded),
		)
	}
	return rep
}

func (r *Runner) solve(ctx context.Context, job Job) (*engine.Result, error) {
	if job.NewDomain == nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, engine.ErrNilDomain)
	}
	algo, err := New(job.Algorithm, job.Config, r.opts...)
	if err != nil {
		return nil, err
	}
	d, err := job.NewDomain()
	if err != nil {
		return nil, fmt.Errorf("job %s: build domain: %w", job.ID, err)
	}
	return algo.Solve(ctx, d)
}

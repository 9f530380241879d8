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
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for search operations.
var (
	tracer = otel.Tracer("aleutian.search")
	meter  = otel.Meter("aleutian.search")
)

// Metrics for search runs.
var (
	runLatency     metric.Float64Histogram
	runTotal       metric.Int64Counter
	nodesExpanded  metric.Int64Counter
	nodesGenerated metric.Int64Counter
	nodesReopened  metric.Int64Counter
	solutionCost   metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"search_run_duration_seconds",
			metric.WithDescription("Duration of search runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runTotal, err = meter.Int64Counter(
			"search_run_total",
			metric.WithDescription("Total number of search runs by status"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nodesExpanded, err = meter.Int64Counter(
			"search_nodes_expanded_total",
			metric.WithDescription("Nodes expanded across all runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nodesGenerated, err = meter.Int64Counter(
			"search_nodes_generated_total",
			metric.WithDescription("Nodes generated across all runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nodesReopened, err = meter.Int64Counter(
			"search_nodes_reopened_total",
			metric.WithDescription("Nodes reopened across all runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		solutionCost, err = meter.Float64Histogram(
			"search_solution_cost",
			metric.WithDescription("Cost of solutions found"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startRunSpan starts the span for one Run call.
func startRunSpan(ctx context.Context, algorithm, domainName string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "search.Run",
		trace.WithAttributes(
			attribute.String("search.algorithm", algorithm),
			attribute.String("search.domain", domainName),
		),
	)
}

// endRunSpan records the outcome on the span and ends it.
func endRunSpan(span trace.Span, res *Result, err error) {
	if res != nil {
		span.SetAttributes(
			attribute.String("search.status", res.Status.String()),
			attribute.Bool("search.solved", res.Solved),
			attribute.Int64("search.expanded", res.Stats.Expanded),
			attribute.Int64("search.generated", res.Stats.Generated),
			attribute.Int64("search.reopened", res.Stats.Reopened),
		)
		if best := res.Best(); best != nil {
			span.SetAttributes(attribute.Float64("search.cost", best.Cost))
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// recordRunMetrics records metrics for one Run call. delta holds the
// counters accumulated during the call only.
func recordRunMetrics(ctx context.Context, res *Result, delta Stats) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("algorithm", res.Algorithm),
		attribute.String("status", res.Status.String()),
	)
	runLatency.Record(ctx, res.WallTime.Seconds(), attrs)
	runTotal.Add(ctx, 1, attrs)

	algo := metric.WithAttributes(attribute.String("algorithm", res.Algorithm))
	nodesExpanded.Add(ctx, delta.Expanded, algo)
	nodesGenerated.Add(ctx, delta.Generated, algo)
	nodesReopened.Add(ctx, delta.Reopened, algo)
	if best := res.Best(); best != nil && res.Status == StatusGoalFound {
		solutionCost.Record(ctx, best.Cost, algo)
	}
}

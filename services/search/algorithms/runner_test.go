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
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSearch/services/search/domain"
	"github.com/AleutianAI/AleutianSearch/services/search/domains/graph"
	"github.com/AleutianAI/AleutianSearch/services/search/engine"
)

func TestRunner_IndependentJobs(t *testing.T) {
	var jobs []Job
	var optimal []float64
	for i := 0; i < 12; i++ {
		seed := int64(i)
		g, err := graph.Random(rand.New(rand.NewSource(seed)), 40, 60, 10, 0.8)
		require.NoError(t, err)
		optimal = append(optimal, g.OptimalCost(0))

		name := Names()[i%len(Names())]
		jobs = append(jobs, Job{
			ID:        fmt.Sprintf("job-%d", i),
			Algorithm: name,
			Instance:  g.Name(),
			Config:    weighted(1),
			NewDomain: func() (domain.Domain, error) {
				return graph.Random(rand.New(rand.NewSource(seed)), 40, 60, 10, 0.8)
			},
		})
	}

	reports, err := NewRunner(4).Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, reports, len(jobs))

	for i, rep := range reports {
		require.NoError(t, rep.Err, rep.Job.ID)
		assert.Equal(t, jobs[i].ID, rep.Job.ID)
		require.True(t, rep.Result.Solved, rep.Job.ID)
		if rep.Job.Algorithm == "pts" {
			continue
		}
		assert.InDelta(t, optimal[i], rep.Result.Best().Cost, eps, rep.Job.ID)
	}
}

func TestRunner_FailedJobDoesNotStopBatch(t *testing.T) {
	errBoom := errors.New("boom")
	jobs := []Job{
		{ID: "unknown", Algorithm: "nope", NewDomain: func() (domain.Domain, error) { return chainGraph(t), nil }},
		{ID: "no-domain", Algorithm: "astar"},
		{ID: "domain-error", Algorithm: "astar", NewDomain: func() (domain.Domain, error) { return nil, errBoom }},
		{ID: "ok", Algorithm: "astar", NewDomain: func() (domain.Domain, error) { return chainGraph(t), nil }},
	}

	reports, err := NewRunner(0).Run(context.Background(), jobs)
	require.NoError(t, err)

	assert.ErrorIs(t, reports[0].Err, ErrUnknownAlgorithm)
	assert.ErrorIs(t, reports[1].Err, engine.ErrNilDomain)
	assert.ErrorIs(t, reports[2].Err, errBoom)
	require.NoError(t, reports[3].Err)
	assert.InDelta(t, 6.0, reports[3].Result.Best().Cost, eps)
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []Job{{ID: "a", Algorithm: "astar", NewDomain: func() (domain.Domain, error) { return chainGraph(t), nil }}}
	reports, err := NewRunner(1).Run(ctx, jobs)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, reports[0].Err, context.Canceled)
}

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
	"errors"
	"fmt"
	"time"
)

// Budget errors.
var (
	ErrTimeLimitExceeded = errors.New("time limit exceeded")
	ErrNodeLimitExceeded = errors.New("node limit exceeded")
)

// Budget tracks the wall-clock and generated-node limits of one search.
//
// Both limits are polled once per outer loop iteration.
//
// Thread Safety: Not safe for concurrent use. A budget belongs to one engine.
type Budget struct {
	timeLimit time.Duration
	nodeLimit int64
	startTime time.Time

	exhaustedBy string
}

// NewBudget creates a budget. Zero limits are disabled.
func NewBudget(timeLimit time.Duration, nodeLimit int64) *Budget {
	return &Budget{timeLimit: timeLimit, nodeLimit: nodeLimit, startTime: time.Now()}
}

// Restart resets the clock. The node limit applies to the cumulative
// generated count and is not reset.
func (b *Budget) Restart() {
	b.startTime = time.Now()
	b.exhaustedBy = ""
}

// Elapsed returns the time since the budget was (re)started.
func (b *Budget) Elapsed() time.Duration { return time.Since(b.startTime) }

// NodeLimit returns the generated-node limit, 0 when unlimited.
func (b *Budget) NodeLimit() int64 { return b.nodeLimit }

// Check returns a budget error if any limit is exceeded.
//
// Inputs:
//
//	ctx - Cancellation or deadline counts as the time limit.
//	generated - Nodes generated so far.
func (b *Budget) Check(ctx context.Context, generated int64) error {
	if err := ctx.Err(); err != nil {
		b.exhaustedBy = "context"
		return fmt.Errorf("%w: %w", ErrTimeLimitExceeded, err)
	}
	if b.timeLimit > 0 && time.Since(b.startTime) >= b.timeLimit {
		b.exhaustedBy = "time"
		return ErrTimeLimitExceeded
	}
	if b.nodeLimit > 0 && generated >= b.nodeLimit {
		b.exhaustedBy = "nodes"
		return ErrNodeLimitExceeded
	}
	return nil
}

// ExhaustedBy names the limit that was hit, or "".
func (b *Budget) ExhaustedBy() string { return b.exhaustedBy }

// Report returns a one-line summary.
func (b *Budget) Report(generated int64) string {
	return fmt.Sprintf("elapsed=%v/%v generated=%d/%d exhausted_by=%q",
		b.Elapsed().Round(time.Millisecond), b.timeLimit, generated, b.nodeLimit, b.exhaustedBy)
}

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

	"github.com/AleutianAI/AleutianSearch/services/search/domain"
	"github.com/AleutianAI/AleutianSearch/services/search/engine"
)

// Algorithm is a best-first search variant.
//
// Solve runs one search session on d. Implementations build a fresh engine
// per call and hold no search state between calls, so one Algorithm value
// may be shared by concurrent Solve calls on different domains.
type Algorithm interface {
	Name() string
	Properties() Properties
	Solve(ctx context.Context, d domain.Domain) (*engine.Result, error)
}

// Properties describe the guarantees of an algorithm.
type Properties struct {
	// Optimal is true when the first solution is optimal under an
	// admissible heuristic with reopening.
	Optimal bool

	// Bound is the suboptimality factor of the returned solution.
	Bound float64

	// Anytime is true when the algorithm keeps improving its incumbent.
	Anytime bool
}

// Option configures an algorithm.
type Option func(*base)

// WithLogger sets the logger passed to engines.
func WithLogger(l *slog.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithHooks installs engine hooks on every engine the algorithm builds.
func WithHooks(h engine.Hooks) Option {
	return func(b *base) { b.hooks = h }
}

// base is shared by every algorithm.
type base struct {
	name   string
	cfg    *engine.Config
	logger *slog.Logger
	hooks  engine.Hooks
}

func newBase(name string, cfg *engine.Config, opts []Option) (base, error) {
	if cfg == nil {
		cfg = engine.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return base{}, fmt.Errorf("%s: %w", name, err)
	}
	b := base{
		name:   name,
		cfg:    cfg.Clone(),
		logger: slog.Default().With(slog.String("component", "search."+name)),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b, nil
}

// Name returns the registry name.
func (b *base) Name() string { return b.name }

// Config returns a copy of the configuration.
func (b *base) Config() *engine.Config { return b.cfg.Clone() }

func (b *base) newEngine(d domain.Domain, f engine.Frontier) (*engine.Engine, error) {
	return engine.New(d, f, b.cfg,
		engine.WithAlgorithm(b.name),
		engine.WithLogger(b.logger),
		engine.WithHooks(b.hooks),
	)
}

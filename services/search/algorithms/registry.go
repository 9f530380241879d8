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
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianSearch/services/search/engine"
)

// ErrUnknownAlgorithm is returned by New for an unregistered name.
var ErrUnknownAlgorithm = errors.New("unknown algorithm")

type constructor func(cfg *engine.Config, opts ...Option) (Algorithm, error)

var registry = map[string]constructor{
	"astar": func(cfg *engine.Config, opts ...Option) (Algorithm, error) {
		return NewAStar(cfg, opts...)
	},
	"wastar": func(cfg *engine.Config, opts ...Option) (Algorithm, error) {
		return NewWAStar(cfg, opts...)
	},
	"pts": func(cfg *engine.Config, opts ...Option) (Algorithm, error) {
		return NewPotentialSearch(cfg, opts...)
	},
	"awastar": func(cfg *engine.Config, opts ...Option) (Algorithm, error) {
		return NewAWAStar(cfg, opts...)
	},
	"apts": func(cfg *engine.Config, opts ...Option) (Algorithm, error) {
		return NewAPTS(cfg, opts...)
	},
	"ees": func(cfg *engine.Config, opts ...Option) (Algorithm, error) {
		return NewEES(cfg, opts...)
	},
	"dps": func(cfg *engine.Config, opts ...Option) (Algorithm, error) {
		return NewDPS(cfg, opts...)
	},
}

// New builds a registered algorithm by name.
//
// Inputs:
//
//	name - One of Names(), case-insensitive.
//	cfg - Configuration, validated before use. nil uses defaults.
//
// Outputs:
//
//	Algorithm - The algorithm.
//	error - ErrUnknownAlgorithm or a configuration error.
func New(name string, cfg *engine.Config, opts ...Option) (Algorithm, error) {
	ctor, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownAlgorithm, name, strings.Join(Names(), ", "))
	}
	return ctor(cfg, opts...)
}

// Names returns the registered algorithm names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

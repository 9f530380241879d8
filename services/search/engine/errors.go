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
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrInvalidConfig is wrapped by every configuration error.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownOption indicates an unrecognised option name.
	ErrUnknownOption = errors.New("unknown option")

	// ErrNilDomain indicates a search was started without a domain.
	ErrNilDomain = errors.New("domain must not be nil")

	// ErrNilFrontier indicates a search was started without a frontier.
	ErrNilFrontier = errors.New("frontier must not be nil")

	// ErrHeuristicInconsistency indicates a heuristic declared consistent
	// produced a non-improving weighted cost on a cheaper duplicate.
	ErrHeuristicInconsistency = errors.New("heuristic inconsistency")

	// ErrInvariantViolation indicates the engine detected corrupt state in
	// strict validation mode.
	ErrInvariantViolation = errors.New("search invariant violated")
)

// ConfigError describes an invalid option.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "invalid configuration"
	if e.Field != "" {
		msg += " " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

func (e *ConfigError) Unwrap() error { return e.Err }

// SearchError wraps a hard error raised during a search.
type SearchError struct {
	Algorithm string
	Operation string
	Err       error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Algorithm, e.Operation, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// Diagnostic is a structured report of a heuristic inconsistency.
type Diagnostic struct {
	Key         string  `json:"key"`
	OldG        float64 `json:"old_g"`
	NewG        float64 `json:"new_g"`
	OldEval     float64 `json:"old_eval"`
	NewEval     float64 `json:"new_eval"`
	H           float64 `json:"h"`
	Consistent  bool    `json:"consistent"`
	Description string  `json:"description"`
}

// InconsistencyError is returned in strict mode.
type InconsistencyError struct {
	Diagnostic Diagnostic
}

func (e *InconsistencyError) Error() string {
	d := e.Diagnostic
	return fmt.Sprintf("heuristic inconsistency at %s: g %.6g -> %.6g but evaluation %.6g -> %.6g",
		d.Key, d.OldG, d.NewG, d.OldEval, d.NewEval)
}

func (e *InconsistencyError) Unwrap() error { return ErrHeuristicInconsistency }

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks user-provided names before they become part of
// database keys.
//
// Run records are stored under keys built from the algorithm name and the
// run id. A name containing the key separator, or an id that is not a
// UUID, could read or overwrite unrelated records.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidName is wrapped by every validation failure.
var ErrInvalidName = errors.New("invalid name")

// segmentPattern matches a key segment: a lowercase letter followed by up
// to 31 lowercase letters, digits, dots, underscores or hyphens.
var segmentPattern = regexp.MustCompile(`^[a-z][a-z0-9._\-]{0,31}$`)

// ValidateKeySegment validates a name used as one segment of a key.
//
// Example:
//
//	if err := validation.ValidateKeySegment(rec.Algorithm); err != nil {
//	    return "", err
//	}
func ValidateKeySegment(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if !segmentPattern.MatchString(name) {
		return fmt.Errorf("%w: %q (must be 1-32 lowercase alphanumeric chars, dots, underscores or hyphens)", ErrInvalidName, name)
	}
	return nil
}

// SanitizeKeySegment lower-cases and trims name, then validates it.
func SanitizeKeySegment(name string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	if err := ValidateKeySegment(s); err != nil {
		return "", err
	}
	return s, nil
}

// ValidateRunID validates a run id. Ids are UUIDs in canonical form.
func ValidateRunID(id string) error {
	u, err := uuid.Parse(id)
	if err != nil || u.String() != strings.ToLower(id) {
		return fmt.Errorf("%w: run id %q is not a canonical UUID", ErrInvalidName, id)
	}
	return nil
}

// ValidateRunIDs validates several ids and lists every invalid one.
func ValidateRunIDs(ids []string) error {
	var invalid []string
	for _, id := range ids {
		if ValidateRunID(id) != nil {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: run ids %v", ErrInvalidName, invalid)
	}
	return nil
}

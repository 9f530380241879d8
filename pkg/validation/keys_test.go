// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateKeySegment(t *testing.T) {
	tests := []struct {
		name    string
		segment string
		wantErr bool
	}{
		{"simple", "astar", false},
		{"with digit", "a2star", false},
		{"with hyphen", "new-ar", false},
		{"with dot", "tiles.4x4", false},
		{"max length", "abcdefghijklmnopqrstuvwxyz012345", false},

		{"empty", "", true},
		{"separator", "a/b", true},
		{"traversal", "../idx", true},
		{"uppercase", "AStar", true},
		{"too long", "abcdefghijklmnopqrstuvwxyz0123456", true},
		{"starts with digit", "1astar", true},
		{"space", "a star", true},
		{"newline", "astar\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKeySegment(tt.segment)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeKeySegment(t *testing.T) {
	got, err := SanitizeKeySegment("  WAStar ")
	require.NoError(t, err)
	assert.Equal(t, "wastar", got)

	_, err = SanitizeKeySegment("w/a")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestValidateRunID(t *testing.T) {
	id := uuid.Must(uuid.NewV7()).String()
	assert.NoError(t, ValidateRunID(id))

	for _, bad := range []string{"", "nope", "../" + id, id + "/x", "{" + id + "}"} {
		assert.ErrorIs(t, ValidateRunID(bad), ErrInvalidName, bad)
	}
}

func TestValidateRunIDs(t *testing.T) {
	good := uuid.Must(uuid.NewV7()).String()
	assert.NoError(t, ValidateRunIDs([]string{good}))

	err := ValidateRunIDs([]string{good, "x", "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[x y]")
}

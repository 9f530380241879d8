// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Icon Tests
// =============================================================================

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconPending} {
		assert.Contains(t, icon.Render(), string(icon))
	}
	assert.Equal(t, "→", IconArrow.Render())
}

// =============================================================================
// Mode Tests
// =============================================================================

func TestDetectMode_BufferIsPlain(t *testing.T) {
	assert.Equal(t, ModePlain, DetectMode(&bytes.Buffer{}))
}

func TestParseMode(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, ModeRich, ParseMode("RICH", &buf))
	assert.Equal(t, ModePlain, ParseMode("plain", &buf))
	assert.Equal(t, ModePlain, ParseMode("auto", &buf))
	assert.Equal(t, ModePlain, ParseMode("", &buf))
}

// =============================================================================
// Printer Tests
// =============================================================================

func TestPrinter_PlainMessages(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModePlain)
	p.Title("ignored")
	p.Success("solved")
	p.Warning("slow")
	p.Error("failed")
	p.Info("note")

	assert.Equal(t, "OK: solved\nWARN: slow\nERROR: failed\nnote\n", buf.String())
}

func TestPrinter_RichMessages(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModeRich)
	p.Title("Result")
	p.Success("solved")
	p.Error("failed")

	out := buf.String()
	assert.Contains(t, out, "Result")
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "✗")
}

func TestPrinter_KeyValues(t *testing.T) {
	kvs := []KeyValue{{"status", "goal-found"}, {"cost", "6"}}

	t.Run("plain", func(t *testing.T) {
		var buf bytes.Buffer
		NewPrinter(&buf, ModePlain).KeyValues("Run", kvs)
		assert.Equal(t, "status\tgoal-found\ncost\t6\n", buf.String())
	})

	t.Run("rich", func(t *testing.T) {
		var buf bytes.Buffer
		NewPrinter(&buf, ModeRich).KeyValues("Run", kvs)
		out := buf.String()
		assert.Contains(t, out, "Run")
		assert.Contains(t, out, "goal-found")
		assert.Contains(t, out, "╭")
	})
}

func TestPrinter_Table(t *testing.T) {
	headers := []string{"algorithm", "cost"}
	rows := [][]string{{"astar", "6"}, {"wastar", "7.5"}}

	t.Run("plain", func(t *testing.T) {
		var buf bytes.Buffer
		NewPrinter(&buf, ModePlain).Table(headers, rows)
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "algorithm\tcost", lines[0])
		assert.Equal(t, "wastar\t7.5", lines[2])
	})

	t.Run("rich", func(t *testing.T) {
		var buf bytes.Buffer
		NewPrinter(&buf, ModeRich).Table(headers, rows)
		out := buf.String()
		for _, s := range []string{"algorithm", "astar", "wastar", "7.5"} {
			assert.Contains(t, out, s)
		}
	})
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"trace", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownLevel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}

func TestNew_FormatSelection(t *testing.T) {
	t.Run("auto on a buffer is json", func(t *testing.T) {
		var buf bytes.Buffer
		New(Config{Writer: &buf, Service: "hsearch"}).Slog().Info("hello", slog.Int("n", 3))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "hello", entry["msg"])
		assert.Equal(t, "hsearch", entry["service"])
		assert.EqualValues(t, 3, entry["n"])
	})

	t.Run("forced text", func(t *testing.T) {
		var buf bytes.Buffer
		New(Config{Writer: &buf, Format: FormatText}).Slog().Info("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	})
}

func TestNew_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Writer: &buf, Level: LevelWarn, Format: FormatText}).Slog()
	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_FileAndConsole(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l := New(Config{Writer: &buf, LogDir: dir, Service: "bench", Format: FormatText})
	l.Slog().Info("batch finished", slog.Int("jobs", 4))
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	matches, err := filepath.Glob(filepath.Join(dir, "bench_*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"batch finished"`)
	assert.Contains(t, buf.String(), "batch finished")
}

func TestNew_QuietDiscardsConsole(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Writer: &buf, Quiet: true}).Slog().Error("nothing")
	assert.Empty(t, buf.String())
}

func TestNew_BadLogDirWarns(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	var buf bytes.Buffer
	New(Config{Writer: &buf, LogDir: file, Format: FormatText})
	assert.True(t, strings.Contains(buf.String(), "file logging disabled"))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".hsearch/logs"), expandPath("~/.hsearch/logs"))
	assert.Equal(t, "/var/log", expandPath("/var/log"))
}

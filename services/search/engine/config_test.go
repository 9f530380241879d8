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
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1.0, cfg.Weight)
	assert.True(t, cfg.Reopen)
	assert.True(t, math.IsInf(cfg.MaxCost, 1))
	assert.Equal(t, RerunNone, cfg.Rerun)
	assert.False(t, cfg.Strict())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"weight below one", func(c *Config) { c.Weight = 0.9 }, "weight"},
		{"zero max cost", func(c *Config) { c.MaxCost = 0 }, "max-cost"},
		{"nan max cost", func(c *Config) { c.MaxCost = math.NaN() }, "max-cost"},
		{"unknown rerun policy", func(c *Config) { c.Rerun = "sometimes" }, "rerun-type-if-not-found"},
		{"negative reorder interval", func(c *Config) { c.ReorderInterval = -1 }, "fr"},
		{"unknown validation mode", func(c *Config) { c.Validation = "lenient" }, "validation"},
		{"negative memory limit", func(c *Config) { c.MemoryLimitBytes = -1 }, "memory-limit-bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestConfig_Set(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		check func(t *testing.T, c *Config)
	}{
		{"weight", "weight", "2.5", func(t *testing.T, c *Config) { assert.Equal(t, 2.5, c.Weight) }},
		{"upper case name", "FR", "100", func(t *testing.T, c *Config) { assert.Equal(t, 100, c.ReorderInterval) }},
		{"fr infinity disables throttling", "fr", "inf", func(t *testing.T, c *Config) { assert.Zero(t, c.ReorderInterval) }},
		{"underscores", "max_cost", "12", func(t *testing.T, c *Config) { assert.Equal(t, 12.0, c.MaxCost) }},
		{"infinite max cost", "max-cost", "inf", func(t *testing.T, c *Config) { assert.True(t, math.IsInf(c.MaxCost, 1)) }},
		{"reopen", "reopen", "false", func(t *testing.T, c *Config) { assert.False(t, c.Reopen) }},
		{"rerun", "rerun-type-if-not-found", "continue-ar", func(t *testing.T, c *Config) {
			assert.Equal(t, RerunContinueAR, c.Rerun)
		}},
		{"time limit", "time-limit", "1500ms", func(t *testing.T, c *Config) {
			assert.Equal(t, 1500*time.Millisecond, c.TimeLimit)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			require.NoError(t, cfg.Set(tt.key, tt.value))
			require.NoError(t, cfg.Validate())
			tt.check(t, cfg)
		})
	}
}

func TestConfig_SetErrors(t *testing.T) {
	cfg := DefaultConfig()

	err := cfg.Set("beam-width", "3")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownOption)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	err = cfg.Set("weight", "heavy")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, 1.0, cfg.Weight, "failed set leaves the value alone")
}

func TestConfig_YAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weight = 3
	cfg.Reopen = false
	cfg.Rerun = RerunNewAR
	cfg.TimeLimit = 2 * time.Second

	data, err := cfg.MarshalYAMLBytes()
	require.NoError(t, err)

	got := DefaultConfig()
	require.NoError(t, got.UnmarshalYAMLBytes(data))
	assert.Equal(t, cfg, got)
}

func TestConfig_YAMLRejectsUnknownKeys(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.UnmarshalYAMLBytes([]byte("weight: 2\nbeam: 4\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "search.yaml")
	require.NoError(t, os.WriteFile(path, []byte("weight: 2\nbpmx: true\nfr: 50\n"), 0o600))

	t.Setenv("HSEARCH_WEIGHT", "4")
	t.Setenv("HSEARCH_MAX_COST", "99")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4.0, cfg.Weight)
	assert.Equal(t, 99.0, cfg.MaxCost)
	assert.True(t, cfg.BPMX)
	assert.Equal(t, 50, cfg.ReorderInterval)
}

func TestLoadConfig_InvalidEnv(t *testing.T) {
	t.Setenv("HSEARCH_WEIGHT", "0.5")
	_, err := LoadConfig("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestOptionNames_Sorted(t *testing.T) {
	names := OptionNames()
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "rerun-type-if-not-found")
	assert.Contains(t, names, "fr")
}

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
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// RerunPolicy selects what potential search does when it runs out of
// nodes without a solution while reopening is disabled.
type RerunPolicy string

const (
	// RerunNone stops the search.
	RerunNone RerunPolicy = "none"

	// RerunNewAR restarts from scratch with reopening enabled.
	RerunNewAR RerunPolicy = "new-ar"

	// RerunContinueAR pushes the inconsistency list back to OPEN and
	// continues with reopening enabled.
	RerunContinueAR RerunPolicy = "continue-ar"
)

// ValidationMode selects how heuristic inconsistencies are handled.
type ValidationMode string

const (
	// ValidationTolerant records a diagnostic and skips the update.
	ValidationTolerant ValidationMode = "tolerant"

	// ValidationStrict aborts the search with an InconsistencyError and
	// checks engine invariants after every expansion.
	ValidationStrict ValidationMode = "strict"
)

// EnvPrefix prefixes environment overrides, e.g. HSEARCH_WEIGHT.
const EnvPrefix = "HSEARCH_"

// Config configures one algorithm instance.
//
// Description:
//
//	Config is built once per algorithm instance, validated eagerly and
//	never shared as mutable state between searches. Options can be set
//	from YAML, from HSEARCH_* environment variables, or by name with Set.
type Config struct {
	// Weight scales h in the weighted evaluation g + Weight*h.
	// 1.0 gives plain A*.
	Weight float64 `json:"weight" yaml:"weight" validate:"gte=1"`

	// Reopen reinserts closed nodes into OPEN when a cheaper path is found.
	Reopen bool `json:"reopen" yaml:"reopen"`

	// MaxCost prunes nodes whose f exceeds it. +Inf by default.
	MaxCost float64 `json:"max_cost" yaml:"max_cost" validate:"gt=0"`

	// BPMX enables bidirectional path-max propagation.
	BPMX bool `json:"bpmx" yaml:"bpmx"`

	// Rerun is only meaningful with Reopen disabled.
	Rerun RerunPolicy `json:"rerun_type_if_not_found" yaml:"rerun_type_if_not_found" validate:"oneof=none new-ar continue-ar"`

	// ReorderInterval throttles OPEN reordering to at most once per this
	// many expansions. 0 disables throttling.
	ReorderInterval int `json:"fr" yaml:"fr" validate:"gte=0"`

	// NodeLimit caps generated nodes in addition to the domain limit.
	NodeLimit int64 `json:"node_limit" yaml:"node_limit" validate:"gte=0"`

	// TimeLimit bounds the wall-clock time of a search, measured from its
	// first Run and covering every anytime resumption. 0 disables it.
	TimeLimit time.Duration `json:"time_limit" yaml:"time_limit" validate:"gte=0"`

	// MemoryLimitBytes bounds the node arena. 0 disables it.
	MemoryLimitBytes int64 `json:"memory_limit_bytes" yaml:"memory_limit_bytes" validate:"gte=0"`

	// Validation selects tolerant or strict consistency handling.
	Validation ValidationMode `json:"validation" yaml:"validation" validate:"oneof=tolerant strict"`

	// ProgressInterval is the minimum time between progress logs.
	ProgressInterval time.Duration `json:"progress_interval" yaml:"progress_interval" validate:"gte=0"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Weight:           1.0,
		Reopen:           true,
		MaxCost:          math.Inf(1),
		BPMX:             false,
		Rerun:            RerunNone,
		ReorderInterval:  0,
		Validation:       ValidationTolerant,
		ProgressInterval: 5 * time.Second,
	}
}

// Clone returns a copy of c.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// Strict reports whether strict validation is enabled.
func (c *Config) Strict() bool { return c.Validation == ValidationStrict }

var configValidate = validator.New()

// Validate checks every option.
//
// Outputs:
//
//	error - A *ConfigError wrapping ErrInvalidConfig, or nil.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ConfigError{
				Field:  optionNameForField(fe.StructField()),
				Reason: fmt.Sprintf("value %v fails %s=%s", fe.Value(), fe.Tag(), fe.Param()),
			}
		}
		return &ConfigError{Reason: err.Error()}
	}
	if math.IsNaN(c.MaxCost) {
		return &ConfigError{Field: "max-cost", Reason: "must be a number"}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Named options
// -----------------------------------------------------------------------------

type option struct {
	field string
	set   func(c *Config, v string) error
}

var options = map[string]option{
	"weight": {"Weight", func(c *Config, v string) (err error) {
		c.Weight, err = strconv.ParseFloat(v, 64)
		return err
	}},
	"reopen": {"Reopen", func(c *Config, v string) (err error) {
		c.Reopen, err = strconv.ParseBool(v)
		return err
	}},
	"max-cost": {"MaxCost", func(c *Config, v string) (err error) {
		c.MaxCost, err = parseCost(v)
		return err
	}},
	"bpmx": {"BPMX", func(c *Config, v string) (err error) {
		c.BPMX, err = strconv.ParseBool(v)
		return err
	}},
	"rerun-type-if-not-found": {"Rerun", func(c *Config, v string) error {
		c.Rerun = RerunPolicy(v)
		return nil
	}},
	"fr": {"ReorderInterval", func(c *Config, v string) (err error) {
		if strings.EqualFold(v, "inf") || strings.EqualFold(v, "infinity") {
			c.ReorderInterval = 0
			return nil
		}
		c.ReorderInterval, err = strconv.Atoi(v)
		return err
	}},
	"node-limit": {"NodeLimit", func(c *Config, v string) (err error) {
		c.NodeLimit, err = strconv.ParseInt(v, 10, 64)
		return err
	}},
	"time-limit": {"TimeLimit", func(c *Config, v string) (err error) {
		c.TimeLimit, err = time.ParseDuration(v)
		return err
	}},
	"memory-limit-bytes": {"MemoryLimitBytes", func(c *Config, v string) (err error) {
		c.MemoryLimitBytes, err = strconv.ParseInt(v, 10, 64)
		return err
	}},
	"validation": {"Validation", func(c *Config, v string) error {
		c.Validation = ValidationMode(v)
		return nil
	}},
	"progress-interval": {"ProgressInterval", func(c *Config, v string) (err error) {
		c.ProgressInterval, err = time.ParseDuration(v)
		return err
	}},
}

func parseCost(v string) (float64, error) {
	switch strings.ToLower(v) {
	case "inf", "+inf", "infinity", ".inf":
		return math.Inf(1), nil
	}
	return strconv.ParseFloat(v, 64)
}

func optionNameForField(field string) string {
	for name, o := range options {
		if o.field == field {
			return name
		}
	}
	return field
}

// OptionNames returns the recognised option names, sorted.
func OptionNames() []string {
	names := make([]string, 0, len(options))
	for name := range options {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set assigns an option by name. Names are case-insensitive and accept
// underscores in place of dashes, so "FR" and "max_cost" both work.
//
// Set does not validate the resulting config; call Validate afterwards.
func (c *Config) Set(name, value string) error {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	o, ok := options[key]
	if !ok {
		return &ConfigError{Field: name, Reason: "unknown option", Err: ErrUnknownOption}
	}
	if err := o.set(c, strings.TrimSpace(value)); err != nil {
		return &ConfigError{Field: key, Reason: fmt.Sprintf("cannot parse %q", value), Err: err}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Loading
// -----------------------------------------------------------------------------

// LoadConfig loads configuration with precedence env > file > defaults.
//
// Inputs:
//
//	path - YAML file; empty skips the file. Unknown keys are rejected.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - Non-nil if the file cannot be read or parsed, or the result
//	        is invalid.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := cfg.UnmarshalYAMLBytes(data); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UnmarshalYAMLBytes decodes YAML into c, rejecting unknown keys.
func (c *Config) UnmarshalYAMLBytes(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return &ConfigError{Reason: "parse yaml", Err: err}
	}
	return nil
}

// ApplyEnv overrides options from HSEARCH_<OPTION> variables, where OPTION
// is the option name upper-cased with dashes as underscores.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, name := range OptionNames() {
		env := EnvPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		if v, ok := lookup(env); ok && v != "" {
			if err := c.Set(name, v); err != nil {
				return fmt.Errorf("%s: %w", env, err)
			}
		}
	}
	return nil
}

// MarshalYAMLBytes renders the effective configuration.
func (c *Config) MarshalYAMLBytes() ([]byte, error) {
	return yaml.Marshal(c)
}

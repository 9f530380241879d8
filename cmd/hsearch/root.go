// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSearch/pkg/logging"
	"github.com/AleutianAI/AleutianSearch/pkg/ux"
	"github.com/AleutianAI/AleutianSearch/services/search/engine"
	"github.com/AleutianAI/AleutianSearch/services/search/storage"
)

// ErrBadOverride is returned for a -o value without "=".
var ErrBadOverride = errors.New("option override must be name=value")

// app carries global flags and the resources opened for one invocation.
type app struct {
	configPath string
	logLevel   string
	logJSON    bool
	logDir     string
	dbPath     string
	output     string
	overrides  []string

	cfg     *engine.Config
	logger  *logging.Logger
	db      *storage.DB
	printer *ux.Printer
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "hsearch",
		Short: "Heuristic best-first search: A*, weighted A*, potential, anytime, EES and DPS",
		Long: `hsearch solves sliding-tile puzzles and explicit graphs with a family of
best-first search algorithms, benchmarks them concurrently and keeps a
history of runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", os.Getenv("HSEARCH_CONFIG"), "YAML search configuration file")
	pf.StringVar(&a.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.BoolVar(&a.logJSON, "log-json", false, "Force JSON logs (default: JSON unless stderr is a terminal)")
	pf.StringVar(&a.logDir, "log-dir", "", "Also write JSON logs to a daily file in this directory")
	pf.StringVar(&a.dbPath, "db", defaultDBPath(), "Run history database directory")
	pf.StringVar(&a.output, "output", "auto", "Output style: rich, plain or auto")
	pf.StringArrayVarP(&a.overrides, "option", "o", nil, "Search option override name=value (repeatable)")

	root.AddCommand(newSolveCmd(a))
	root.AddCommand(newBenchCmd(a))
	root.AddCommand(newRunsCmd(a))
	root.AddCommand(newConfigCmd(a))
	root.AddCommand(newServeCmd(a))
	return root
}

func defaultDBPath() string {
	if v := os.Getenv("HSEARCH_DB"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hsearch/runs"
	}
	return filepath.Join(home, ".hsearch", "runs")
}

// setup builds the logger, printer and effective configuration.
func (a *app) setup(cmd *cobra.Command) error {
	level, err := logging.ParseLevel(a.logLevel)
	if err != nil {
		return err
	}
	format := logging.FormatAuto
	if a.logJSON {
		format = logging.FormatJSON
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		Format:  format,
		LogDir:  a.logDir,
		Service: "hsearch",
		Writer:  cmd.ErrOrStderr(),
	})
	a.logger.SetDefault()
	a.printer = ux.NewPrinter(cmd.OutOrStdout(), ux.ParseMode(a.output, cmd.OutOrStdout()))

	a.cfg, err = a.loadConfig(a.configPath)
	return err
}

// loadConfig reads path (env over file over defaults) and applies -o
// overrides last.
func (a *app) loadConfig(path string) (*engine.Config, error) {
	cfg, err := engine.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	for _, o := range a.overrides {
		name, value, ok := strings.Cut(o, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrBadOverride, o)
		}
		if err := cfg.Set(strings.TrimSpace(name), strings.TrimSpace(value)); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *app) log() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger.Slog()
}

// store opens the run database on first use.
func (a *app) store() (*storage.RunStore, error) {
	if a.db == nil {
		cfg := storage.DefaultConfig(a.dbPath)
		cfg.Logger = a.log().With(slog.String("component", "badger"))
		db, err := storage.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open run database: %w", err)
		}
		a.db = db
	}
	return storage.NewRunStore(a.db), nil
}

func (a *app) close() error {
	var errs []error
	if a.db != nil {
		errs = append(errs, a.db.Close())
		a.db = nil
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
	}
	return errors.Join(errs...)
}

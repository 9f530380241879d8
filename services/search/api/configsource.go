// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/AleutianSearch/services/search/engine"
)

var (
	// ErrNoConfigFile is returned by Watch when the source has no file.
	ErrNoConfigFile = errors.New("config source has no file to watch")

	// ErrAlreadyWatching is returned by a second call to Watch.
	ErrAlreadyWatching = errors.New("config source is already watching")
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 100 * time.Millisecond

// Loader reads the configuration stored at path.
type Loader func(path string) (*engine.Config, error)

// ConfigSource holds the configuration used by new searches and reloads
// it when its file changes.
//
// # Description
//
// Every request takes a copy of the current configuration, so a reload
// never changes a search in progress. A reload that fails to load or
// validate is logged and the previous configuration stays in effect.
//
// # Thread Safety
//
// Safe for concurrent use.
type ConfigSource struct {
	path     string
	load     Loader
	logger   *slog.Logger
	debounce time.Duration

	current atomic.Pointer[engine.Config]
	reloads atomic.Int64

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewConfigSource loads path once and returns a source serving it.
//
// Inputs:
//
//	path - YAML configuration file. Empty serves defaults and cannot be watched.
//	load - Reads path. nil uses engine.LoadConfig.
//	logger - Receives reload events. nil uses slog.Default().
//
// Outputs:
//
//	*ConfigSource - The source. Call Close when done.
//	error - The initial load failed.
func NewConfigSource(path string, load Loader, logger *slog.Logger) (*ConfigSource, error) {
	if load == nil {
		load = engine.LoadConfig
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	s := &ConfigSource{
		path:     path,
		load:     load,
		logger:   logger.With(slog.String("component", "config")),
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}
	s.current.Store(cfg)
	return s, nil
}

// StaticConfig returns a source that always serves cfg.
func StaticConfig(cfg *engine.Config) *ConfigSource {
	if cfg == nil {
		cfg = engine.DefaultConfig()
	}
	s := &ConfigSource{
		load:   func(string) (*engine.Config, error) { return cfg.Clone(), nil },
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	s.current.Store(cfg.Clone())
	return s
}

// Current returns a copy of the configuration in effect.
func (s *ConfigSource) Current() *engine.Config {
	return s.current.Load().Clone()
}

// Path returns the watched file.
func (s *ConfigSource) Path() string { return s.path }

// Reloads returns how many reloads have succeeded.
func (s *ConfigSource) Reloads() int64 { return s.reloads.Load() }

// Reload reads the file again. On failure the previous configuration is
// kept and the error returned.
func (s *ConfigSource) Reload() error {
	cfg, err := s.load(s.path)
	if err != nil {
		s.logger.Warn("config reload rejected, keeping previous configuration",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return err
	}
	s.current.Store(cfg)
	n := s.reloads.Add(1)
	s.logger.Info("config reloaded",
		slog.String("path", s.path),
		slog.Int64("reloads", n),
		slog.Float64("weight", cfg.Weight),
	)
	return nil
}

// Watch reloads the configuration whenever its file is written or
// replaced. The parent directory is watched so that editors which save by
// renaming a temporary file are seen too.
func (s *ConfigSource) Watch() error {
	if s.path == "" {
		return ErrNoConfigFile
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return ErrAlreadyWatching
	}

	target, err := filepath.Abs(s.path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", s.path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(target)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	s.watcher = w

	s.wg.Add(1)
	go s.watchLoop(w, target)
	s.logger.Info("watching config", slog.String("path", target))
	return nil
}

// watchLoop collects events for target and reloads once they have been
// quiet for the debounce window.
func (s *ConfigSource) watchLoop(w *fsnotify.Watcher, target string) {
	defer s.wg.Done()

	var settle <-chan time.Time
	for {
		select {
		case <-s.done:
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			settle = time.After(s.debounce)

		case <-settle:
			settle = nil
			_ = s.Reload()

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}

// Close stops watching. It is safe to call more than once.
func (s *ConfigSource) Close() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.watcher != nil {
			err = s.watcher.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
	return err
}

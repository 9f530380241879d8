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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSearch/services/search/api"
	"github.com/AleutianAI/AleutianSearch/services/search/storage"
	"github.com/AleutianAI/AleutianSearch/services/search/telemetry"
)

type serveFlags struct {
	addr      string
	watch     bool
	noHistory bool
	nodeCap   int64
	timeCap   time.Duration
	shutdown  time.Duration
}

func newServeCmd(a *app) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the algorithms over HTTP with a websocket for anytime search",
		Long: `serve exposes solve, the run history and the effective configuration as a
JSON API, streams anytime improvements over a websocket and serves
Prometheus metrics. With --watch-config the configuration file is reloaded
when it changes; searches already running keep the configuration they
started with.`,
		Example: `  hsearch serve --addr :8085 --config search.yaml --watch-config
  curl -s localhost:8085/v1/solve -d '{"algorithm":"ees","weight":2,"instance":{"walk":60}}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd, f)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&f.addr, "addr", "127.0.0.1:8085", "Listen address")
	fs.BoolVar(&f.watch, "watch-config", false, "Reload --config when the file changes")
	fs.BoolVar(&f.noHistory, "no-history", false, "Do not open the run database; saving is refused")
	fs.Int64Var(&f.nodeCap, "node-cap", 5_000_000, "Maximum generated nodes per request (0 for none)")
	fs.DurationVar(&f.timeCap, "time-cap", time.Minute, "Maximum wall time per request (0 for none)")
	fs.DurationVar(&f.shutdown, "shutdown-timeout", 10*time.Second, "Grace period for in-flight requests")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, f *serveFlags) error {
	ctx := cmd.Context()
	logger := a.log()

	src, err := api.NewConfigSource(a.configPath, a.loadConfig, logger)
	if err != nil {
		return err
	}
	defer src.Close()
	if f.watch {
		if err := src.Watch(); err != nil {
			return err
		}
	}

	telCfg := telemetry.DefaultConfig()
	telCfg.Writer = cmd.ErrOrStderr()
	tel, err := telemetry.Init(ctx, telCfg)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()

	var store *storage.RunStore
	if !f.noHistory {
		if store, err = a.store(); err != nil {
			return err
		}
	}

	gin.SetMode(gin.ReleaseMode)
	srv, err := api.New(api.Options{
		Config:  src,
		Store:   store,
		Metrics: tel.Handler(),
		Logger:  logger,
		NodeCap: f.nodeCap,
		TimeCap: f.timeCap,
	})
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", f.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", f.addr, err)
	}
	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Serve(ln)
	}()
	addr := ln.Addr().String()
	logger.Info("serving", slog.String("addr", addr), slog.Bool("history", store != nil))
	a.printer.Success("listening on " + addr)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", slog.Duration("grace", f.shutdown))
	sctx, cancel := context.WithTimeout(context.Background(), f.shutdown)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

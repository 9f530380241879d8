// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api serves the search algorithms over HTTP.
//
// Routes:
//
//	GET    /health              liveness
//	GET    /v1/algorithms       registered algorithms and their guarantees
//	GET    /v1/config           effective configuration as YAML
//	POST   /v1/solve            solve one instance, optionally saving the run
//	GET    /v1/runs             list saved runs
//	GET    /v1/runs/:id         one saved run
//	DELETE /v1/runs/:id         delete a saved run
//	GET    /v1/anytime          websocket streaming anytime improvements
//	GET    /metrics             Prometheus metrics, when enabled
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianSearch/services/search/storage"
)

// ErrNoConfig is returned by New without a configuration source.
var ErrNoConfig = errors.New("api: configuration source is required")

// Options configures a Server.
type Options struct {
	// Config supplies the configuration of every request. Required.
	Config *ConfigSource

	// Store persists runs. nil disables saving and the /v1/runs routes
	// answer 503.
	Store *storage.RunStore

	// Metrics is served on /metrics when non-nil.
	Metrics http.Handler

	// Logger receives request logs. nil uses slog.Default().
	Logger *slog.Logger

	// NodeCap bounds generated nodes per request. A request may ask for
	// less but never more. 0 leaves the configured limit alone.
	NodeCap int64

	// TimeCap bounds wall time per request in the same way.
	TimeCap time.Duration

	// ServiceName names the otelgin spans. Default: "hsearch".
	ServiceName string
}

// Server is the HTTP front end.
//
// Thread Safety: Safe for concurrent use.
type Server struct {
	router *gin.Engine
	opts   Options
	logger *slog.Logger
}

// New builds the router.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, ErrNoConfig
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "hsearch"
	}

	s := &Server{
		opts:   opts,
		logger: opts.Logger.With(slog.String("component", "api")),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(opts.ServiceName))
	r.Use(requestLogger(s.logger))

	r.GET("/health", s.health)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	v1 := r.Group("/v1")
	{
		v1.GET("/algorithms", s.listAlgorithms)
		v1.GET("/config", s.getConfig)
		v1.POST("/solve", s.solve)
		v1.GET("/anytime", s.anytime)

		runs := v1.Group("/runs")
		runs.GET("", s.listRuns)
		runs.GET("/:id", s.getRun)
		runs.DELETE("/:id", s.deleteRun)
	}

	s.router = r
	return s, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// requestLogger logs one line per request after it completes.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		switch {
		case c.Writer.Status() >= 500:
			level = slog.LevelError
		case c.Writer.Status() >= 400:
			level = slog.LevelWarn
		}
		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("error", c.Errors.String()))
		}
		logger.LogAttrs(c.Request.Context(), level, "request", attrs...)
	}
}

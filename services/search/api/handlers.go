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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianSearch/pkg/validation"
	"github.com/AleutianAI/AleutianSearch/services/search/algorithms"
	"github.com/AleutianAI/AleutianSearch/services/search/domain"
	"github.com/AleutianAI/AleutianSearch/services/search/domains/tiles"
	"github.com/AleutianAI/AleutianSearch/services/search/engine"
	"github.com/AleutianAI/AleutianSearch/services/search/instances"
	"github.com/AleutianAI/AleutianSearch/services/search/storage"
)

var (
	// ErrBadRequest wraps request errors that map to 400.
	ErrBadRequest = errors.New("bad request")

	// ErrNoStore is returned when persistence is requested but disabled.
	ErrNoStore = errors.New("run history is not enabled on this server")
)

// SolveRequest is the body of POST /v1/solve and the first message of an
// anytime stream.
type SolveRequest struct {
	Algorithm string `json:"algorithm" binding:"required"`

	// Weight overrides the configured weight when set.
	Weight *float64 `json:"weight,omitempty" binding:"omitempty,gte=1"`

	// Options are name=value overrides, as accepted by engine.Config.Set.
	Options map[string]string `json:"options,omitempty"`

	Instance instances.Spec `json:"instance"`

	// Save records the run in the history database.
	Save bool `json:"save,omitempty"`
}

// SolveResponse is the result of a solve.
type SolveResponse struct {
	Run storage.RunRecord `json:"run"`

	// Path names the states of the best solution: vertex names for
	// graphs, layouts for tile puzzles.
	Path []string `json:"path,omitempty"`

	Saved bool `json:"saved"`
}

// AlgorithmInfo describes one registered algorithm.
type AlgorithmInfo struct {
	Name    string `json:"name"`
	Optimal bool   `json:"optimal"`
	Anytime bool   `json:"anytime"`

	// BoundedByWeight is true when the solution cost is within the
	// configured weight of optimal.
	BoundedByWeight bool `json:"bounded_by_weight"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listAlgorithms(c *gin.Context) {
	cfg := s.opts.Config.Current()
	out := make([]AlgorithmInfo, 0, len(algorithms.Names()))
	for _, name := range algorithms.Names() {
		algo, err := algorithms.New(name, cfg)
		if err != nil {
			s.fail(c, err)
			return
		}
		p := algo.Properties()
		out = append(out, AlgorithmInfo{
			Name:            name,
			Optimal:         p.Optimal,
			Anytime:         p.Anytime,
			BoundedByWeight: !math.IsNaN(p.Bound),
		})
	}
	c.JSON(http.StatusOK, gin.H{"algorithms": out})
}

func (s *Server) getConfig(c *gin.Context) {
	y, err := s.opts.Config.Current().MarshalYAMLBytes()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("X-Config-Reloads", strconv.FormatInt(s.opts.Config.Reloads(), 10))
	c.Data(http.StatusOK, "application/yaml; charset=utf-8", y)
}

func (s *Server) solve(c *gin.Context) {
	var req SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if req.Save && s.opts.Store == nil {
		s.fail(c, ErrNoStore)
		return
	}
	cfg, algo, in, err := s.prepare(&req)
	if err != nil {
		s.fail(c, err)
		return
	}

	res, err := algo.Solve(c.Request.Context(), in.Domain)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp, err := s.respond(c.Request.Context(), &req, cfg, in, res)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// prepare resolves the configuration, algorithm and instance of req.
func (s *Server) prepare(req *SolveRequest) (*engine.Config, algorithms.Algorithm, *instances.Instance, error) {
	cfg, err := s.requestConfig(req)
	if err != nil {
		return nil, nil, nil, err
	}
	algo, err := algorithms.New(req.Algorithm, cfg, algorithms.WithLogger(s.logger))
	if err != nil {
		return nil, nil, nil, err
	}
	in, err := req.Instance.Build()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return cfg, algo, in, nil
}

// requestConfig applies the request's overrides to the current
// configuration and clamps the limits to the server caps.
func (s *Server) requestConfig(req *SolveRequest) (*engine.Config, error) {
	cfg := s.opts.Config.Current()

	names := make([]string, 0, len(req.Options))
	for name := range req.Options {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := cfg.Set(name, req.Options[name]); err != nil {
			return nil, err
		}
	}
	if req.Weight != nil {
		cfg.Weight = *req.Weight
	}

	if limit := s.opts.NodeCap; limit > 0 && (cfg.NodeLimit == 0 || cfg.NodeLimit > limit) {
		cfg.NodeLimit = limit
	}
	if limit := s.opts.TimeCap; limit > 0 && (cfg.TimeLimit == 0 || cfg.TimeLimit > limit) {
		cfg.TimeLimit = limit
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// respond builds the record for res and saves it when asked.
func (s *Server) respond(ctx context.Context, req *SolveRequest, cfg *engine.Config, in *instances.Instance, res *engine.Result) (*SolveResponse, error) {
	resp := &SolveResponse{Run: storage.NewRecord(in.Description, cfg, res)}
	if best := res.Best(); best != nil {
		resp.Path = pathLabels(in, best.States)
	}
	if req.Save {
		id, err := s.opts.Store.Save(ctx, &resp.Run)
		if err != nil {
			return nil, err
		}
		resp.Saved = true
		s.logger.Info("run saved",
			slog.String("id", id),
			slog.String("algorithm", resp.Run.Algorithm),
		)
	}
	return resp, nil
}

func pathLabels(in *instances.Instance, states []domain.State) []string {
	if in.Puzzle == nil {
		return in.PathLabels(states)
	}
	out := make([]string, 0, len(states))
	for _, st := range states {
		b, ok := st.(tiles.Board)
		if !ok {
			return nil
		}
		out = append(out, in.Puzzle.Layout(b))
	}
	return out
}

// -----------------------------------------------------------------------------
// Run history
// -----------------------------------------------------------------------------

func (s *Server) listRuns(c *gin.Context) {
	if s.opts.Store == nil {
		s.fail(c, ErrNoStore)
		return
	}
	opts := storage.ListOptions{Algorithm: c.Query("algorithm"), Limit: 50}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.fail(c, fmt.Errorf("%w: limit must be a non-negative integer", ErrBadRequest))
			return
		}
		opts.Limit = n
	}
	recs, err := s.opts.Store.List(c.Request.Context(), opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	if recs == nil {
		recs = []storage.RunRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": recs})
}

func (s *Server) getRun(c *gin.Context) {
	if s.opts.Store == nil {
		s.fail(c, ErrNoStore)
		return
	}
	id := c.Param("id")
	if err := validation.ValidateRunID(id); err != nil {
		s.fail(c, err)
		return
	}
	rec, err := s.opts.Store.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) deleteRun(c *gin.Context) {
	if s.opts.Store == nil {
		s.fail(c, ErrNoStore)
		return
	}
	id := c.Param("id")
	if err := validation.ValidateRunID(id); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.opts.Store.Delete(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": id})
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNoStore):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrNotAnytime),
		errors.Is(err, algorithms.ErrUnknownAlgorithm),
		errors.Is(err, engine.ErrInvalidConfig),
		errors.Is(err, engine.ErrUnknownOption),
		errors.Is(err, validation.ErrInvalidName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}

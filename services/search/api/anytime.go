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
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianSearch/services/search/algorithms"
	"github.com/AleutianAI/AleutianSearch/services/search/engine"
	"github.com/AleutianAI/AleutianSearch/services/search/storage"
)

// ErrNotAnytime is returned when a stream names a non-anytime algorithm.
var ErrNotAnytime = errors.New("algorithm does not support anytime streaming")

// Stream message types.
const (
	MessageImprovement = "improvement"
	MessageDone        = "done"
	MessageError       = "error"
)

// StreamMessage is one message sent on an anytime stream.
type StreamMessage struct {
	Type string `json:"type"`

	// Improvement is set on "improvement" messages.
	Improvement *Improvement `json:"improvement,omitempty"`

	// Result and ProvedOptimal are set on the final "done" message.
	Result        *SolveResponse `json:"result,omitempty"`
	ProvedOptimal bool           `json:"proved_optimal,omitempty"`

	Error string `json:"error,omitempty"`
}

// Improvement reports a new incumbent.
type Improvement struct {
	Iteration  int           `json:"iteration"`
	Cost       storage.Float `json:"cost"`
	LowerBound storage.Float `json:"lower_bound"`
	Expanded   int64         `json:"expanded"`
	Generated  int64         `json:"generated"`
	ElapsedMS  int64         `json:"elapsed_ms"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// anytime streams the improvements of an anytime search.
//
// # Description
//
// The client sends one SolveRequest naming awastar or apts. The server
// answers with an "improvement" message per new incumbent and a final
// "done" message carrying the result. Any later client message, or the
// client going away, stops the search; the result up to that point is
// still reported and saved when asked.
func (s *Server) anytime(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	var req SolveRequest
	if err := ws.ReadJSON(&req); err != nil {
		s.sendError(ws, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if err := binding.Validator.ValidateStruct(&req); err != nil {
		s.sendError(ws, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if req.Save && s.opts.Store == nil {
		s.sendError(ws, ErrNoStore)
		return
	}
	cfg, algo, in, err := s.prepare(&req)
	if err != nil {
		s.sendError(ws, err)
		return
	}
	at, ok := algo.(*algorithms.Anytime)
	if !ok {
		s.sendError(ws, fmt.Errorf("%w: %s", ErrNotAnytime, algo.Name()))
		return
	}
	sess, err := at.Start(in.Domain)
	if err != nil {
		s.sendError(ws, err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		defer cancel()
		if _, _, err := ws.ReadMessage(); err == nil {
			s.logger.Debug("anytime stream stopped by client")
		}
	}()

	for !sess.Done() {
		sol, err := sess.Next(ctx)
		if err != nil {
			s.sendError(ws, err)
			return
		}
		if sol == nil {
			if sess.Status() != engine.StatusGoalFound {
				break
			}
			continue
		}
		its := sess.Iterations()
		it := its[len(its)-1]
		msg := StreamMessage{
			Type: MessageImprovement,
			Improvement: &Improvement{
				Iteration:  len(its),
				Cost:       storage.Float(it.Cost),
				LowerBound: storage.Float(sess.LowerBound()),
				Expanded:   it.Expanded,
				Generated:  it.Generated,
				ElapsedMS:  it.Elapsed.Milliseconds(),
			},
		}
		if err := ws.WriteJSON(msg); err != nil {
			s.logger.Warn("websocket write failed", slog.String("error", err.Error()))
			return
		}
	}

	resp, err := s.respond(context.WithoutCancel(ctx), &req, cfg, in, sess.Result())
	if err != nil {
		s.sendError(ws, err)
		return
	}
	if err := ws.WriteJSON(StreamMessage{Type: MessageDone, Result: resp, ProvedOptimal: sess.Done()}); err != nil {
		s.logger.Warn("websocket write failed", slog.String("error", err.Error()))
		return
	}
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
}

func (s *Server) sendError(ws *websocket.Conn, err error) {
	s.logger.Warn("anytime stream failed", slog.String("error", err.Error()))
	if werr := ws.WriteJSON(StreamMessage{Type: MessageError, Error: err.Error()}); werr != nil {
		s.logger.Warn("websocket write failed", slog.String("error", werr.Error()))
	}
}

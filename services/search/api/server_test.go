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
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSearch/services/search/engine"
	"github.com/AleutianAI/AleutianSearch/services/search/instances"
	"github.com/AleutianAI/AleutianSearch/services/search/storage"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

const diamondYAML = `name: diamond
start: s
goals: [t]
consistent: true
vertices:
  - {name: s, h: 2}
  - {name: a, h: 1}
  - {name: b, h: 1}
  - {name: t, h: 0}
edges:
  - {from: s, to: a, cost: 1}
  - {from: a, to: t, cost: 1}
  - {from: s, to: b, cost: 2}
  - {from: b, to: t, cost: 2}
`

func quietLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// newTestServer builds a server on an in-memory run store. withStore=false
// disables persistence.
func newTestServer(t *testing.T, withStore bool, tweak ...func(*Options)) *Server {
	t.Helper()
	opts := Options{Config: StaticConfig(nil), Logger: quietLogger()}
	if withStore {
		db, err := storage.Open(storage.InMemoryConfig())
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		opts.Store = storage.NewRunStore(db)
	}
	for _, f := range tweak {
		f(&opts)
	}
	srv, err := New(opts)
	require.NoError(t, err)
	return srv
}

// performRequest executes an HTTP request against the server.
func performRequest(srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}
	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func ptr[T any](v T) *T { return &v }

// =============================================================================
// Basic routes
// =============================================================================

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrNoConfig)
}

func TestHealth(t *testing.T) {
	w := performRequest(newTestServer(t, false), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestListAlgorithms(t *testing.T) {
	w := performRequest(newTestServer(t, false), http.MethodGet, "/v1/algorithms", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[struct {
		Algorithms []AlgorithmInfo `json:"algorithms"`
	}](t, w)
	byName := make(map[string]AlgorithmInfo)
	for _, a := range body.Algorithms {
		byName[a.Name] = a
	}
	require.Len(t, byName, 7)
	assert.True(t, byName["astar"].Optimal)
	assert.True(t, byName["awastar"].Anytime)
	assert.True(t, byName["apts"].Anytime)
	assert.False(t, byName["ees"].Anytime)
	assert.True(t, byName["wastar"].BoundedByWeight)
	assert.False(t, byName["pts"].BoundedByWeight)
}

func TestGetConfig(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.Weight = 2.5
	srv := newTestServer(t, false, func(o *Options) { o.Config = StaticConfig(cfg) })

	w := performRequest(srv, http.MethodGet, "/v1/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/yaml")
	assert.Equal(t, "0", w.Header().Get("X-Config-Reloads"))
	assert.Contains(t, w.Body.String(), "weight: 2.5\n")
	assert.Contains(t, w.Body.String(), "max_cost: .inf\n")
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("search_run_total 1\n"))
	})
	srv := newTestServer(t, false, func(o *Options) { o.Metrics = metrics })
	w := performRequest(srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "search_run_total")

	w = performRequest(newTestServer(t, false), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// =============================================================================
// Solve
// =============================================================================

func TestSolve_Graph(t *testing.T) {
	srv := newTestServer(t, false)
	w := performRequest(srv, http.MethodPost, "/v1/solve", SolveRequest{
		Algorithm: "astar",
		Instance:  instances.Spec{GraphYAML: diamondYAML},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[SolveResponse](t, w)
	assert.Equal(t, engine.StatusGoalFound, resp.Run.Status)
	assert.Equal(t, storage.Float(2), resp.Run.Cost)
	assert.Equal(t, "diamond", resp.Run.Instance)
	assert.Equal(t, []string{"s", "a", "t"}, resp.Path)
	assert.False(t, resp.Saved)
	assert.Empty(t, resp.Run.ID)
}

func TestSolve_TilesWithOptions(t *testing.T) {
	srv := newTestServer(t, false)
	w := performRequest(srv, http.MethodPost, "/v1/solve", SolveRequest{
		Algorithm: "wastar",
		Weight:    ptr(2.0),
		Options:   map[string]string{"bpmx": "true"},
		Instance:  instances.Spec{Layout: "1 2 5 3 4 0 6 7 8"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[SolveResponse](t, w)
	assert.Equal(t, "wastar", resp.Run.Algorithm)
	assert.Equal(t, storage.Float(3), resp.Run.Cost)
	require.Len(t, resp.Path, 4)
	assert.Equal(t, "1 2 5 3 4 0 6 7 8", resp.Path[0])
	assert.Equal(t, "0 1 2 3 4 5 6 7 8", resp.Path[3])
	assert.Contains(t, resp.Run.Config, "weight: 2\n")
	assert.Contains(t, resp.Run.Config, "bpmx: true\n")
}

func TestSolve_NodeCap(t *testing.T) {
	srv := newTestServer(t, false, func(o *Options) { o.NodeCap = 5 })
	w := performRequest(srv, http.MethodPost, "/v1/solve", SolveRequest{
		Algorithm: "astar",
		Options:   map[string]string{"node-limit": "1000000"},
		Instance:  instances.Spec{Layout: "8 6 7 2 5 4 3 0 1"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[SolveResponse](t, w)
	assert.Equal(t, engine.StatusNodeLimitReached, resp.Run.Status)
	assert.Contains(t, resp.Run.Config, "node_limit: 5\n")
}

func TestSolve_Errors(t *testing.T) {
	tests := []struct {
		name      string
		withStore bool
		body      interface{}
		want      int
	}{
		{"not json", true, "nope", http.StatusBadRequest},
		{"missing algorithm", true, SolveRequest{Instance: instances.Spec{Layout: "1 0 2 3"}}, http.StatusBadRequest},
		{"unknown algorithm", true, SolveRequest{Algorithm: "bfs", Instance: instances.Spec{Layout: "1 0 2 3"}}, http.StatusBadRequest},
		{"no instance", true, SolveRequest{Algorithm: "astar"}, http.StatusBadRequest},
		{"two instances", true, SolveRequest{Algorithm: "astar", Instance: instances.Spec{Layout: "1 0 2 3", Walk: 3}}, http.StatusBadRequest},
		{"bad graph", true, SolveRequest{Algorithm: "astar", Instance: instances.Spec{GraphYAML: "start: [\n"}}, http.StatusBadRequest},
		{"weight below one", true, SolveRequest{Algorithm: "astar", Weight: ptr(0.5), Instance: instances.Spec{Layout: "1 0 2 3"}}, http.StatusBadRequest},
		{"board too wide", true, SolveRequest{Algorithm: "astar", Instance: instances.Spec{Walk: 3, Width: 40}}, http.StatusBadRequest},
		{"unknown option", true, SolveRequest{Algorithm: "astar", Options: map[string]string{"speed": "9"}, Instance: instances.Spec{Layout: "1 0 2 3"}}, http.StatusBadRequest},
		{"save without store", false, SolveRequest{Algorithm: "astar", Save: true, Instance: instances.Spec{Layout: "1 0 2 3"}}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(newTestServer(t, tt.withStore), http.MethodPost, "/v1/solve", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotEmpty(t, decode[map[string]string](t, w)["error"])
		})
	}
}

// =============================================================================
// Run history
// =============================================================================

func TestRuns_SaveListGetDelete(t *testing.T) {
	srv := newTestServer(t, true)

	w := performRequest(srv, http.MethodPost, "/v1/solve", SolveRequest{
		Algorithm: "ees",
		Weight:    ptr(2.0),
		Instance:  instances.Spec{Walk: 20, Width: 3, Seed: 1},
		Save:      true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	saved := decode[SolveResponse](t, w)
	require.True(t, saved.Saved)
	require.NotEmpty(t, saved.Run.ID)

	w = performRequest(srv, http.MethodGet, "/v1/runs?algorithm=ees", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Runs []storage.RunRecord `json:"runs"`
	}](t, w)
	require.Len(t, list.Runs, 1)
	assert.Equal(t, saved.Run.ID, list.Runs[0].ID)

	w = performRequest(srv, http.MethodGet, "/v1/runs?algorithm=astar", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"runs":[]}`, w.Body.String())

	w = performRequest(srv, http.MethodGet, "/v1/runs/"+saved.Run.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[storage.RunRecord](t, w)
	assert.Equal(t, saved.Run.Cost, got.Cost)
	assert.Equal(t, saved.Run.Instance, got.Instance)

	w = performRequest(srv, http.MethodDelete, "/v1/runs/"+saved.Run.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = performRequest(srv, http.MethodGet, "/v1/runs/"+saved.Run.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRuns_Errors(t *testing.T) {
	tests := []struct {
		name      string
		withStore bool
		method    string
		path      string
		want      int
	}{
		{"bad id", true, http.MethodGet, "/v1/runs/not-a-uuid", http.StatusBadRequest},
		{"bad delete id", true, http.MethodDelete, "/v1/runs/idx", http.StatusBadRequest},
		{"bad limit", true, http.MethodGet, "/v1/runs?limit=-1", http.StatusBadRequest},
		{"bad algorithm", true, http.MethodGet, "/v1/runs?algorithm=../x", http.StatusBadRequest},
		{"no store list", false, http.MethodGet, "/v1/runs", http.StatusServiceUnavailable},
		{"no store get", false, http.MethodGet, "/v1/runs/0190b1c4-4c1e-7cc3-8c5e-2f4a1b2c3d4e", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(newTestServer(t, tt.withStore), tt.method, tt.path, nil)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

// =============================================================================
// Anytime stream
// =============================================================================

func dialAnytime(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/anytime"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(10*time.Second)))
	return ws
}

// readStream collects messages until "done" or "error".
func readStream(t *testing.T, ws *websocket.Conn) []StreamMessage {
	t.Helper()
	var msgs []StreamMessage
	for {
		var m StreamMessage
		require.NoError(t, ws.ReadJSON(&m))
		msgs = append(msgs, m)
		if m.Type == MessageDone || m.Type == MessageError {
			return msgs
		}
	}
}

func TestAnytime_StreamsImprovementsAndSaves(t *testing.T) {
	srv := newTestServer(t, true)
	ws := dialAnytime(t, srv)

	require.NoError(t, ws.WriteJSON(SolveRequest{
		Algorithm: "awastar",
		Weight:    ptr(3.0),
		Instance:  instances.Spec{Walk: 30, Width: 3, Seed: 5},
		Save:      true,
	}))
	msgs := readStream(t, ws)
	require.GreaterOrEqual(t, len(msgs), 2)

	done := msgs[len(msgs)-1]
	require.Equal(t, MessageDone, done.Type, done.Error)
	require.NotNil(t, done.Result)
	assert.True(t, done.ProvedOptimal)
	assert.True(t, done.Result.Saved)
	assert.NotEmpty(t, done.Result.Run.ID)

	prev := storage.Float(0)
	for i, m := range msgs[:len(msgs)-1] {
		require.Equal(t, MessageImprovement, m.Type)
		require.NotNil(t, m.Improvement)
		assert.Equal(t, i+1, m.Improvement.Iteration)
		assert.LessOrEqual(t, float64(m.Improvement.LowerBound), float64(m.Improvement.Cost))
		if i > 0 {
			assert.Less(t, float64(m.Improvement.Cost), float64(prev))
		}
		prev = m.Improvement.Cost
	}
	assert.Equal(t, prev, done.Result.Run.Cost)
}

func TestAnytime_Errors(t *testing.T) {
	tests := []struct {
		name string
		req  interface{}
		want string
	}{
		{"not anytime", SolveRequest{Algorithm: "astar", Instance: instances.Spec{GraphYAML: diamondYAML}}, ErrNotAnytime.Error()},
		{"missing algorithm", SolveRequest{Instance: instances.Spec{GraphYAML: diamondYAML}}, ErrBadRequest.Error()},
		{"no instance", SolveRequest{Algorithm: "apts"}, instances.ErrNoInstance.Error()},
		{"save without store", SolveRequest{Algorithm: "apts", Save: true, Instance: instances.Spec{GraphYAML: diamondYAML}}, ErrNoStore.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := dialAnytime(t, newTestServer(t, false))
			require.NoError(t, ws.WriteJSON(tt.req))
			msgs := readStream(t, ws)
			require.Len(t, msgs, 1)
			assert.Equal(t, MessageError, msgs[0].Type)
			assert.Contains(t, msgs[0].Error, tt.want)
		})
	}
}

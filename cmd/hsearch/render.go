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
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianSearch/pkg/ux"
	"github.com/AleutianAI/AleutianSearch/services/search/algorithms"
	"github.com/AleutianAI/AleutianSearch/services/search/engine"
	"github.com/AleutianAI/AleutianSearch/services/search/storage"
)

type kvPair struct{ key, value string }

func printPairs(p *ux.Printer, title string, kvs []kvPair) {
	out := make([]ux.KeyValue, len(kvs))
	for i, kv := range kvs {
		out[i] = ux.KeyValue{Key: kv.key, Value: kv.value}
	}
	p.KeyValues(title, out)
}

func joinNames() string { return strings.Join(algorithms.Names(), ", ") }

// formatCost prints integral costs without decimals and +Inf as "inf".
func formatCost(c float64) string {
	switch {
	case math.IsInf(c, 1):
		return "inf"
	case math.IsInf(c, -1):
		return "-inf"
	case math.IsNaN(c):
		return "nan"
	}
	return strconv.FormatFloat(c, 'f', -1, 64)
}

func formatCount(n int64) string { return strconv.FormatInt(n, 10) }

func formatDuration(d time.Duration) string { return d.Round(time.Microsecond).String() }

func statsPairs(s engine.Stats) []kvPair {
	return []kvPair{
		{"expanded", formatCount(s.Expanded)},
		{"generated", formatCount(s.Generated)},
		{"duplicates", formatCount(s.Duplicates)},
		{"reopened", formatCount(s.Reopened)},
		{"open updated", formatCount(s.OpenUpdated)},
		{"pruned", formatCount(s.Pruned)},
		{"incons skips", formatCount(s.InconsistentSkips)},
		{"reruns", formatCount(s.Reruns)},
	}
}

func extrasPairs[V ~float64](extras map[string]V) []kvPair {
	names := make([]string, 0, len(extras))
	for k := range extras {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]kvPair, 0, len(names))
	for _, k := range names {
		out = append(out, kvPair{k, formatCost(float64(extras[k]))})
	}
	return out
}

// renderResult prints one search result. labels, when set, name the states
// along the best path.
func renderResult(p *ux.Printer, res *engine.Result, labels []string) {
	kvs := []kvPair{
		{"algorithm", res.Algorithm},
		{"domain", res.Domain},
		{"status", res.Status.String()},
	}
	if best := res.Best(); best != nil {
		kvs = append(kvs,
			kvPair{"cost", formatCost(best.Cost)},
			kvPair{"length", strconv.Itoa(best.Length)},
		)
		if len(res.Solutions) > 1 {
			kvs = append(kvs, kvPair{"solutions", strconv.Itoa(len(res.Solutions))})
		}
	}
	kvs = append(kvs, statsPairs(res.Stats)...)
	kvs = append(kvs,
		kvPair{"wall time", formatDuration(res.WallTime)},
		kvPair{"cpu time", formatDuration(res.CPUTime)},
	)
	kvs = append(kvs, extrasPairs(res.Extras)...)
	printPairs(p, "Search result", kvs)

	if len(labels) > 0 {
		p.Info("path: " + strings.Join(labels, " "+string(ux.IconArrow)+" "))
	}
	switch {
	case res.Solved:
		p.Success("solved")
	default:
		p.Warning("no solution: " + res.Status.String())
	}
	if n := len(res.Diagnostics); n > 0 {
		p.Warning(fmt.Sprintf("%d heuristic inconsistencies recorded", n))
	}
}

// renderRuns prints a history listing.
func renderRuns(p *ux.Printer, recs []storage.RunRecord) {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			r.ID,
			r.CreatedAt.Local().Format(time.DateTime),
			r.Algorithm,
			r.Domain,
			r.Status.String(),
			formatCost(float64(r.Cost)),
			formatCount(r.Stats.Expanded),
			formatDuration(r.WallTime),
		})
	}
	p.Table([]string{"id", "created", "algorithm", "domain", "status", "cost", "expanded", "wall time"}, rows)
}

// renderRun prints one stored record in full.
func renderRun(p *ux.Printer, r *storage.RunRecord) {
	kvs := []kvPair{
		{"id", r.ID},
		{"created", r.CreatedAt.Local().Format(time.RFC3339)},
		{"algorithm", r.Algorithm},
		{"domain", r.Domain},
		{"instance", r.Instance},
		{"status", r.Status.String()},
		{"cost", formatCost(float64(r.Cost))},
		{"length", strconv.Itoa(r.Length)},
	}
	kvs = append(kvs, statsPairs(r.Stats)...)
	kvs = append(kvs,
		kvPair{"wall time", formatDuration(r.WallTime)},
		kvPair{"cpu time", formatDuration(r.CPUTime)},
	)
	kvs = append(kvs, extrasPairs(r.Extras)...)
	printPairs(p, "Run "+r.ID, kvs)
	if r.Config != "" {
		p.Info("config:\n" + strings.TrimRight(r.Config, "\n"))
	}
}

// -----------------------------------------------------------------------------
// Bench summary
// -----------------------------------------------------------------------------

// benchRow aggregates the reports of one algorithm.
type benchRow struct {
	Algorithm string
	Jobs      int
	Solved    int
	Failed    int
	Expanded  int64
	Generated int64
	CostSum   float64
	Wall      time.Duration
}

// summarize groups reports by algorithm in first-seen order.
func summarize(reports []algorithms.Report) []benchRow {
	var rows []benchRow
	index := make(map[string]int)
	for _, rep := range reports {
		i, ok := index[rep.Job.Algorithm]
		if !ok {
			i = len(rows)
			index[rep.Job.Algorithm] = i
			rows = append(rows, benchRow{Algorithm: rep.Job.Algorithm})
		}
		row := &rows[i]
		row.Jobs++
		row.Wall += rep.Duration
		if rep.Err != nil || rep.Result == nil {
			row.Failed++
			continue
		}
		row.Expanded += rep.Result.Stats.Expanded
		row.Generated += rep.Result.Stats.Generated
		if best := rep.Result.Best(); rep.Result.Solved && best != nil {
			row.Solved++
			row.CostSum += best.Cost
		}
	}
	return rows
}

func renderBench(p *ux.Printer, rows []benchRow) {
	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		meanCost := math.NaN()
		if r.Solved > 0 {
			meanCost = r.CostSum / float64(r.Solved)
		}
		meanExpanded := int64(0)
		if done := r.Jobs - r.Failed; done > 0 {
			meanExpanded = r.Expanded / int64(done)
		}
		table = append(table, []string{
			r.Algorithm,
			strconv.Itoa(r.Jobs),
			strconv.Itoa(r.Solved),
			strconv.Itoa(r.Failed),
			strconv.FormatFloat(meanCost, 'f', 2, 64),
			formatCount(meanExpanded),
			formatCount(r.Generated),
			formatDuration(r.Wall),
		})
	}
	p.Table([]string{"algorithm", "jobs", "solved", "failed", "mean cost", "mean expanded", "generated", "total time"}, table)
}

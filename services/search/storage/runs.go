// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianSearch/pkg/validation"
	"github.com/AleutianAI/AleutianSearch/services/search/engine"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("run record not found")

const (
	runPrefix = "run/"
	idxPrefix = "idx/"
)

// Float is a float64 that survives JSON when it is infinite or NaN.
// Non-finite values encode as the strings "inf", "-inf" and "nan".
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsInf(v, 1):
		return []byte(`"inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-inf"`), nil
	case math.IsNaN(v):
		return []byte(`"nan"`), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		switch s {
		case "inf":
			*f = Float(math.Inf(1))
		case "-inf":
			*f = Float(math.Inf(-1))
		case "nan":
			*f = Float(math.NaN())
		default:
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("decode float %q: %w", s, err)
			}
			*f = Float(v)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// RunRecord is one persisted search run.
type RunRecord struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Algorithm string           `json:"algorithm"`
	Domain    string           `json:"domain"`
	Instance  string           `json:"instance"`
	Config    string           `json:"config"`
	Status    engine.Status    `json:"status"`
	Solved    bool             `json:"solved"`
	Cost      Float            `json:"cost"`
	Length    int              `json:"length"`
	Stats     engine.Stats     `json:"stats"`
	WallTime  time.Duration    `json:"wall_time"`
	CPUTime   time.Duration    `json:"cpu_time"`
	Extras    map[string]Float `json:"extras,omitempty"`
}

// NewRecord builds a record from a search result.
//
// Inputs:
//
//	instance - Free-form instance description, e.g. a tile layout.
//	cfg - The configuration the run used, stored as YAML. May be nil.
//	res - The result. Must not be nil.
func NewRecord(instance string, cfg *engine.Config, res *engine.Result) RunRecord {
	rec := RunRecord{
		Algorithm: res.Algorithm,
		Domain:    res.Domain,
		Instance:  instance,
		Status:    res.Status,
		Solved:    res.Solved,
		Stats:     res.Stats,
		WallTime:  res.WallTime,
		CPUTime:   res.CPUTime,
	}
	if cfg != nil {
		if y, err := cfg.MarshalYAMLBytes(); err == nil {
			rec.Config = string(y)
		}
	}
	if best := res.Best(); best != nil {
		rec.Cost = Float(best.Cost)
		rec.Length = best.Length
	}
	if len(res.Extras) > 0 {
		rec.Extras = make(map[string]Float, len(res.Extras))
		for k, v := range res.Extras {
			rec.Extras[k] = Float(v)
		}
	}
	return rec
}

func runKey(algorithm, id string) []byte {
	return []byte(runPrefix + algorithm + "/" + id)
}

// RunStore reads and writes run records.
//
// Records live under run/<algorithm>/<id> with an id index under
// idx/<id>. Ids are UUIDv7, so keys sort by creation time within an
// algorithm.
//
// Thread Safety: Safe for concurrent use.
type RunStore struct {
	db *DB
}

// NewRunStore creates a store on an open database.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// Save writes rec, assigning an id and creation time when missing.
//
// Outputs:
//
//	string - The record id.
//	error - Non-nil on encoding or transaction failure.
func (s *RunStore) Save(ctx context.Context, rec *RunRecord) (string, error) {
	if err := validation.ValidateKeySegment(rec.Algorithm); err != nil {
		return "", fmt.Errorf("save run: algorithm: %w", err)
	}
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("generate run id: %w", err)
		}
		rec.ID = id.String()
	} else if err := validation.ValidateRunID(rec.ID); err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode run %s: %w", rec.ID, err)
	}
	key := runKey(rec.Algorithm, rec.ID)
	err = s.db.update(ctx, func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set([]byte(idxPrefix+rec.ID), key)
	})
	if err != nil {
		return "", fmt.Errorf("save run %s: %w", rec.ID, err)
	}
	return rec.ID, nil
}

// Get loads one record by id.
func (s *RunStore) Get(ctx context.Context, id string) (*RunRecord, error) {
	var rec RunRecord
	err := s.db.view(ctx, func(txn *badger.Txn) error {
		idx, err := txn.Get([]byte(idxPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		key, err := idx.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error { return json.Unmarshal(v, &rec) })
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListOptions filters List.
type ListOptions struct {
	// Algorithm restricts the listing to one algorithm. Empty lists all.
	Algorithm string

	// Limit caps the number of records, newest first. 0 is unlimited.
	Limit int
}

// List returns records newest first.
func (s *RunStore) List(ctx context.Context, opts ListOptions) ([]RunRecord, error) {
	prefix := []byte(runPrefix)
	if opts.Algorithm != "" {
		if err := validation.ValidateKeySegment(opts.Algorithm); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		prefix = []byte(runPrefix + opts.Algorithm + "/")
	}

	var out []RunRecord
	err := s.db.view(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec RunRecord
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &rec) }); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Delete removes a record. Deleting a missing id returns ErrNotFound.
func (s *RunStore) Delete(ctx context.Context, id string) error {
	return s.db.update(ctx, func(txn *badger.Txn) error {
		idx, err := txn.Get([]byte(idxPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		key, err := idx.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete([]byte(idxPrefix + id))
	})
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package domain

import (
	"errors"
	"fmt"
)

// KeyBits is the capacity of a PackedKey.
const KeyBits = 128

// ErrKeyOverflow is returned when a state needs more than KeyBits bits.
var ErrKeyOverflow = errors.New("packed key overflow")

// PackedKey is the compact, comparable encoding of a state.
//
// Word 0 holds the first 64 bits written, word 1 the next 64.
type PackedKey [2]uint64

// String renders the key as two hex words.
func (k PackedKey) String() string {
	return fmt.Sprintf("%016x:%016x", k[0], k[1])
}

// KeyWriter packs fixed-width fields MSB first into a PackedKey.
//
// The zero value is ready to use. Writing past KeyBits sets a sticky error
// that Key reports.
type KeyWriter struct {
	key PackedKey
	pos int
	err error
}

// Put appends the low width bits of v.
func (w *KeyWriter) Put(width int, v uint64) {
	if w.err != nil {
		return
	}
	if width <= 0 || width > 64 {
		w.err = fmt.Errorf("%w: field width %d", ErrKeyOverflow, width)
		return
	}
	if w.pos+width > KeyBits {
		w.err = fmt.Errorf("%w: %d bits requested, %d used", ErrKeyOverflow, width, w.pos)
		return
	}
	if width < 64 {
		v &= (uint64(1) << width) - 1
	}
	for width > 0 {
		word := w.pos / 64
		free := 64 - w.pos%64
		n := min(free, width)
		chunk := v >> (width - n)
		if n < 64 {
			chunk &= (uint64(1) << n) - 1
		}
		w.key[word] |= chunk << (free - n)
		w.pos += n
		width -= n
	}
}

// Key returns the packed key and any overflow error.
func (w *KeyWriter) Key() (PackedKey, error) {
	return w.key, w.err
}

// Bits returns how many bits have been written.
func (w *KeyWriter) Bits() int { return w.pos }

// KeyReader reads fields back in the order a KeyWriter wrote them.
type KeyReader struct {
	key PackedKey
	pos int
	err error
}

// NewKeyReader returns a reader positioned at the first bit of k.
func NewKeyReader(k PackedKey) *KeyReader {
	return &KeyReader{key: k}
}

// Get reads the next width bits.
func (r *KeyReader) Get(width int) uint64 {
	if r.err != nil {
		return 0
	}
	if width <= 0 || width > 64 || r.pos+width > KeyBits {
		r.err = fmt.Errorf("%w: read of %d bits at %d", ErrKeyOverflow, width, r.pos)
		return 0
	}
	var v uint64
	for width > 0 {
		word := r.pos / 64
		free := 64 - r.pos%64
		n := min(free, width)
		chunk := r.key[word] >> (free - n)
		if n < 64 {
			chunk &= (uint64(1) << n) - 1
		}
		v = v<<n | chunk
		r.pos += n
		width -= n
	}
	return v
}

// Err returns the first read error.
func (r *KeyReader) Err() error { return r.err }

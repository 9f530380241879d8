// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package queue provides an indexed binary heap for search frontiers.
//
// Each element stores its own position in the heap through a slot
// accessor, so membership tests, removal and key updates run without a
// side index. An element may live in several heaps at once as long as
// each heap uses a different slot.
package queue

import "container/heap"

// NotQueued is the slot value of an element that is not in a heap.
const NotQueued int32 = -1

// Less reports whether a has higher priority than b.
type Less[T comparable] func(a, b T) bool

// Slot returns the storage for the heap position of x.
type Slot[T comparable] func(x T) *int32

// Heap is a binary min-heap ordered by Less.
//
// Thread Safety: Not safe for concurrent use.
type Heap[T comparable] struct {
	items itemSet[T]
}

// New creates an empty heap.
//
// Inputs:
//
//	less - Priority order. The element for which less is true comes out first.
//	slot - Accessor for the per-element position field used by this heap.
//
// Outputs:
//
//	*Heap[T] - The heap.
func New[T comparable](less Less[T], slot Slot[T]) *Heap[T] {
	return &Heap[T]{items: itemSet[T]{less: less, slot: slot}}
}

// Len returns the number of queued elements.
func (h *Heap[T]) Len() int { return len(h.items.data) }

// Push inserts x. x must not already be queued in this heap.
func (h *Heap[T]) Push(x T) {
	heap.Push(&h.items, x)
}

// Peek returns the top element without removing it.
func (h *Heap[T]) Peek() (T, bool) {
	if len(h.items.data) == 0 {
		var zero T
		return zero, false
	}
	return h.items.data[0], true
}

// Pop removes and returns the top element.
func (h *Heap[T]) Pop() (T, bool) {
	if len(h.items.data) == 0 {
		var zero T
		return zero, false
	}
	return heap.Pop(&h.items).(T), true
}

// Contains reports whether x is queued in this heap.
func (h *Heap[T]) Contains(x T) bool {
	i := *h.items.slot(x)
	return i >= 0 && int(i) < len(h.items.data) && h.items.data[i] == x
}

// Remove deletes x if queued and reports whether it was.
func (h *Heap[T]) Remove(x T) bool {
	if !h.Contains(x) {
		return false
	}
	heap.Remove(&h.items, int(*h.items.slot(x)))
	return true
}

// Fix restores heap order after the priority of x changed.
//
// Fix is a no-op when x is not queued.
func (h *Heap[T]) Fix(x T) {
	if !h.Contains(x) {
		return
	}
	heap.Fix(&h.items, int(*h.items.slot(x)))
}

// Each calls fn for every queued element in heap order (not sorted order).
// fn must not modify the heap.
func (h *Heap[T]) Each(fn func(T)) {
	for _, x := range h.items.data {
		fn(x)
	}
}

// Reheap rebuilds the heap after a global priority change.
func (h *Heap[T]) Reheap() {
	heap.Init(&h.items)
}

// Clear empties the heap and marks every element as not queued.
func (h *Heap[T]) Clear() {
	for _, x := range h.items.data {
		*h.items.slot(x) = NotQueued
	}
	clear(h.items.data)
	h.items.data = h.items.data[:0]
}

// itemSet adapts the element slice to container/heap.
type itemSet[T comparable] struct {
	data []T
	less Less[T]
	slot Slot[T]
}

func (s *itemSet[T]) Len() int           { return len(s.data) }
func (s *itemSet[T]) Less(i, j int) bool { return s.less(s.data[i], s.data[j]) }

func (s *itemSet[T]) Swap(i, j int) {
	s.data[i], s.data[j] = s.data[j], s.data[i]
	*s.slot(s.data[i]) = int32(i)
	*s.slot(s.data[j]) = int32(j)
}

func (s *itemSet[T]) Push(x any) {
	v := x.(T)
	*s.slot(v) = int32(len(s.data))
	s.data = append(s.data, v)
}

func (s *itemSet[T]) Pop() any {
	n := len(s.data) - 1
	v := s.data[n]
	var zero T
	s.data[n] = zero
	s.data = s.data[:n]
	*s.slot(v) = NotQueued
	return v
}

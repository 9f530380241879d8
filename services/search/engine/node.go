// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"errors"
	"unsafe"

	"github.com/AleutianAI/AleutianSearch/services/search/domain"
	"github.com/AleutianAI/AleutianSearch/services/search/queue"
)

// -----------------------------------------------------------------------------
// Node
// -----------------------------------------------------------------------------

// NodeID is the arena handle of a node. Parent links are stored as handles,
// never as pointers.
type NodeID int32

// NoNode is the parent of the root.
const NoNode NodeID = -1

// Heap slots. A node carries one slot per queue it can belong to at once.
const (
	SlotOpen = iota
	SlotCleanup
	SlotFocal
	numSlots
)

// Node is a search-graph node.
//
// G, Op, Pop and Parent are rewritten in place when a cheaper path to the
// same key is found. H only ever increases (BPMX).
//
// The hat fields and the path error statistics are used by completion
// estimate search and left zero by other algorithms.
type Node struct {
	ID     NodeID
	Key    domain.PackedKey
	Parent NodeID
	Op     domain.Operator
	Pop    domain.Operator

	G float64
	H float64
	D float64

	HHat float64
	DHat float64
	FHat float64

	// Accumulated single-step errors along the path to this node, and the
	// number of steps they were measured over.
	ErrH  float64
	ErrD  float64
	Depth int32

	// Single-step errors measured when this node was expanded.
	StepH float64
	StepD float64

	// Expansions counts how many times the node was expanded.
	Expansions int32

	slots  [numSlots]int32
	incons bool
}

// F returns the admissible evaluation g + h.
func (n *Node) F() float64 { return n.G + n.H }

// Slot returns the heap position storage for the given queue.
func (n *Node) Slot(i int) *int32 { return &n.slots[i] }

// OpenSlot, CleanupSlot and FocalSlot are queue.Slot accessors.
func OpenSlot(n *Node) *int32    { return &n.slots[SlotOpen] }
func CleanupSlot(n *Node) *int32 { return &n.slots[SlotCleanup] }
func FocalSlot(n *Node) *int32   { return &n.slots[SlotFocal] }

func (n *Node) resetSlots() {
	for i := range n.slots {
		n.slots[i] = queue.NotQueued
	}
}

// -----------------------------------------------------------------------------
// Arena
// -----------------------------------------------------------------------------

// ErrOutOfMemory is raised when the node arena exceeds its byte budget.
// The engine converts it into an Aborted termination.
var ErrOutOfMemory = errors.New("node arena out of memory")

const (
	blockShift = 12
	blockSize  = 1 << blockShift

	// closedEntryBytes approximates the map overhead of one closed entry.
	closedEntryBytes = 48
)

// NodeBytes is the accounted size of one node, arena and closed entry.
var NodeBytes = int64(unsafe.Sizeof(Node{})) + int64(unsafe.Sizeof(domain.PackedKey{})) + closedEntryBytes

// Arena owns every node of a search session.
//
// Nodes are allocated in fixed blocks so their addresses stay valid for the
// whole session. Nothing is freed until Reset.
//
// Thread Safety: Not safe for concurrent use.
type Arena struct {
	blocks [][]Node
	n      int
	limit  int64
}

// NewArena creates an arena. limitBytes <= 0 disables the byte budget.
func NewArena(limitBytes int64) *Arena {
	return &Arena{limit: limitBytes}
}

// Alloc returns a fresh node with queue slots cleared.
func (a *Arena) Alloc() (*Node, error) {
	if a.limit > 0 && int64(a.n+1)*NodeBytes > a.limit {
		return nil, ErrOutOfMemory
	}
	b := a.n >> blockShift
	if b == len(a.blocks) {
		a.blocks = append(a.blocks, make([]Node, blockSize))
	}
	n := &a.blocks[b][a.n&(blockSize-1)]
	*n = Node{ID: NodeID(a.n), Parent: NoNode, Op: domain.NoOp, Pop: domain.NoOp}
	n.resetSlots()
	a.n++
	return n, nil
}

// Get resolves a handle. It returns nil for NoNode or an unknown id.
func (a *Arena) Get(id NodeID) *Node {
	if id < 0 || int(id) >= a.n {
		return nil
	}
	return &a.blocks[int(id)>>blockShift][int(id)&(blockSize-1)]
}

// Len returns the number of allocated nodes.
func (a *Arena) Len() int { return a.n }

// Bytes returns the accounted memory in use.
func (a *Arena) Bytes() int64 { return int64(a.n) * NodeBytes }

// Reset discards every node. Handles obtained before Reset are invalid.
func (a *Arena) Reset() {
	a.blocks = nil
	a.n = 0
}

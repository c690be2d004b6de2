// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package taskpool

import "sync/atomic"

// slot flag states. A slot cycles Free -> Allocated -> Stored -> Locked ->
// Free. Allocated is a brief intermediate state the owner holds while
// copying an item in; Locked is held by whichever side (owner or thief) won
// the race to read a Stored slot.
const (
	flagFree = iota
	flagAllocated
	flagStored
	flagLocked
)

// defaultPipeSizeLog2 gives pipes of 256 slots, matching enkiTS's
// PIPESIZE_LOG2.
const defaultPipeSizeLog2 = 8

// pipe is a bounded lock-free ring buffer of subTasks with asymmetric
// access: a single owner goroutine pushes and pops at the front LIFO-style,
// and any number of thief goroutines pop at the back FIFO-style. Capacity is
// always a power of two so slot addressing is a mask, not a modulo.
//
// write and readCount are free-running uint32 indices (never reset); the
// slot for index i is i & mask. write is only ever touched by the owner,
// which increments it on TryWriteFront and decrements it on TryReadFront.
// readCount is only touched by thieves: incremented on TryReadBack, and
// decremented again when a claim has to be reverted. Either way
// write-readCount stays the occupancy.
//
// Go's atomic package gives sequentially-consistent operations, which is
// strictly stronger than the acquire/release pairing the spec calls for; the
// comments below still name the intended ordering so the protocol reads the
// same as the source it's ported from.
type pipe struct {
	mask  uint32
	slots []subTask
	flags []atomic.Uint32

	write     atomic.Uint32
	readCount atomic.Uint32
}

func newPipe(sizeLog2 uint) *pipe {
	size := uint32(1) << sizeLog2
	return &pipe{
		mask:  size - 1,
		slots: make([]subTask, size),
		flags: make([]atomic.Uint32, size),
	}
}

func (p *pipe) capacity() uint32 { return p.mask + 1 }

// TryWriteFront reserves the next front slot and publishes item into it.
// Returns false if the pipe is full, or if a thief is mid-read of the slot
// this index would reuse (can only happen transiently, right at the
// capacity boundary).
func (p *pipe) TryWriteFront(item subTask) bool {
	i := p.write.Load() // relaxed: only the owner writes this
	if i-p.readCount.Load() >= p.capacity() {
		return false // full
	}
	slot := i & p.mask
	if !p.flags[slot].CompareAndSwap(flagFree, flagAllocated) {
		return false // a thief still holds this slot's previous occupant
	}
	p.slots[slot] = item
	p.flags[slot].Store(flagStored) // release: publishes the item
	p.write.Store(i + 1)
	return true
}

// TryReadFront pops the most recently written item (LIFO, owner-only).
// Returns false if the pipe is empty, or if a thief won the race to read
// this slot from the back first.
func (p *pipe) TryReadFront(out *subTask) bool {
	w := p.write.Load()
	if w == p.readCount.Load() { // acquire: observes thief completions too
		return false // empty
	}
	i := w - 1
	slot := i & p.mask
	if !p.flags[slot].CompareAndSwap(flagStored, flagLocked) {
		return false // a thief already claimed this slot
	}
	p.write.Store(i)
	*out = p.slots[slot]
	p.slots[slot] = subTask{} // drop references for the garbage collector
	p.flags[slot].Store(flagFree)
	return true
}

// TryReadBack pops the oldest item (FIFO, any number of concurrent
// thieves). Returns false if the pipe looked empty, or if the owner (or
// another thief) won the race for this slot; either way the caller should
// try a different donor.
func (p *pipe) TryReadBack(out *subTask) bool {
	r := p.readCount.Add(1) - 1 // acquire: claims slot r, or over-claims on a race
	if r >= p.write.Load() {
		p.readCount.Add(^uint32(0)) // revert the over-claim
		return false
	}
	slot := r & p.mask
	if !p.flags[slot].CompareAndSwap(flagStored, flagLocked) {
		p.readCount.Add(^uint32(0)) // revert: the owner got there first
		return false
	}
	*out = p.slots[slot]
	p.slots[slot] = subTask{}
	p.flags[slot].Store(flagFree)
	return true
}

// IsEmpty reports whether the pipe currently holds no items.
func (p *pipe) IsEmpty() bool {
	return p.write.Load() == p.readCount.Load()
}

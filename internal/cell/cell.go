// Package cell implements C2: Cell, the wait-free single-occupant slot, and
// Tube, a tick-keyed collection of Cells at one tree leaf coordinate.
package cell

import (
	"sync/atomic"

	"github.com/entwine-go/entwine/internal/pool"
)

// Cell holds at most one currently-best InfoNode. The zero value is a
// valid, empty Cell. All operations are wait-free: Load is a single atomic
// acquire-load, and both Swap variants are single CAS attempts — a failed
// conditional swap simply reports loss so the caller can re-read and
// re-decide, per spec.md §4.2 and §5.
type Cell struct {
	slot atomic.Pointer[pool.Node[pool.InfoNode]]
}

// Load returns the current occupant, or nil if the Cell is empty.
func (c *Cell) Load() *pool.InfoNode {
	n := c.slot.Load()
	if n == nil {
		return nil
	}
	return &n.Val
}

// Swap publishes incoming into an empty slot. Succeeds iff the slot was
// nil; on success incoming's ownership transfers into the Cell (the
// caller's handle is emptied) and true is returned. On failure incoming is
// left untouched so the caller can re-read and retry.
func (c *Cell) Swap(incoming *pool.Handle[pool.InfoNode]) bool {
	n := incoming.N
	if n == nil {
		panic("cell: Swap called with an empty handle")
	}
	if c.slot.CompareAndSwap(nil, n) {
		incoming.Take()
		return true
	}
	return false
}

// SwapExpected conditionally replaces the occupant: succeeds iff the slot
// currently equals expected. On success incoming becomes the occupant (its
// handle is emptied) and the displaced node is returned, still owned by the
// caller (wrap it with pool.Wrap to get a Handle again, or hand it straight
// to the next descent step). On failure (nil, false) is returned and
// incoming is untouched.
func (c *Cell) SwapExpected(incoming *pool.Handle[pool.InfoNode], expected *pool.InfoNode) (*pool.Node[pool.InfoNode], bool) {
	n := incoming.N
	if n == nil {
		panic("cell: SwapExpected called with an empty handle")
	}
	expectedNode := c.slot.Load()
	if expectedNode == nil || &expectedNode.Val != expected {
		return nil, false
	}
	if c.slot.CompareAndSwap(expectedNode, n) {
		incoming.Take()
		return expectedNode, true
	}
	return nil, false
}

// Empty reports whether the Cell currently holds nothing.
func (c *Cell) Empty() bool {
	return c.slot.Load() == nil
}

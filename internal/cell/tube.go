package cell

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/entwine-go/entwine/internal/pool"
)

const unassignedTick = ^uint64(0)

// Tube is a primary Cell plus a mutex-guarded map of secondary Cells keyed
// by tick, used when a chunk layer conceptually "stacks" cells along one
// axis (e.g. Z in a 2D-gridded, Z-tubular index). The primary slot's tick
// is assigned at most once, by whichever goroutine first calls GetCell for
// it; every later access for that tick — from any goroutine — goes to the
// primary slot without ever taking the mutex.
type Tube struct {
	primaryTick atomic.Uint64
	primary     Cell

	mu   sync.Mutex
	cells map[uint64]*Cell
}

// NewTube returns an empty Tube with its primary tick unassigned.
func NewTube() *Tube {
	t := &Tube{}
	t.primaryTick.Store(unassignedTick)
	return t
}

// GetCell returns the Cell responsible for tick, creating a secondary entry
// on first use if the primary slot is already claimed by a different tick.
// justCreated is true for exactly one caller per (tube, tick): either the
// one that won the primary-tick CAS, or the one that found the secondary
// map had no entry yet. Callers use justCreated to know whether this
// (tube, tick) coordinate is new to the tree (and so needs a hierarchy
// count path established) — though in this engine the hierarchy is walked
// by depth, not by tube, so justCreated is exposed mainly for parity with
// spec.md §4.2 and for deserialization bookkeeping.
func (t *Tube) GetCell(tick uint64) (justCreated bool, c *Cell) {
	if t.primaryTick.Load() == tick {
		return false, &t.primary
	}

	if t.primaryTick.CompareAndSwap(unassignedTick, tick) {
		return true, &t.primary
	}

	// Lost the CAS (or it never had a chance to run): if another thread
	// assigned our exact tick as primary, we still want the primary slot,
	// just not credit for creating it.
	if t.primaryTick.Load() == tick {
		return false, &t.primary
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cells == nil {
		t.cells = make(map[uint64]*Cell)
	}
	existing, ok := t.cells[tick]
	if ok {
		return false, existing
	}
	c = &Cell{}
	t.cells[tick] = c
	return true, c
}

// AddCell installs a (tick, info) pair during single-threaded
// deserialization only. It fails hard (returns an error, never silently
// drops data) if tick was already added, matching the "Invalid serialized
// chunk tick" fatal condition in entwine/tree/cell.cpp.
func (t *Tube) AddCell(tick uint64, info *pool.Node[pool.InfoNode]) error {
	if t.primaryTick.Load() == unassignedTick {
		t.primaryTick.Store(tick)
		t.primary.slot.Store(info)
		return nil
	}
	if t.primaryTick.Load() == tick {
		return fmt.Errorf("tube: duplicate tick %d during deserialization", tick)
	}
	if t.cells == nil {
		t.cells = make(map[uint64]*Cell)
	}
	if _, ok := t.cells[tick]; ok {
		return fmt.Errorf("tube: duplicate tick %d during deserialization", tick)
	}
	c := &Cell{}
	c.slot.Store(info)
	t.cells[tick] = c
	return nil
}

// Empty reports whether the tube has never had a cell assigned.
func (t *Tube) Empty() bool {
	return t.primaryTick.Load() == unassignedTick
}

// orderedTicks returns every assigned tick (primary first, then
// secondaries in ascending order), matching the
// "primary then secondaries in map order" walk spec.md §4.2 requires for
// serialization.
func (t *Tube) orderedTicks() []uint64 {
	if t.Empty() {
		return nil
	}
	ticks := make([]uint64, 0, 1+len(t.cells))
	ticks = append(ticks, t.primaryTick.Load())
	t.mu.Lock()
	for tick := range t.cells {
		ticks = append(ticks, tick)
	}
	t.mu.Unlock()
	secondaries := ticks[1:]
	sort.Slice(secondaries, func(i, j int) bool { return secondaries[i] < secondaries[j] })
	return ticks
}

func (t *Tube) cellForTick(tick uint64) *Cell {
	if tick == t.primaryTick.Load() {
		return &t.primary
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cells[tick]
}

// Save walks primary then secondaries in tick order, copying each
// occupant's point bytes into a contiguous buffer and releasing the info
// and data nodes back to infoPool/dataPool. Returns the concatenated
// record bytes (pointSize per record, no separator, no trailer).
func (t *Tube) Save(pointSize uint32, infoPool *pool.Pool[pool.InfoNode]) []byte {
	ticks := t.orderedTicks()
	out := make([]byte, 0, len(ticks)*int(pointSize))
	for _, tick := range ticks {
		c := t.cellForTick(tick)
		info := c.Load()
		if info == nil {
			continue
		}
		out = append(out, info.Data().Bytes...)
		infoPool.Release(c.slot.Load())
	}
	return out
}

// SaveBase is Save, but prepends an 8-byte big-endian tube id to every
// record (so a flattened base chunk retains its coordinate), matching
// entwine/tree/cell.cpp's Tube::saveBase.
func (t *Tube) SaveBase(tubeID uint64, pointSize uint32, infoPool *pool.Pool[pool.InfoNode]) []byte {
	ticks := t.orderedTicks()
	idSize := 8
	recSize := idSize + int(pointSize)
	out := make([]byte, 0, len(ticks)*recSize)
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], tubeID)
	for _, tick := range ticks {
		c := t.cellForTick(tick)
		info := c.Load()
		if info == nil {
			continue
		}
		out = append(out, idBuf[:]...)
		out = append(out, info.Data().Bytes...)
		infoPool.Release(c.slot.Load())
	}
	return out
}

// Acquire drains every occupied cell in the tube back into the info pool
// without serializing anything, used when discarding a subset build
// (entwine/tree/cell.cpp's Tube::acquire). Returns how many occupied cells
// it released; their bytes are not kept anywhere (Save is the variant that
// keeps them).
func (t *Tube) Acquire(infoPool *pool.Pool[pool.InfoNode]) int {
	ticks := t.orderedTicks()
	n := 0
	for _, tick := range ticks {
		c := t.cellForTick(tick)
		if node := c.slot.Swap(nil); node != nil {
			infoPool.Release(node)
			n++
		}
	}
	return n
}

// DrainedCell is one occupied cell lifted out of a Tube by Drain, still
// owning its node (not yet released to any pool).
type DrainedCell struct {
	Tick uint64
	Node *pool.Node[pool.InfoNode]
}

// Drain empties every occupied cell in the tube and returns their raw
// nodes and ticks, transferring ownership to the caller. Unlike Acquire,
// the nodes are not released back into a pool — used by Registry.Merge,
// which needs to re-decide each drained point's fate (keep it, or let it
// lose to a better incumbent) rather than simply discard it.
func (t *Tube) Drain() []DrainedCell {
	ticks := t.orderedTicks()
	out := make([]DrainedCell, 0, len(ticks))
	for _, tick := range ticks {
		c := t.cellForTick(tick)
		if node := c.slot.Swap(nil); node != nil {
			out = append(out, DrainedCell{Tick: tick, Node: node})
		}
	}
	return out
}

// Package registry implements C4 (the chunk router) and C5 (the insertion
// engine): Registry.AddPoint is the single entry point producers call to
// place one point, retrying across CAS losses and descending the tree
// until the point wins a cell or falls off the structure's depth range.
package registry

import (
	"context"
	"fmt"

	"github.com/entwine-go/entwine/internal/cell"
	"github.com/entwine-go/entwine/internal/chunk"
	"github.com/entwine-go/entwine/internal/climber"
	"github.com/entwine-go/entwine/internal/clipper"
	"github.com/entwine-go/entwine/internal/model"
	"github.com/entwine-go/entwine/internal/pool"
)

// TickFunc derives a Tube tick from a point, used only in tubular mode
// (2D navigation, 3D distance, with height encoded as the tick rather
// than as a third spatial axis). The source material documents tubular
// mode's existence (Structure.Tubular) but not an exact tick formula;
// New takes the TickFunc from its caller, and a nil TickFunc puts every
// point at tick 0 (see DESIGN.md). This package ships no height-quantizing
// TickFunc of its own.
type TickFunc func(p model.Point) uint64

// Registry routes an in-flight point to the correct Cell for its current
// depth and runs the CAS retry/descend loop against it. One Registry is
// shared by every producer goroutine; all of its exported methods are
// safe for concurrent use.
type Registry struct {
	structure model.Structure
	schema    model.Schema
	rootBBox  model.BBox
	as3d      bool // is3d || tubular, per registry.cpp's m_as3d
	discard   bool

	base *chunk.BaseChunk
	cold *chunk.ColdStore

	infoPool *pool.Pool[pool.InfoNode]
	dataPool *pool.Pool[pool.DataNode]

	tick TickFunc
}

// New builds a Registry. cold may be nil if structure.HasCold() is false.
// tick may be nil for non-tubular structures (every point then uses tick
// 0, i.e. the tube's primary cell only). rootBBox is the volume the whole
// tree covers at depth 0, used only to replay a node's BBox from its Id
// during Merge.
func New(structure model.Structure, schema model.Schema, rootBBox model.BBox, base *chunk.BaseChunk, cold *chunk.ColdStore, infoPool *pool.Pool[pool.InfoNode], dataPool *pool.Pool[pool.DataNode], tick TickFunc) *Registry {
	if tick == nil {
		tick = func(model.Point) uint64 { return 0 }
	}
	return &Registry{
		structure: structure,
		schema:    schema,
		rootBBox:  rootBBox,
		as3d:      structure.Is3d() || structure.Tubular(),
		discard:   structure.DiscardDuplicates(),
		base:      base,
		cold:      cold,
		infoPool:  infoPool,
		dataPool:  dataPool,
		tick:      tick,
	}
}

// Unref releases clip's accumulated cold-chunk holds against the
// registry's cold store (spec.md §5: a producer must unref its chunks
// before terminating so the cold store can drain cleanly). A no-op when
// the registry has no cold store wired, so callers can unconditionally
// defer this after every clipper.New() regardless of structure.
func (r *Registry) Unref(refs []clipper.Ref) {
	if r.cold == nil {
		return
	}
	r.cold.Unref(refs)
}

// better reports whether candidate is strictly closer to goal than
// current is, using 3D or 2D squared distance per as3d — the tie-break
// for "equal or worse" always favors the incumbent (registry.cpp's
// `better`, spec.md §4.5's decision matrix).
func better(candidate, current, goal model.Point, as3d bool) bool {
	return candidate.SqDist(goal, as3d) < current.SqDist(goal, as3d)
}

// DropReason classifies why AddPoint returned false, for callers that
// want to break drop counts down the way internal/metrics exposes them
// (spec.md tracks drop counts but, per §4.4/§4.5, never needs to
// classify them for correctness — classification is purely observational).
type DropReason string

const (
	DropReasonNone       DropReason = ""
	DropReasonDuplicate  DropReason = "duplicate"
	DropReasonOutOfRange DropReason = "out_of_range"
	DropReasonMaxDepth   DropReason = "max_depth"
)

// AddPoint attempts to place toAdd, descending and retrying until it wins
// a cell, falls off the active depth range, or hits maxDepth (0 means
// unbounded). toAdd is consumed: on return its handle is always empty,
// either because it was published into a cell, discarded as a duplicate,
// or dropped for falling off the tree. The returned DropReason is only
// meaningful when ok is false.
func (r *Registry) AddPoint(ctx context.Context, toAdd *pool.Handle[pool.InfoNode], cl *climber.Climber, clip *clipper.Clipper, maxDepth uint64) (ok bool, reason DropReason, err error) {
	for {
		c, err := r.routeCell(ctx, cl, clip, toAdd.Value().Point)
		if err != nil {
			return false, DropReasonNone, err
		}
		if c == nil {
			toAdd.Release()
			return false, DropReasonOutOfRange, nil
		}

		outcome, displaced := r.tryCell(c, toAdd, cl.BBox().Mid())
		switch outcome {
		case outcomeWon:
			cl.Count()
			return true, DropReasonNone, nil
		case outcomeDiscarded:
			return false, DropReasonDuplicate, nil
		case outcomeDisplaced:
			*toAdd = *displaced
		case outcomePassThrough:
			// toAdd continues descending unchanged.
		}

		next := cl.Depth() + 1
		if !r.structure.InRange(next) {
			toAdd.Release()
			return false, DropReasonOutOfRange, nil
		}
		if maxDepth != 0 && next >= maxDepth {
			toAdd.Release()
			return false, DropReasonMaxDepth, nil
		}
		cl.Magnify(toAdd.Value().Point)
	}
}

type cellOutcome int

const (
	outcomeWon cellOutcome = iota
	outcomeDiscarded
	outcomeDisplaced
	outcomePassThrough
)

// tryCell runs the inner CAS retry loop against one cell (spec.md §4.4's
// inner-loop / §4.5's decision matrix): empty-slot claim, duplicate
// rejection, better-point displacement, or equal-or-worse pass-through.
func (r *Registry) tryCell(c *cell.Cell, toAdd *pool.Handle[pool.InfoNode], goal model.Point) (cellOutcome, *pool.Handle[pool.InfoNode]) {
	for {
		cur := c.Load()
		if cur == nil {
			if c.Swap(toAdd) {
				return outcomeWon, nil
			}
			continue
		}

		toAddPoint := toAdd.Value().Point
		if r.discard && toAddPoint.Equal(cur.Point) {
			toAdd.Release()
			return outcomeDiscarded, nil
		}

		if better(toAddPoint, cur.Point, goal, r.as3d) {
			displacedNode, ok := c.SwapExpected(toAdd, cur)
			if !ok {
				continue // incumbent changed under us; re-read and retry
			}
			return outcomeDisplaced, wrapDisplaced(r.infoPool, displacedNode)
		}

		return outcomePassThrough, nil
	}
}

// wrapDisplaced re-attaches a node a Cell just returned ownership of as an
// owning Handle, so it continues descending under the same ownership
// rules as any other in-flight point.
func wrapDisplaced(infoPool *pool.Pool[pool.InfoNode], n *pool.Node[pool.InfoNode]) *pool.Handle[pool.InfoNode] {
	h := infoPool.Wrap(n)
	return &h
}

// routeCell implements registry.cpp's getCell: base-range depths go to
// the resident base chunk, cold-range depths load (or find already
// loaded) the owning cold chunk and ref it against clip, anything else
// (past the structure's configured range entirely) returns (nil, nil) —
// the tree is exhausted at this depth.
func (r *Registry) routeCell(ctx context.Context, cl *climber.Climber, clip *clipper.Clipper, point model.Point) (*cell.Cell, error) {
	depth := cl.Depth()
	id := cl.Id()
	tick := r.tick(point)

	if r.base != nil && r.structure.IsWithinBase(depth) {
		_, c := r.base.Tube(id).GetCell(tick)
		return c, nil
	}
	if r.cold != nil && r.structure.IsWithinCold(depth) {
		ch, err := r.cold.GetChunk(ctx, id, depth, clip)
		if err != nil {
			return nil, fmt.Errorf("registry: routing depth %d: %w", depth, err)
		}
		_, c := ch.Tube(id).GetCell(tick)
		return c, nil
	}
	return nil, nil
}

// Package climber implements C3: the stateful, single-threaded cursor that
// descends the tree alongside one in-flight point.
package climber

import (
	"github.com/entwine-go/entwine/internal/model"
)

// Counter is whatever the Climber should bump when a point comes to rest;
// in this engine it is always a HierarchyClimber (internal/hierarchy), kept
// as an interface here so this package does not depend on hierarchy.
type Counter interface {
	Count()
	Magnify(point model.Point)
}

// Climber carries the current bounding box, depth and node id for one
// point's descent. A Climber is owned by exactly one goroutine for the
// duration of one AddPoint call; it is never shared.
type Climber struct {
	bbox  model.BBox
	depth uint64
	id    model.Id
	is3d  bool

	counter Counter
}

// New starts a Climber at the root of the given bbox.
func New(bbox model.BBox, is3d bool, counter Counter) *Climber {
	return &Climber{bbox: bbox, depth: 0, id: model.RootId(), is3d: is3d, counter: counter}
}

// BBox returns the current node's bounding box.
func (c *Climber) BBox() model.BBox { return c.bbox }

// Depth returns the current depth (0 at the root).
func (c *Climber) Depth() uint64 { return c.depth }

// Id returns the current node's id.
func (c *Climber) Id() model.Id { return c.id }

// Magnify descends one level toward point: computes the octant relative to
// the current box's midpoint via the single shared tie-break rule
// (model.DirOf), shrinks the box into that octant, advances the id via
// model.Climb, increments depth, and mirrors the same descent into the
// paired hierarchy counter (if any) so query-planning counts stay in sync
// with the main tree one level at a time.
func (c *Climber) Magnify(point model.Point) {
	dir := model.DirOf(point, c.bbox.Mid(), c.is3d)
	c.bbox.Go(dir)
	c.id = model.Climb(c.id, dir)
	c.depth++
	if c.counter != nil {
		c.counter.Magnify(point)
	}
}

// Count bumps the hierarchy count at the current coordinate.
func (c *Climber) Count() {
	if c.counter != nil {
		c.counter.Count()
	}
}

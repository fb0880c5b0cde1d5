package hierarchy

import "github.com/entwine-go/entwine/internal/model"

// Climber mirrors an internal/climber.Climber's descent one level at a
// time and satisfies the climber.Counter interface it is paired against, so
// a Registry's AddPoint loop can bump hierarchy counts without the climber
// package importing this one.
type Climber struct {
	h    *Hierarchy
	bbox model.BBox
	node *Node
	is3d bool
}

// NewClimber starts a hierarchy climber at h's root, tracking the same root
// bbox the paired main-tree Climber starts from.
func NewClimber(h *Hierarchy, is3d bool) *Climber {
	return &Climber{h: h, bbox: h.bbox, node: h.root, is3d: is3d}
}

// Reset returns the climber to the hierarchy root, for reuse across
// multiple AddPoint calls on the same goroutine.
func (c *Climber) Reset() {
	c.bbox = c.h.bbox
	c.node = c.h.root
}

// Magnify descends one level toward point, using the same tie-break rule
// (model.DirOf) the main Climber uses so the two trees stay coordinate-for-
// coordinate in sync.
func (c *Climber) Magnify(point model.Point) {
	dir := model.DirOf(point, c.bbox.Mid(), c.is3d)
	c.bbox.Go(dir)
	c.node = c.node.Next(dir, c.h.nodePool)
}

// Count bumps the node at the climber's current resting coordinate.
func (c *Climber) Count() {
	c.node.Increment()
}

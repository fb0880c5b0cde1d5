// Package model holds the geometric and schema value types shared by every
// layer of the insertion engine: points, bounding boxes, octant directions,
// node ids and the Schema/Structure interfaces consumed from the dimension
// registry and builder configuration.
package model

import "math"

// Point is the extracted geometric position of a record. Z is left at zero
// and ignored whenever the active Structure is 2D.
type Point struct {
	X, Y, Z float64
}

// SqDist3d returns the squared Euclidean distance between p and other,
// including the Z axis.
func (p Point) SqDist3d(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	dz := p.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}

// SqDist2d returns the squared Euclidean distance between p and other in
// the X/Y plane only.
func (p Point) SqDist2d(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return dx*dx + dy*dy
}

// SqDist picks SqDist3d or SqDist2d depending on is3d.
func (p Point) SqDist(other Point, is3d bool) float64 {
	if is3d {
		return p.SqDist3d(other)
	}
	return p.SqDist2d(other)
}

// Equal reports whether two points have bit-identical coordinates. Used by
// the duplicate-discard rule, which intentionally does not tolerate any
// floating point slop: the producer is expected to hand the engine the same
// bytes it extracted a position from.
func (p Point) Equal(other Point) bool {
	return p.X == other.X && p.Y == other.Y && p.Z == other.Z
}

// Valid reports whether every coordinate is finite.
func (p Point) Valid() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsNaN(p.Z) &&
		!math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0) && !math.IsInf(p.Z, 0)
}

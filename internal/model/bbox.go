package model

// BBox is an axis-aligned bounding box. Min and Max are each valid 3D
// points; in 2D mode Z on both is left at zero and never consulted.
type BBox struct {
	Min, Max Point
}

// NewBBox3d builds a 3D box from two opposite corners.
func NewBBox3d(minX, minY, minZ, maxX, maxY, maxZ float64) BBox {
	return BBox{Point{minX, minY, minZ}, Point{maxX, maxY, maxZ}}
}

// NewBBox2d builds a 2D box (Z left at zero on both corners).
func NewBBox2d(minX, minY, maxX, maxY float64) BBox {
	return BBox{Point{minX, minY, 0}, Point{maxX, maxY, 0}}
}

// Mid returns the midpoint of the box.
func (b BBox) Mid() Point {
	return Point{
		X: (b.Min.X + b.Max.X) / 2,
		Y: (b.Min.Y + b.Max.Y) / 2,
		Z: (b.Min.Z + b.Max.Z) / 2,
	}
}

// Contains reports whether p lies within the closed box.
func (b BBox) Contains(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Intersects reports whether b and other overlap on every axis.
func (b BBox) Intersects(other BBox) bool {
	return b.Min.X <= other.Max.X && b.Max.X >= other.Min.X &&
		b.Min.Y <= other.Max.Y && b.Max.Y >= other.Min.Y &&
		b.Min.Z <= other.Max.Z && b.Max.Z >= other.Min.Z
}

// ContainedBy reports whether b is fully inside other.
func (b BBox) ContainedBy(other BBox) bool {
	return b.Min.X >= other.Min.X && b.Max.X <= other.Max.X &&
		b.Min.Y >= other.Min.Y && b.Max.Y <= other.Max.Y &&
		b.Min.Z >= other.Min.Z && b.Max.Z <= other.Max.Z
}

// Go halves the box in place toward the octant named by dir. Repeated
// application from the root box produces the chunk volume at the target
// depth; this is the sole place box narrowing happens so the geometry used
// by the Climber, the HierarchyClimber and any later query-side replay all
// agree bit-for-bit.
func (b *BBox) Go(dir Dir) {
	m := b.Mid()
	if dir.xUpper() {
		b.Min.X = m.X
	} else {
		b.Max.X = m.X
	}
	if dir.yUpper() {
		b.Min.Y = m.Y
	} else {
		b.Max.Y = m.Y
	}
	if dir.zUpper() {
		b.Min.Z = m.Z
	} else {
		b.Max.Z = m.Z
	}
}

// Child returns a copy of b narrowed toward dir, leaving b untouched.
func (b BBox) Child(dir Dir) BBox {
	c := b
	c.Go(dir)
	return c
}

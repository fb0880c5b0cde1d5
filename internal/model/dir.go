package model

// Dir names one of up to eight octants (3D) or four quadrants (2D) of a
// BBox, relative to its midpoint. Bit 0 selects the X half (0 = lower,
// 1 = upper), bit 1 selects Y, bit 2 selects Z. In 2D mode bit 2 is always
// zero and only four of the eight values are ever produced.
type Dir uint8

const (
	DirCount3d = 8
	DirCount2d = 4
)

func (d Dir) xUpper() bool { return d&1 != 0 }
func (d Dir) yUpper() bool { return d&2 != 0 }
func (d Dir) zUpper() bool { return d&4 != 0 }

// DirOf resolves the octant (or quadrant) that point p falls into relative
// to midpoint m. Ties (p_i == m_i) resolve to the upper half on that axis —
// this is the single tie-break rule named as an open question in spec.md
// §9; every traversal path in this repository (Climber.Magnify,
// HierarchyClimber.Magnify) picks its Dir through this one function, and
// BBox.Go only applies the Dir it is given, so the rule can never diverge
// between callers.
func DirOf(p, m Point, is3d bool) Dir {
	var d Dir
	if p.X >= m.X {
		d |= 1
	}
	if p.Y >= m.Y {
		d |= 2
	}
	if is3d && p.Z >= m.Z {
		d |= 4
	}
	return d
}

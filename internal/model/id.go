package model

import "math/big"

// Id is a deterministic octree node identifier. A child's id is
// (parent << 3) + 1 + dir, which yields unique ids across all depths with
// the depth implied by the id's magnitude. big.Int is used because ids at
// deep levels of a large point cloud overflow 64 bits (depth 22 alone needs
// ~66 bits).
type Id struct {
	v *big.Int
}

// RootId is the id of the tree's root node (depth 0).
func RootId() Id {
	return Id{v: big.NewInt(0)}
}

// IdFromUint64 wraps a plain integer id, useful for tests and for ids that
// are known to fit in 64 bits (anything shallower than ~depth 21).
func IdFromUint64(v uint64) Id {
	return Id{v: new(big.Int).SetUint64(v)}
}

// IdFromString parses the decimal big-integer representation written by
// String, as used for chunk/slice storage keys.
func IdFromString(s string) (Id, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Id{}, false
	}
	return Id{v: v}, true
}

var (
	eight = big.NewInt(8)
	one   = big.NewInt(1)
)

// Climb computes (id << 3) + 1 + dir, the id of id's child in direction
// dir.
func Climb(id Id, dir Dir) Id {
	next := new(big.Int).Lsh(id.v, 3)
	next.Add(next, one)
	next.Add(next, big.NewInt(int64(dir)))
	return Id{v: next}
}

// String renders the id as a decimal number; stable and usable as a map key
// or storage path component.
func (id Id) String() string {
	if id.v == nil {
		return "0"
	}
	return id.v.String()
}

// Cmp compares two ids the way big.Int.Cmp does.
func (id Id) Cmp(other Id) int {
	return id.v.Cmp(other.v)
}

// Equal reports id == other.
func (id Id) Equal(other Id) bool {
	return id.Cmp(other) == 0
}

// Ancestor walks up levels generations: since a child's id is always
// 8*parent + 1 + dir with dir in [0,8), (id-1)>>3 recovers the parent
// exactly regardless of the accumulated "+1" offsets at every depth, so
// repeating that division the requested number of times recovers any
// shallower ancestor's id.
func (id Id) Ancestor(levels uint64) Id {
	cur := new(big.Int).Set(id.v)
	for i := uint64(0); i < levels; i++ {
		cur.Sub(cur, one)
		cur.Rsh(cur, 3)
	}
	return Id{v: cur}
}

// PathFromRoot decodes the sequence of Dirs a Climber would have taken
// from the root to reach id: since id = 8*parent + 1 + dir, dir =
// (id-1) mod 8 recovers the last step and (id-1)>>3 recovers the parent,
// so repeating that pair from id back to RootId and reversing yields the
// root-to-id path. Used to replay a node's BBox from just its Id, e.g.
// when merging two registries' chunks or walking a Hierarchy slice that
// only stored counts.
func (id Id) PathFromRoot() []Dir {
	var dirs []Dir
	cur := new(big.Int).Set(id.v)
	for cur.Sign() != 0 {
		rem := new(big.Int)
		cur.Sub(cur, one)
		cur.DivMod(cur, eight, rem)
		dirs = append(dirs, Dir(rem.Uint64()))
	}
	for i, j := 0, len(dirs)-1; i < j; i, j = i+1, j-1 {
		dirs[i], dirs[j] = dirs[j], dirs[i]
	}
	return dirs
}

// BBoxFor replays id's path from root to compute its BBox, given the
// tree's root box.
func BBoxFor(root BBox, id Id) BBox {
	b := root
	for _, dir := range id.PathFromRoot() {
		b.Go(dir)
	}
	return b
}

// Depth recovers the octree depth implied by id's magnitude: the smallest k
// such that id falls in [start(k), start(k+1)), where start(k) is the id of
// the first node at depth k, i.e. (8^k - 1) / 7.
func (id Id) Depth() uint64 {
	if id.v.Sign() == 0 {
		return 0
	}
	depth := uint64(0)
	start := big.NewInt(0)
	for {
		next := new(big.Int).Mul(start, eight)
		next.Add(next, one)
		if id.v.Cmp(next) < 0 {
			return depth
		}
		start = next
		depth++
	}
}

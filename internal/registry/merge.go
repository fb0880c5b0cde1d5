package registry

import (
	"fmt"

	"github.com/entwine-go/entwine/internal/cell"
	"github.com/entwine-go/entwine/internal/chunk"
	"github.com/entwine-go/entwine/internal/model"
	"github.com/entwine-go/entwine/internal/pool"
)

// Merge folds other's base chunk into r's, per registry.cpp's
// Registry::merge — used when combining independently-built subsets that
// share the same shallow base levels. Each of other's occupied cells is
// replayed through the identical better()/displacement rule AddPoint
// uses, rather than assumed disjoint: two subsets can legitimately both
// have touched the same coarse base cell near their shared boundary, and
// only one point may occupy it afterward. other's base chunk is left
// fully drained.
func (r *Registry) Merge(other *Registry) error {
	if r.base == nil || other.base == nil {
		return nil
	}
	return mergeBaseChunk(r.base.Chunk, other.base.Chunk, r.rootBBox, r.as3d, r.infoPool)
}

func mergeBaseChunk(dst, src *chunk.Chunk, rootBBox model.BBox, as3d bool, infoPool *pool.Pool[pool.InfoNode]) error {
	for _, key := range src.TubeMap().Keys() {
		id, ok := model.IdFromString(key)
		if !ok {
			return fmt.Errorf("registry: merge: corrupt tube key %q", key)
		}
		srcTube := src.TubeMap().Get(key)
		if srcTube == nil {
			continue
		}
		goal := model.BBoxFor(rootBBox, id).Mid()
		dstTube := dst.Tube(id)

		for _, drained := range srcTube.Drain() {
			mergeOneCell(dstTube, drained, goal, as3d, infoPool)
		}
	}
	return nil
}

// mergeOneCell installs a single drained node into dstTube at the same
// tick it held in the source tube, displacing (and releasing) whatever
// incumbent occupies that slot by the same better()-wins rule AddPoint's
// inner loop uses. Because merge is a serial post-build phase (spec.md
// §5: "Save is a serial phase after all producers have quiesced"), there
// is no concurrent writer to race against here — a direct load/compare/
// store suffices without a CAS retry loop, though Swap/SwapExpected are
// still used so a merge can never corrupt a cell even if this invariant
// is ever violated.
func mergeOneCell(dstTube *cell.Tube, drained cell.DrainedCell, goal model.Point, as3d bool, infoPool *pool.Pool[pool.InfoNode]) {
	_, dstCell := dstTube.GetCell(drained.Tick)
	incoming := infoPool.Wrap(drained.Node)

	for {
		cur := dstCell.Load()
		if cur == nil {
			if dstCell.Swap(&incoming) {
				return
			}
			continue
		}
		if better(incoming.Value().Point, cur.Point, goal, as3d) {
			displacedNode, ok := dstCell.SwapExpected(&incoming, cur)
			if !ok {
				continue
			}
			infoPool.Release(displacedNode)
			return
		}
		// Incoming is equal-or-worse than the incumbent: drop it.
		incoming.Release()
		return
	}
}

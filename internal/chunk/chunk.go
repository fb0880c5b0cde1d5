package chunk

import (
	"github.com/entwine-go/entwine/internal/cell"
	"github.com/entwine-go/entwine/internal/model"
)

// Chunk is a contiguous depth range of the tree, addressed by tree
// coordinate (the node id, rendered via model.Id.String as the map key) and
// backed by a TubeMap. Base chunks are always resident; cold chunks are
// loaded and evicted on demand by ColdStore, refcounted through a Clipper.
type Chunk struct {
	depthBegin uint64
	depthEnd   uint64 // 0 means unbounded (the base chunk's upper chunk)
	tubes      *TubeMap
}

// NewChunk returns an empty Chunk spanning [depthBegin, depthEnd).
func NewChunk(depthBegin, depthEnd uint64) *Chunk {
	return &Chunk{depthBegin: depthBegin, depthEnd: depthEnd, tubes: NewTubeMap()}
}

// DepthBegin and DepthEnd report the chunk's depth span.
func (c *Chunk) DepthBegin() uint64 { return c.depthBegin }
func (c *Chunk) DepthEnd() uint64   { return c.depthEnd }

// Contains reports whether depth falls inside this chunk's span.
func (c *Chunk) Contains(depth uint64) bool {
	if depth < c.depthBegin {
		return false
	}
	return c.depthEnd == 0 || depth < c.depthEnd
}

// Tube returns the tube at the given node id, creating it on first use.
func (c *Chunk) Tube(id model.Id) *cell.Tube {
	return c.tubes.GetOrCreate(id.String())
}

// TubeMap exposes the underlying map for save/merge walks.
func (c *Chunk) TubeMap() *TubeMap { return c.tubes }

// BaseChunk is the always-resident chunk covering [0, baseSpan): the
// Structure's BaseIndexBegin/Span range, held in memory for the entire
// build and never evicted. Grounded on the teacher's Level, generalized
// from a single nested map to an explicit depth-bounded Chunk.
type BaseChunk struct {
	*Chunk
}

// NewBaseChunk returns an empty base chunk spanning [0, baseSpan).
func NewBaseChunk(baseSpan uint64) *BaseChunk {
	return &BaseChunk{Chunk: NewChunk(0, baseSpan)}
}

package pool

import "github.com/entwine-go/entwine/internal/model"

// DataNode owns the raw bytes of one point record. Buffers are reused
// across insertions; Bytes is always resliced to length 0 on release so a
// stale tail never leaks into the next occupant.
type DataNode struct {
	Bytes []byte
}

// NewDataPool returns a bounded or unbounded pool of DataNodes, each
// preallocated to pointSize bytes of capacity. capacity<=0 means unbounded.
func NewDataPool(capacity int, pointSize uint32) *Pool[DataNode] {
	newFn := func() DataNode {
		return DataNode{Bytes: make([]byte, 0, pointSize)}
	}
	resetFn := func(d *DataNode) {
		d.Bytes = d.Bytes[:0]
	}
	if capacity <= 0 {
		return NewUnbounded(newFn, resetFn)
	}
	return NewBounded(capacity, newFn, resetFn)
}

// InfoNode is the owning handle's payload: a point record's bytes (held
// via a DataNode handle so the two pools are released as a pair), its
// extracted geometric position, and the origin id of the source record
// (e.g. an index into the producer's input file list).
type InfoNode struct {
	data  Handle[DataNode]
	Point model.Point
	Origin uint64
}

// NewInfoPool returns a bounded or unbounded pool of InfoNodes. It does not
// own a DataPool itself — callers build an InfoNode's data via
// AcquireInfo, passing the DataPool to draw the backing bytes from.
func NewInfoPool(capacity int) *Pool[InfoNode] {
	newFn := func() InfoNode { return InfoNode{} }
	resetFn := func(i *InfoNode) {
		i.data.Release()
		i.Point = model.Point{}
		i.Origin = 0
	}
	if capacity <= 0 {
		return NewUnbounded(newFn, resetFn)
	}
	return NewBounded(capacity, newFn, resetFn)
}

// Data returns the backing DataNode handle's value, or nil if none is
// attached yet.
func (n *InfoNode) Data() *DataNode {
	return n.data.Value()
}

// AcquireInfo acquires one DataNode (sized for len(record)) and one
// InfoNode from their respective pools, copies record into the DataNode,
// and wires the InfoNode to reference it. Returns ErrExhausted, as is,
// if either pool is bounded and empty; any
// DataNode already acquired is released before returning the error so no
// partial acquisition leaks.
func AcquireInfo(infoPool *Pool[InfoNode], dataPool *Pool[DataNode], record []byte, point model.Point, origin uint64) (Handle[InfoNode], error) {
	dataHandle, err := dataPool.AcquireOne()
	if err != nil {
		return Handle[InfoNode]{}, err
	}
	data := dataHandle.Value()
	data.Bytes = append(data.Bytes[:0], record...)

	infoHandle, err := infoPool.AcquireOne()
	if err != nil {
		dataHandle.Release()
		return Handle[InfoNode]{}, err
	}
	info := infoHandle.Value()
	info.data = dataHandle
	info.Point = point
	info.Origin = origin
	return infoHandle, nil
}

// ReleasePair releases an InfoNode's attached DataNode and then the
// InfoNode itself. Equivalent to Handle[InfoNode].Release, spelled out
// because callers sometimes hold a raw *InfoNode (e.g. one loaded from a
// Cell) rather than the Handle.
func ReleasePair(infoPool *Pool[InfoNode], n *Node[InfoNode]) {
	if n == nil {
		return
	}
	infoPool.Release(n)
}

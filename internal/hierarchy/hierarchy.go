package hierarchy

import (
	"sync"

	"github.com/entwine-go/entwine/internal/chunk"
	"github.com/entwine-go/entwine/internal/model"
	"github.com/entwine-go/entwine/internal/pool"
)

// DefaultDepthBegin and DefaultStep mirror the reference implementation's
// defaults: counting only starts at depth 6 (shallower nodes are assumed
// dense enough not to need per-subvolume estimates), and each paged slice
// spans 8 consecutive depths.
const (
	DefaultDepthBegin = 6
	DefaultStep       = 8
)

// Hierarchy is the root of the parallel count tree. One Hierarchy is built
// alongside one Registry and shares its root bbox; every HierarchyClimber
// descends from the same root Node.
type Hierarchy struct {
	bbox       model.BBox
	nodePool   *pool.Pool[Node]
	depthBegin uint64
	step       uint64

	root *Node

	mu      sync.Mutex
	anchors map[string]bool // ids of subtrees paged out to store, not yet awoken

	store   chunk.Store
	postfix string
}

// New builds an empty Hierarchy over bbox. store and postfix back Page and
// Awaken; store may be nil if this Hierarchy is never paged (e.g. a small,
// entirely in-memory build).
func New(bbox model.BBox, nodePool *pool.Pool[Node], store chunk.Store, postfix string) *Hierarchy {
	handle, err := nodePool.AcquireOne()
	if err != nil {
		panic("hierarchy: node pool unexpectedly exhausted: " + err.Error())
	}
	root := handle.Take()
	return &Hierarchy{
		bbox:       bbox,
		nodePool:   nodePool,
		depthBegin: DefaultDepthBegin,
		step:       DefaultStep,
		root:       &root.Val,
		anchors:    make(map[string]bool),
		store:      store,
		postfix:    postfix,
	}
}

// SetStep overrides the paging slice depth; must be called before any Page
// call if a non-default value is wanted.
func (h *Hierarchy) SetStep(step uint64) { h.step = step }

// SetDepthBegin overrides the depth at which queries start counting.
func (h *Hierarchy) SetDepthBegin(depth uint64) { h.depthBegin = depth }

// Root returns the hierarchy's root node.
func (h *Hierarchy) Root() *Node { return h.root }

// BBox returns the volume the hierarchy's root covers.
func (h *Hierarchy) BBox() model.BBox { return h.bbox }

// DepthBegin returns the configured query start depth.
func (h *Hierarchy) DepthBegin() uint64 { return h.depthBegin }

// Step returns the configured paging slice depth.
func (h *Hierarchy) Step() uint64 { return h.step }

// NodePool returns the pool new nodes are acquired from, exposed so a
// HierarchyClimber (constructed outside this package) can call Node.Next.
func (h *Hierarchy) NodePool() *pool.Pool[Node] { return h.nodePool }

func (h *Hierarchy) markAnchor(id model.Id) {
	h.mu.Lock()
	h.anchors[id.String()] = true
	h.mu.Unlock()
}

func (h *Hierarchy) clearAnchor(id model.Id) {
	h.mu.Lock()
	delete(h.anchors, id.String())
	h.mu.Unlock()
}

func (h *Hierarchy) isAnchor(id model.Id) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.anchors[id.String()]
}

// Anchors returns a snapshot of every currently-paged subtree id.
func (h *Hierarchy) Anchors() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.anchors))
	for id := range h.anchors {
		out = append(out, id)
	}
	return out
}

// mergeNode adds src's count into dst and unions their children, recursing
// into directions present on both sides and directly adopting any child
// src has that dst does not — spec.md §4.6's "merge is the dual of
// insertion: merge(other) adds counts and unions children, calling itself
// recursively." Each of src's children is either spliced into dst or, where
// dst already has that child, merged and released back to nodePool, so
// other is consumed afterward (the same contract internal/registry.Merge
// uses for its source chunk).
func mergeNode(dst, src *Node, nodePool *pool.Pool[Node]) {
	dst.count.Add(src.count.Load())
	for _, d := range src.childDirs() {
		srcChild := src.children[d].Load()
		if dst.children[d].CompareAndSwap(nil, srcChild) {
			continue
		}
		dstChild := dst.children[d].Load()
		mergeNode(&dstChild.Val, &srcChild.Val, nodePool)
		nodePool.Release(srcChild)
	}
}

// Merge folds other into h: counts add, children union. other's anchors are
// carried over unchanged since a merged-in subtree that was paged out on
// other's side is still paged out on h's side until explicitly awoken.
func (h *Hierarchy) Merge(other *Hierarchy) {
	mergeNode(h.root, other.root, h.nodePool)
	other.mu.Lock()
	otherAnchors := make([]string, 0, len(other.anchors))
	for id := range other.anchors {
		otherAnchors = append(otherAnchors, id)
	}
	other.mu.Unlock()

	h.mu.Lock()
	for _, id := range otherAnchors {
		h.anchors[id] = true
	}
	h.mu.Unlock()
}

package hierarchy

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/entwine-go/entwine/internal/model"
)

// sliceKey renders the storage key for the slice anchored at id, per
// spec.md §6: "{anchorId}{postfix}".
func sliceKey(id model.Id, postfix string) string {
	return id.String() + postfix
}

type sliceNode struct {
	node  *Node
	id    model.Id
	depth uint64
}

// saveSlice serializes the slice anchored at root: breadth-first within the
// slice's step depths, each node written as {count: fixed u64 big-endian,
// child-bitmap: 1 byte}. A node at the slice's last depth (step-1) still has
// its bitmap written (so the reader knows which directions hold a child)
// but its children themselves are not inlined — they belong to the next
// slice down and are returned as boundary ids instead.
func saveSlice(root *Node, rootId model.Id, step uint64) ([]byte, []model.Id) {
	var buf bytes.Buffer
	var boundary []model.Id
	queue := []sliceNode{{root, rootId, 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		var countBuf [8]byte
		binary.BigEndian.PutUint64(countBuf[:], cur.node.Count())
		buf.Write(countBuf[:])

		dirs := cur.node.childDirs()
		var bitmap byte
		for _, d := range dirs {
			bitmap |= 1 << uint(d)
		}
		buf.WriteByte(bitmap)

		for _, d := range dirs {
			child := cur.node.children[d].Load()
			childId := model.Climb(cur.id, d)
			if cur.depth+1 < step {
				queue = append(queue, sliceNode{&child.Val, childId, cur.depth + 1})
			} else {
				boundary = append(boundary, childId)
			}
		}
	}
	return buf.Bytes(), boundary
}

// loadSlice is saveSlice's inverse: reconstructs the subtree rooted at
// root (already allocated) from data, allocating a fresh Node for every
// inlined child via nodePool, and returns the ids of any boundary children
// the bitmap records but that the slice did not inline (the next level's
// anchors).
func (h *Hierarchy) loadSlice(root *Node, rootId model.Id, data []byte) ([]model.Id, error) {
	var boundary []model.Id
	r := bytes.NewReader(data)
	queue := []sliceNode{{root, rootId, 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		var countBuf [8]byte
		if _, err := io.ReadFull(r, countBuf[:]); err != nil {
			return nil, fmt.Errorf("reading count at %s: %w", cur.id.String(), err)
		}
		cur.node.count.Store(binary.BigEndian.Uint64(countBuf[:]))

		bitmap, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("reading bitmap at %s: %w", cur.id.String(), err)
		}

		for d := model.Dir(0); d < 8; d++ {
			if bitmap&(1<<uint(d)) == 0 {
				continue
			}
			childId := model.Climb(cur.id, d)
			if cur.depth+1 >= h.step {
				boundary = append(boundary, childId)
				continue
			}
			handle, err := h.nodePool.AcquireOne()
			if err != nil {
				return nil, fmt.Errorf("acquiring node for %s: %w", childId.String(), err)
			}
			child := handle.Take()
			cur.node.children[d].Store(child)
			queue = append(queue, sliceNode{&child.Val, childId, cur.depth + 1})
		}
	}
	return boundary, nil
}

// findNode walks from the root to id, creating any missing intermediate
// nodes along the way (the same lazy-creation Climber descent uses). Used
// by Page and Awaken, both of which operate on ids reached by a real
// descent at some point in the hierarchy's life.
func (h *Hierarchy) findNode(id model.Id) *Node {
	node := h.root
	for _, dir := range id.PathFromRoot() {
		node = node.Next(dir, h.nodePool)
	}
	return node
}

// releaseSubtree recursively releases every descendant of node back to the
// node pool and detaches them, without touching node itself. Used after a
// slice has been durably written, to reclaim the memory of everything the
// slice now owns on disk.
func (h *Hierarchy) releaseSubtree(node *Node) {
	for _, d := range node.childDirs() {
		child := node.children[d].Swap(nil)
		if child == nil {
			continue
		}
		h.releaseSubtree(&child.Val)
		h.nodePool.Release(child)
	}
}

// Page writes the slice anchored at id to the configured store and frees
// the corresponding in-memory subtree, marking id as paged. It recurses
// into each boundary id first, depth-first and post-order: a boundary
// subtree is fully durable (paged all the way to its own leaves) before
// this level evicts it, so releasing id's subtree here can never discard
// data that has not already been written somewhere. Paging is a serial,
// post-build operation: per spec.md §5 Save runs only after every producer
// has quiesced, so there is no concurrent Magnify racing this eviction.
// Returns the ids of the immediate next-level anchors this call produced
// (same as what a single non-recursive slice write would expose), mainly
// for diagnostics — by the time Page returns, they are already paged too.
func (h *Hierarchy) Page(ctx context.Context, id model.Id) ([]model.Id, error) {
	if h.store == nil {
		return nil, fmt.Errorf("hierarchy: page: no store configured")
	}
	node := h.findNode(id)
	data, boundary := saveSlice(node, id, h.step)

	for _, b := range boundary {
		if _, err := h.Page(ctx, b); err != nil {
			return nil, err
		}
	}

	key := sliceKey(id, h.postfix)
	if err := h.store.Put(ctx, key, data); err != nil {
		return nil, fmt.Errorf("hierarchy: paging slice %q: %w", key, err)
	}
	h.releaseSubtree(node)
	h.markAnchor(id)
	return boundary, nil
}

// Awaken rehydrates the slice anchored at id from the store, if it was
// paged out, wiring its nodes back into the in-memory tree. A no-op if id
// is not currently an anchor (already resident, or never written).
func (h *Hierarchy) Awaken(ctx context.Context, id model.Id) error {
	if !h.isAnchor(id) {
		return nil
	}
	if h.store == nil {
		return fmt.Errorf("hierarchy: awaken: no store configured")
	}
	key := sliceKey(id, h.postfix)
	data, found, err := h.store.TryGet(ctx, key)
	if err != nil {
		return fmt.Errorf("hierarchy: awakening slice %q: %w", key, err)
	}
	if !found {
		return fmt.Errorf("hierarchy: awakening slice %q: not found", key)
	}
	node := h.findNode(id)
	boundary, err := h.loadSlice(node, id, data)
	if err != nil {
		return fmt.Errorf("hierarchy: awakening slice %q: %w", key, err)
	}
	h.clearAnchor(id)
	for _, b := range boundary {
		h.markAnchor(b)
	}
	return nil
}

// AwakenAll forces rehydration of every currently-paged subtree, draining
// anchors as they awaken (which may themselves introduce further anchors
// one level deeper) until none remain.
func (h *Hierarchy) AwakenAll(ctx context.Context) error {
	for {
		ids := h.Anchors()
		if len(ids) == 0 {
			return nil
		}
		parsed := make([]model.Id, 0, len(ids))
		for _, s := range ids {
			id, ok := model.IdFromString(s)
			if !ok {
				return fmt.Errorf("hierarchy: awakening all: corrupt anchor id %q", s)
			}
			parsed = append(parsed, id)
		}
		// Shallowest first: see awakenSubtree for why awaken order matters.
		sort.Slice(parsed, func(i, j int) bool { return parsed[i].Depth() < parsed[j].Depth() })
		for _, id := range parsed {
			if err := h.Awaken(ctx, id); err != nil {
				return err
			}
		}
	}
}

package hierarchy

import (
	"context"
	"fmt"
	"sort"

	"github.com/entwine-go/entwine/internal/model"
)

// Count is one visited coordinate's aggregated point count, the element
// type of a Query result.
type Count struct {
	Id    string `json:"id"`
	Count uint64 `json:"count"`
}

// Query walks the tree intersecting each node's bbox against qbox, per
// spec.md §4.6: nodes whose depth falls in [depthBegin, depthEnd) and whose
// bbox is fully contained in qbox contribute one aggregated entry (their
// own count plus every descendant's, since descending further beneath a
// fully-contained node can't narrow the answer); nodes that only partially
// overlap keep splitting into children down to depthEnd. Anchors
// encountered along the way are awoken lazily, matching "typical query
// paths awaken lazily on traversal."
func (h *Hierarchy) Query(ctx context.Context, qbox model.BBox, depthBegin, depthEnd uint64) ([]Count, error) {
	var out []Count
	if err := h.traverse(ctx, h.root, h.bbox, model.RootId(), 0, qbox, depthBegin, depthEnd, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *Hierarchy) traverse(ctx context.Context, node *Node, cbox model.BBox, id model.Id, depth uint64, qbox model.BBox, depthBegin, depthEnd uint64, out *[]Count) error {
	if !cbox.Intersects(qbox) {
		return nil
	}
	if depth >= depthEnd {
		return nil
	}
	if h.isAnchor(id) {
		if err := h.Awaken(ctx, id); err != nil {
			return fmt.Errorf("hierarchy: query: %w", err)
		}
	}

	if depth >= depthBegin && cbox.ContainedBy(qbox) {
		// A fully-contained node stops the descent, so any anchor buried
		// beneath it would never otherwise be reached and awoken — resolve
		// the whole subtree first so the aggregated count is accurate.
		if err := h.awakenSubtree(ctx, id); err != nil {
			return fmt.Errorf("hierarchy: query: %w", err)
		}
		sum := sumSubtree(node)
		if sum > 0 {
			*out = append(*out, Count{Id: id.String(), Count: sum})
		}
		return nil
	}

	for _, dir := range node.childDirs() {
		child := node.children[dir].Load()
		childId := model.Climb(id, dir)
		childBox := cbox.Child(dir)
		if err := h.traverse(ctx, &child.Val, childBox, childId, depth+1, qbox, depthBegin, depthEnd, out); err != nil {
			return err
		}
	}
	return nil
}

// awakenSubtree resolves every anchor at or beneath id. Paged-out
// descendants have no in-memory node at all (that is the point of paging),
// so this cannot walk child pointers the way a normal traversal does —
// instead it repeatedly scans the anchor set for ids rooted at id, waking
// the shallowest first, until awakening introduces no further candidates
// (an awoken slice's own boundary becomes the next round's anchors).
func (h *Hierarchy) awakenSubtree(ctx context.Context, id model.Id) error {
	for {
		var toWake []model.Id
		for _, s := range h.Anchors() {
			anchorId, ok := model.IdFromString(s)
			if !ok {
				continue
			}
			if anchorId.Equal(id) || isDescendant(anchorId, id) {
				toWake = append(toWake, anchorId)
			}
		}
		if len(toWake) == 0 {
			return nil
		}
		// Shallowest first: awakening a slice always (re)installs fresh
		// nodes for every interior id in that slice, which would clobber a
		// deeper anchor's already-awoken subtree if processed out of order.
		sort.Slice(toWake, func(i, j int) bool { return toWake[i].Depth() < toWake[j].Depth() })
		for _, a := range toWake {
			if err := h.Awaken(ctx, a); err != nil {
				return err
			}
		}
	}
}

// isDescendant reports whether descendant's path from root passes through
// ancestor, using Depth to find how many Ancestor steps would close the
// gap.
func isDescendant(descendant, ancestor model.Id) bool {
	dd, ad := descendant.Depth(), ancestor.Depth()
	if dd <= ad {
		return false
	}
	return descendant.Ancestor(dd-ad).Equal(ancestor)
}

func sumSubtree(n *Node) uint64 {
	total := n.Count()
	for _, dir := range n.childDirs() {
		child := n.children[dir].Load()
		total += sumSubtree(&child.Val)
	}
	return total
}

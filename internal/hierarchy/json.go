package hierarchy

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/entwine-go/entwine/internal/model"
)

// jsonNode is the diagnostic/small-hierarchy JSON shape spec.md §4.6
// describes as "the same logical structure" as the binary slice format:
// count plus a sparse map of child directions. Children keys are decimal
// Dir values (0-7), not coordinate ids — a node's id is implied entirely by
// its position in the tree, exactly as in the binary format.
type jsonNode struct {
	Count    uint64               `json:"count"`
	Children map[string]*jsonNode `json:"children,omitempty"`
}

func nodeToJSON(n *Node) *jsonNode {
	jn := &jsonNode{Count: n.Count()}
	dirs := n.childDirs()
	if len(dirs) == 0 {
		return jn
	}
	jn.Children = make(map[string]*jsonNode, len(dirs))
	for _, d := range dirs {
		child := n.children[d].Load()
		jn.Children[strconv.Itoa(int(d))] = nodeToJSON(&child.Val)
	}
	return jn
}

func (h *Hierarchy) populateFromJSON(node *Node, jn *jsonNode) error {
	node.count.Store(jn.Count)
	for key, cj := range jn.Children {
		dirN, err := strconv.Atoi(key)
		if err != nil || dirN < 0 || dirN > 7 {
			return fmt.Errorf("hierarchy: invalid child key %q", key)
		}
		dir := model.Dir(dirN)
		handle, err := h.nodePool.AcquireOne()
		if err != nil {
			return fmt.Errorf("hierarchy: acquiring node: %w", err)
		}
		child := handle.Take()
		node.children[dir].Store(child)
		if err := h.populateFromJSON(&child.Val, cj); err != nil {
			return err
		}
	}
	return nil
}

// ToJSON renders the whole tree (the caller should AwakenAll first if any
// subtree might be paged out — ToJSON does not awaken on its own, since
// unlike Query it has no notion of "only the parts overlapping a region").
func (h *Hierarchy) ToJSON() ([]byte, error) {
	return json.Marshal(nodeToJSON(h.root))
}

// FromJSON replaces h's tree with the one encoded in data, as produced by
// ToJSON. h must be freshly constructed (an empty root); FromJSON does not
// merge into existing content.
func (h *Hierarchy) FromJSON(data []byte) error {
	var jn jsonNode
	if err := json.Unmarshal(data, &jn); err != nil {
		return fmt.Errorf("hierarchy: parsing json: %w", err)
	}
	return h.populateFromJSON(h.root, &jn)
}

// Equal reports whether h and other are structurally identical trees,
// per spec.md §4.6 ("equality on nodes is structural and recursive").
func (h *Hierarchy) Equal(other *Hierarchy) bool {
	return h.root.Equal(other.root)
}

// Package taxonomy is SortAI's taxonomy tree plus the depth
// enforcer, merge/split gatekeeper, and user-edit guardrails layered
// on top of it (§4.8, §4.9). The tree itself is a single-writer,
// in-memory structure (mirroring the component table's "Taxonomy Tree"
// ownership rule); persistence of committed category paths lives in
// the graph package's entities table.
package taxonomy

import (
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/sortai/sortai/internal/errs"
	"github.com/sortai/sortai/internal/model"
)

// Node is one taxonomy folder.
type Node struct {
	ID       string
	Name     string
	ParentID string // empty for a root node
	State    model.RefinementState
	Children []string // child node ids, insertion order
}

// Tree owns the full taxonomy, keyed by node id.
type Tree struct {
	mu        sync.Mutex
	nodes     map[string]*Node
	roots     []string
	nextID    int
	maxDepth  int
	rootAlloc string
}

// NewTree builds an empty taxonomy capped at maxDepth levels (§4.2's
// MaxTaxonomyDepth config flows in here from the config package).
func NewTree(maxDepth int) *Tree {
	if maxDepth <= 0 {
		maxDepth = 4
	}
	return &Tree{nodes: make(map[string]*Node), maxDepth: maxDepth}
}

func (t *Tree) allocID() string {
	t.nextID++
	return "node-" + strconv.Itoa(t.nextID)
}

// CreateRoot adds a new top-level category.
func (t *Tree) CreateRoot(name string) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := &Node{ID: t.allocID(), Name: name, State: model.StateInitial}
	t.nodes[n.ID] = n
	t.roots = append(t.roots, n.ID)
	return n
}

// CreateChild adds name as a child of parentID, failing with
// KindGuardrail if it would exceed maxDepth (§4.9 Depth Enforcer,
// strict mode).
func (t *Tree) CreateChild(parentID, name string) (*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	parent, ok := t.nodes[parentID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	depth := t.depthLocked(parentID)
	if depth+1 >= t.maxDepth {
		return nil, errs.New(errs.KindGuardrail, "taxonomy.CreateChild", errNodeTooDeep)
	}
	n := &Node{ID: t.allocID(), Name: name, ParentID: parentID, State: model.StateInitial}
	t.nodes[n.ID] = n
	parent.Children = append(parent.Children, n.ID)
	return n, nil
}

// Get fetches a node by id.
func (t *Tree) Get(id string) (*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return n, nil
}

// Depth returns a node's distance from its root (root = depth 0).
func (t *Tree) Depth(id string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.depthLocked(id)
}

func (t *Tree) depthLocked(id string) int {
	depth := 0
	for {
		n, ok := t.nodes[id]
		if !ok || n.ParentID == "" {
			return depth
		}
		id = n.ParentID
		depth++
	}
}

// Path returns the "/"-joined path from root to id.
func (t *Tree) Path(id string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var segments []string
	cur := id
	for cur != "" {
		n, ok := t.nodes[cur]
		if !ok {
			return "", errs.ErrNotFound
		}
		segments = append([]string{n.Name}, segments...)
		cur = n.ParentID
	}
	return strings.Join(segments, "/"), nil
}

// MarkUserEdited flags a node as user-edited, the guardrail state no
// automatic process may subsequently mutate (§4.9 User-Edit
// Guardrails).
func (t *Tree) MarkUserEdited(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok {
		return errs.ErrNotFound
	}
	n.State = model.StateUserEdited
	return nil
}

// CanAutoModify reports whether an automatic process (merge, split,
// rename, prune) may touch id (§4.9 "can_auto_modify(node)"):
// user-edited nodes are frozen against everything but an explicit,
// human-initiated action.
func (t *Tree) CanAutoModify(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok {
		return false
	}
	return n.State != model.StateUserEdited
}

// Merge folds srcID's children into dstID and removes srcID, refusing
// if either node is user-edited (§4.9 Merge/Split Gatekeeper).
func (t *Tree) Merge(srcID, dstID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	src, ok := t.nodes[srcID]
	if !ok {
		return errs.ErrNotFound
	}
	dst, ok := t.nodes[dstID]
	if !ok {
		return errs.ErrNotFound
	}
	if src.State == model.StateUserEdited || dst.State == model.StateUserEdited {
		return errs.New(errs.KindGuardrail, "taxonomy.Merge", errs.ErrUserEdited)
	}
	for _, childID := range src.Children {
		if child, ok := t.nodes[childID]; ok {
			child.ParentID = dstID
		}
	}
	dst.Children = append(dst.Children, src.Children...)
	t.removeLocked(srcID)
	dst.State = model.StateRefined
	return nil
}

// Split detaches childNames (currently Children of parentID matching
// by name) into a brand-new sibling category named newName, refusing
// if parentID is user-edited (§4.9).
func (t *Tree) Split(parentID string, childNames []string, newName string) (*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	parent, ok := t.nodes[parentID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if parent.State == model.StateUserEdited {
		return nil, errs.New(errs.KindGuardrail, "taxonomy.Split", errs.ErrUserEdited)
	}

	wanted := make(map[string]struct{}, len(childNames))
	for _, name := range childNames {
		wanted[name] = struct{}{}
	}

	sibling := &Node{ID: t.allocID(), Name: newName, ParentID: parent.ParentID, State: model.StateRefined}
	t.nodes[sibling.ID] = sibling
	if parent.ParentID == "" {
		t.roots = append(t.roots, sibling.ID)
	} else if gp, ok := t.nodes[parent.ParentID]; ok {
		gp.Children = append(gp.Children, sibling.ID)
	}

	var kept []string
	for _, childID := range parent.Children {
		child, ok := t.nodes[childID]
		if !ok {
			continue
		}
		if _, match := wanted[child.Name]; match {
			child.ParentID = sibling.ID
			sibling.Children = append(sibling.Children, childID)
		} else {
			kept = append(kept, childID)
		}
	}
	parent.Children = kept
	return sibling, nil
}

// Prune removes id and its entire subtree, refusing if any node in the
// subtree is user-edited (§4.8 pruning).
func (t *Tree) Prune(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hasUserEditedDescendant(id) {
		return errs.New(errs.KindGuardrail, "taxonomy.Prune", errs.ErrUserEdited)
	}
	t.removeSubtreeLocked(id)
	return nil
}

func (t *Tree) hasUserEditedDescendant(id string) bool {
	n, ok := t.nodes[id]
	if !ok {
		return false
	}
	if n.State == model.StateUserEdited {
		return true
	}
	for _, childID := range n.Children {
		if t.hasUserEditedDescendant(childID) {
			return true
		}
	}
	return false
}

func (t *Tree) removeSubtreeLocked(id string) {
	n, ok := t.nodes[id]
	if !ok {
		return
	}
	for _, childID := range n.Children {
		t.removeSubtreeLocked(childID)
	}
	t.removeLocked(id)
}

func (t *Tree) removeLocked(id string) {
	n, ok := t.nodes[id]
	if !ok {
		return
	}
	if n.ParentID == "" {
		t.roots = removeString(t.roots, id)
	} else if parent, ok := t.nodes[n.ParentID]; ok {
		parent.Children = removeString(parent.Children, id)
	}
	delete(t.nodes, id)
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

var errNodeTooDeep = errors.New("node exceeds configured taxonomy depth")

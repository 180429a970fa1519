// Package hierarchy reconstructs the folder tree from flat session records and
// applies structural edits to it.
//
// Nodes live in an arena addressed by NodeID. Removed nodes are tombstoned and
// their IDs are never handed out again, so an ID held by a caller either names
// the node it was issued for or reports not-found.
package hierarchy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/iammorganparry/clive/apps/sessions/internal/models"
)

// NodeID addresses a node in a Tree.
type NodeID int

// RootID is the root folder. It always exists.
const RootID NodeID = 0

// Options control how folder paths map onto the tree.
type Options struct {
	RootName  string
	Separator string
	// Protected lists folder paths that are never pruned. Entries may omit the root name.
	Protected []string
}

type node struct {
	entry    models.Entry
	parent   NodeID
	children []NodeID
	removed  bool
	// fold caches models.SortKey of entry.
	fold string
	// copied marks a session cloned by Copy. It shares its record key with the
	// original and is never written back.
	copied bool
}

// Tree is the folder hierarchy. It is not safe for concurrent use.
type Tree struct {
	opts  Options
	nodes []node
}

// New returns a tree holding only the root folder.
func New(opts Options) *Tree {
	t := &Tree{opts: opts}
	root := &models.Folder{Name: opts.RootName, Path: opts.RootName}
	t.nodes = append(t.nodes, node{
		entry:  root,
		fold:   models.SortKey(root),
		parent: -1,
	})
	return t
}

func (t *Tree) Options() Options { return t.opts }

func (t *Tree) live(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes) && !t.nodes[id].removed
}

func (t *Tree) check(id NodeID) error {
	if !t.live(id) {
		return fmt.Errorf("node %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// Entry returns the payload of a node, or nil if the node does not exist.
func (t *Tree) Entry(id NodeID) models.Entry {
	if !t.live(id) {
		return nil
	}
	return t.nodes[id].entry
}

// Folder returns the folder payload of id, or nil when id is not a live folder.
func (t *Tree) Folder(id NodeID) *models.Folder {
	f, _ := t.Entry(id).(*models.Folder)
	return f
}

// Parent returns the parent of id. The root has no parent.
func (t *Tree) Parent(id NodeID) (NodeID, bool) {
	if !t.live(id) || id == RootID {
		return 0, false
	}
	return t.nodes[id].parent, true
}

// Children returns the ordered children of id.
func (t *Tree) Children(id NodeID) []NodeID {
	if !t.live(id) {
		return nil
	}
	out := make([]NodeID, len(t.nodes[id].children))
	copy(out, t.nodes[id].children)
	return out
}

// IsAncestor reports whether a is a proper ancestor of b.
func (t *Tree) IsAncestor(a, b NodeID) bool {
	if !t.live(a) || !t.live(b) {
		return false
	}
	for p, ok := t.Parent(b); ok; p, ok = t.Parent(p) {
		if p == a {
			return true
		}
	}
	return false
}

// Len returns the number of live nodes including the root.
func (t *Tree) Len() int {
	n := 0
	for i := range t.nodes {
		if !t.nodes[i].removed {
			n++
		}
	}
	return n
}

// Walk visits id and its descendants in order. Returning false from fn skips
// the node's children.
func (t *Tree) Walk(id NodeID, fn func(id NodeID, depth int) bool) {
	if !t.live(id) {
		return
	}
	t.walk(id, 0, fn)
}

func (t *Tree) walk(id NodeID, depth int, fn func(NodeID, int) bool) {
	if !fn(id, depth) {
		return
	}
	for _, c := range t.nodes[id].children {
		t.walk(c, depth+1, fn)
	}
}

// Find returns the first node in tree order whose key matches.
func (t *Tree) Find(key string) (NodeID, bool) {
	found := NodeID(-1)
	t.Walk(RootID, func(id NodeID, _ int) bool {
		if found >= 0 {
			return false
		}
		if t.nodes[id].entry.Key() == key {
			found = id
			return false
		}
		return true
	})
	return found, found >= 0
}

// FindSession returns the node and session with the given record name.
func (t *Tree) FindSession(name string) (NodeID, *models.Session, bool) {
	if models.IsFolderKey(name) {
		return 0, nil, false
	}
	id, ok := t.Find(name)
	if !ok {
		return 0, nil, false
	}
	s, ok := t.nodes[id].entry.(*models.Session)
	return id, s, ok
}

// Sessions returns the sessions under a folder, in tree order.
func (t *Tree) Sessions(id NodeID, recursive bool) []*models.Session {
	var out []*models.Session
	t.Walk(id, func(n NodeID, depth int) bool {
		switch e := t.nodes[n].entry.(type) {
		case *models.Session:
			out = append(out, e)
		case *models.Folder:
			return depth == 0 || recursive
		}
		return true
	})
	return out
}

// SessionCount counts the sessions under a folder.
func (t *Tree) SessionCount(id NodeID, recursive bool) int {
	return len(t.Sessions(id, recursive))
}

// Structure maps every folder key to its ordered child keys. Two trees with the
// same structure render identically.
func (t *Tree) Structure() map[string][]string {
	out := make(map[string][]string)
	t.Walk(RootID, func(id NodeID, _ int) bool {
		n := &t.nodes[id]
		if _, ok := n.entry.(*models.Folder); !ok {
			return true
		}
		keys := make([]string, 0, len(n.children))
		for _, c := range n.children {
			keys = append(keys, t.nodes[c].entry.Key())
		}
		out[n.entry.Key()] = keys
		return true
	})
	return out
}

// childPath is the folder path of a child folder named name under parent.
func (t *Tree) childPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + t.opts.Separator + name
}

func (t *Tree) protected(path string) bool {
	for _, p := range t.opts.Protected {
		if p == path || t.childPath(t.opts.RootName, p) == path {
			return true
		}
	}
	return false
}

func (t *Tree) add(parent NodeID, e models.Entry) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, node{entry: e, fold: models.SortKey(e), parent: parent})
	t.attach(parent, id)
	return id
}

// attach inserts id into parent's children at its sorted position.
func (t *Tree) attach(parent, id NodeID) {
	kids := t.nodes[parent].children
	n := &t.nodes[id]
	key := n.entry.Key()
	i := sort.Search(len(kids), func(i int) bool {
		k := &t.nodes[kids[i]]
		return models.CompareFolded(k.fold, k.entry.Key(), n.fold, key) > 0
	})
	kids = append(kids, 0)
	copy(kids[i+1:], kids[i:])
	kids[i] = id
	t.nodes[parent].children = kids
	t.nodes[id].parent = parent
}

func (t *Tree) detach(id NodeID) {
	p := t.nodes[id].parent
	kids := t.nodes[p].children
	for i, c := range kids {
		if c == id {
			t.nodes[p].children = append(kids[:i:i], kids[i+1:]...)
			return
		}
	}
}

// tombstone removes id and its subtree from the arena.
func (t *Tree) tombstone(id NodeID) {
	for _, c := range t.nodes[id].children {
		t.tombstone(c)
	}
	t.nodes[id].removed = true
	t.nodes[id].children = nil
}

// childFolder finds a direct child folder of parent by key.
func (t *Tree) childFolder(parent NodeID, key string) (NodeID, bool) {
	for _, c := range t.nodes[parent].children {
		if _, ok := t.nodes[c].entry.(*models.Folder); ok && t.nodes[c].entry.Key() == key {
			return c, true
		}
	}
	return 0, false
}

// String renders the tree as an indented outline.
func (t *Tree) String() string {
	var sb strings.Builder
	t.Walk(RootID, func(id NodeID, depth int) bool {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(t.nodes[id].entry.Display())
		sb.WriteByte('\n')
		return true
	})
	return sb.String()
}

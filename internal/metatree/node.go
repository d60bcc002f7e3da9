// Package metatree implements the metadata tree (spec.md section 4.1):
// a mirror of a system tree carrying per-node (uid, gid, mode), and the
// permission-compaction algorithm that turns it into a minimal sequence
// of set_perm / set_perm_recursive emissions.
//
// A Tree is scoped to one archive scan. Incremental composition uses two
// independent Tree instances (spec.md section 9's process-wide index
// hazard note) rather than one shared index.
package metatree

import (
	"sort"
	"strings"
)

// RootPath is the sentinel path of the tree root: it has no parent and is
// always a directory.
const RootPath = ""

// Node mirrors one path of the system tree. Owner/group/mode are unset
// (negative) until Resolve runs.
type Node struct {
	Path        string
	IsDirectory bool

	UID  int
	GID  int
	Mode int

	parent   *Node
	children []*Node

	// descendants aggregates (uid, gid, dmode-or-fmode) tuple counts over
	// the reachable descendants of a directory node. Populated by Compact.
	descendants map[tupleKey]int

	// bestSubtree is the (uid, gid, dmode, fmode) tuple chosen by
	// permission compaction. Only meaningful for directories, after
	// Compact.
	bestSubtree Subtree
}

// Subtree is the (uid, gid, dmode, fmode) tuple a directory's recursive
// permission default covers.
type Subtree struct {
	UID, GID   int
	DMode      int
	FMode      int
}

type tupleKey struct {
	uid, gid int
	isDir    bool
	mode     int
}

const unset = -1

// Tree is the process-scoped index of one archive scan.
type Tree struct {
	nodes map[string]*Node
	root  *Node
}

// New returns an empty tree with a root sentinel directory.
func New() *Tree {
	root := &Node{Path: RootPath, IsDirectory: true, UID: unset, GID: unset, Mode: unset}
	return &Tree{
		nodes: map[string]*Node{RootPath: root},
		root:  root,
	}
}

// Root returns the root sentinel node.
func (t *Tree) Root() *Node { return t.root }

// Lookup returns the node at path, if any.
func (t *Tree) Lookup(path string) (*Node, bool) {
	n, ok := t.nodes[path]
	return n, ok
}

// EnsureNode returns the node at path, creating it (and any missing
// intermediate directory ancestors) on demand. isDirectory only affects
// the leaf; intermediate ancestors are always directories.
func (t *Tree) EnsureNode(path string, isDirectory bool) *Node {
	path = strings.Trim(path, "/")
	if path == RootPath {
		return t.root
	}
	if n, ok := t.nodes[path]; ok {
		if isDirectory {
			n.IsDirectory = true
		}
		return n
	}

	parentPath := RootPath
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		parentPath = path[:idx]
	}
	parent := t.EnsureNode(parentPath, true)

	node := &Node{
		Path:        path,
		IsDirectory: isDirectory,
		UID:         unset,
		GID:         unset,
		Mode:        unset,
		parent:      parent,
	}
	t.nodes[path] = node
	parent.children = append(parent.children, node)
	return node
}

// SetMetadata assigns resolved owner/group/mode to the node at path, if
// it exists. Unknown paths are silently ignored: fs_config may describe
// entries the SYSTEM/ enumeration never created (e.g. for other
// partitions), and the reverse is a warning the caller surfaces, not a
// tree-level error.
func (t *Tree) SetMetadata(path string, uid, gid, mode int) bool {
	path = strings.Trim(path, "/")
	n, ok := t.nodes[path]
	if !ok {
		return false
	}
	n.UID, n.GID, n.Mode = uid, gid, mode
	return true
}

// SortChildren sorts every directory's children lexicographically by
// name, required for deterministic script output (spec.md invariant 2).
func (t *Tree) SortChildren() {
	for _, n := range t.nodes {
		if !n.IsDirectory || len(n.children) < 2 {
			continue
		}
		sort.Slice(n.children, func(i, j int) bool {
			return n.children[i].Path < n.children[j].Path
		})
	}
}

// Children returns a node's children in their current order.
func (n *Node) Children() []*Node { return n.children }

// Parent returns a node's parent, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Resolved reports whether a node's metadata has been set.
func (n *Node) Resolved() bool { return n.UID != unset && n.GID != unset && n.Mode != unset }

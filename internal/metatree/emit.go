package metatree

// PermOpKind distinguishes the two installer DSL primitives the
// permission plan emits (spec.md section 4.1, "Emission").
type PermOpKind int

const (
	// SetPermRecursive sets (uid, gid, dmode, fmode) for path and every
	// descendant.
	SetPermRecursive PermOpKind = iota
	// SetPerm sets (uid, gid, mode) for exactly one path.
	SetPerm
)

// PermOp is one emitted permission-plan record. Device-absolute path
// (leading "/") is left to the caller; Path here is tree-relative
// ("system/a/b.txt").
type PermOp struct {
	Kind  PermOpKind
	Path  string
	UID   int
	GID   int
	DMode int // meaningful for SetPermRecursive; SetPerm on a directory carries its mode in Mode
	FMode int // meaningful for SetPermRecursive
	Mode  int // meaningful for SetPerm
}

// sentinelContext matches nothing, per spec.md's "root's context as a
// sentinel (-1,-1,-1,-1)" correctness condition.
var sentinelContext = Subtree{UID: -1, GID: -1, DMode: -1, FMode: -1}

// EmitPermissionPlan performs the single traversal from the system root
// described in spec.md section 4.1 "Emission", returning the ordered
// PermOp sequence. Must be called after Resolve and Compact.
func EmitPermissionPlan(root *Node) []PermOp {
	var ops []PermOp
	for _, child := range root.children {
		emitNode(child, sentinelContext, &ops)
	}
	return ops
}

func emitNode(n *Node, context Subtree, ops *[]PermOp) {
	if n.IsDirectory {
		active := context
		if n.bestSubtree != context {
			*ops = append(*ops, PermOp{
				Kind: SetPermRecursive, Path: n.Path,
				UID: n.bestSubtree.UID, GID: n.bestSubtree.GID,
				DMode: n.bestSubtree.DMode, FMode: n.bestSubtree.FMode,
			})
			active = n.bestSubtree
		}
		if n.UID != active.UID || n.GID != active.GID || n.Mode != active.DMode {
			*ops = append(*ops, PermOp{
				Kind: SetPerm, Path: n.Path,
				UID: n.UID, GID: n.GID, Mode: n.Mode,
			})
		}
		for _, c := range n.children {
			emitNode(c, active, ops)
		}
		return
	}

	if n.UID != context.UID || n.GID != context.GID || n.Mode != context.FMode {
		*ops = append(*ops, PermOp{
			Kind: SetPerm, Path: n.Path,
			UID: n.UID, GID: n.GID, Mode: n.Mode,
		})
	}
}

package metatree

// tupleEntry is one reachable-descendant record: a directory contributes
// (uid, gid, mode, isDir=true); a file contributes (uid, gid, mode,
// isDir=false). spec.md section 3's "descendants" multiset.
type tupleEntry struct {
	uid, gid int
	isDir    bool
	mode     int
}

// fallbackDMode/fallbackFMode seed the mode tally when a directory has no
// descendant of the matching kind under its best owner (e.g. a leaf
// directory containing only files has no directory descendants at all).
// spec.md is silent on this corner; these match the conventional Android
// defaults and only ever matter when set_perm_recursive's unused slot is
// never applied to any real node.
const (
	fallbackDMode = 0o755
	fallbackFMode = 0o644
)

// Compact walks the tree bottom-up computing, for every directory, its
// descendants multiset and best_subtree per spec.md section 4.1. Must be
// called after Resolve. Requires SortChildren to already have run so
// "first encountered in iteration order" ties resolve deterministically.
func (t *Tree) Compact() {
	t.compactNode(t.root)
}

// compactNode returns the full reachable-descendant list for n, computing
// and caching n.descendants / n.bestSubtree along the way for directories.
func (t *Tree) compactNode(n *Node) []tupleEntry {
	if !n.IsDirectory {
		return nil
	}

	var list []tupleEntry
	for _, c := range n.children {
		list = append(list, tupleEntry{uid: c.UID, gid: c.GID, isDir: c.IsDirectory, mode: c.Mode})
		if c.IsDirectory {
			list = append(list, t.compactNode(c)...)
		}
	}

	n.bestSubtree = bestSubtreeOf(list)
	n.descendants = tallyTuples(list)
	return list
}

func tallyTuples(list []tupleEntry) map[tupleKey]int {
	counts := map[tupleKey]int{}
	for _, e := range list {
		counts[tupleKey{uid: e.uid, gid: e.gid, isDir: e.isDir, mode: e.mode}]++
	}
	return counts
}

// bestSubtreeOf implements spec.md 4.1 steps 2-4: best_owner by largest
// count (ties: first encountered), then best_dmode/best_fmode by most
// common mode among that owner's descendants (ties: last seen wins, via
// ">=").
func bestSubtreeOf(list []tupleEntry) Subtree {
	type ownerKey struct{ uid, gid int }

	ownerCounts := map[ownerKey]int{}
	var ownerOrder []ownerKey
	for _, e := range list {
		k := ownerKey{e.uid, e.gid}
		if _, seen := ownerCounts[k]; !seen {
			ownerOrder = append(ownerOrder, k)
		}
		ownerCounts[k]++
	}

	best := ownerKey{0, 0}
	bestCount := -1
	for _, k := range ownerOrder {
		if ownerCounts[k] > bestCount {
			bestCount = ownerCounts[k]
			best = k
		}
	}

	dModeCounts := map[int]int{}
	fModeCounts := map[int]int{}
	var dModeOrder, fModeOrder []int
	for _, e := range list {
		if e.uid != best.uid || e.gid != best.gid {
			continue
		}
		if e.isDir {
			if _, seen := dModeCounts[e.mode]; !seen {
				dModeOrder = append(dModeOrder, e.mode)
			}
			dModeCounts[e.mode]++
		} else {
			if _, seen := fModeCounts[e.mode]; !seen {
				fModeOrder = append(fModeOrder, e.mode)
			}
			fModeCounts[e.mode]++
		}
	}

	dMode := fallbackDMode
	dBest := -1
	for _, m := range dModeOrder {
		if dModeCounts[m] >= dBest {
			dBest = dModeCounts[m]
			dMode = m
		}
	}

	fMode := fallbackFMode
	fBest := -1
	for _, m := range fModeOrder {
		if fModeCounts[m] >= fBest {
			fBest = fModeCounts[m]
			fMode = m
		}
	}

	return Subtree{UID: best.uid, GID: best.gid, DMode: dMode, FMode: fMode}
}

// BestSubtree returns a directory node's computed best_subtree. Zero
// value until Compact runs.
func (n *Node) BestSubtree() Subtree { return n.bestSubtree }

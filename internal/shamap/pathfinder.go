package shamap

// pathEntry records one step of a PathFinder walk: the inner node visited
// and the branch taken out of it towards the search key.
type pathEntry struct {
	inner  *InnerNode
	branch int
}

// PathFinder walks from a root towards a key, collecting the inner nodes
// visited along the way (§4.3). It terminates at an empty slot, at a leaf
// whose key matches, or at a leaf whose key differs (a collision).
type PathFinder struct {
	root NodeID
	key  [32]byte
	path []pathEntry

	endedAtNullBranch bool
	terminalBranch    int

	hasLeaf         bool
	didLeafKeyMatch bool
	leaf            *LeafNode
	leafParent      *InnerNode
	leafBranch      int
}

// newPathFinder walks root towards key, recording every inner node visited.
func newPathFinder(root *InnerNode, key [32]byte) (*PathFinder, error) {
	pf := &PathFinder{root: NewRootNodeID(), key: key}

	current := root
	depth := uint8(0)
	for {
		nodeID, err := CreateNodeID(depth, key)
		if err != nil {
			return nil, err
		}
		branch := int(SelectBranch(nodeID, key))

		child, err := current.Child(branch)
		if err != nil {
			return nil, err
		}
		pf.path = append(pf.path, pathEntry{inner: current, branch: branch})

		switch {
		case child == nil:
			pf.endedAtNullBranch = true
			pf.terminalBranch = branch
			return pf, nil

		case child.IsLeaf():
			leaf := child.(*LeafNode)
			pf.hasLeaf = true
			pf.leaf = leaf
			pf.leafParent = current
			pf.leafBranch = branch
			pf.didLeafKeyMatch = leaf.Item().Key() == key
			return pf, nil

		default:
			current = child.(*InnerNode)
			depth++
			if depth > MaxDepth {
				return nil, ErrMaxDepthExceeded
			}
		}
	}
}

// dirtyPath marks every inner node on the recorded path as dirty, so a
// subsequent GetHash call recomputes the hash chain up to the root (§4.2,
// §4.3's dirty_path).
func (pf *PathFinder) dirtyPath() {
	for _, e := range pf.path {
		e.inner.SetDirty(true)
	}
}

// copyOnWritePath walks the recorded path and, for every inner whose
// version differs from targetVersion, replaces it with a fresh copy
// stamped with targetVersion, splicing the copy into its parent's child
// slot (§4.6). It returns the (possibly new) root and rewrites pf.path in
// place to point at the copies, so collapsePath operates on the live tree.
func (pf *PathFinder) copyOnWritePath(root *InnerNode, targetVersion int64) (*InnerNode, error) {
	if len(pf.path) == 0 {
		return root, nil
	}

	newPath := make([]pathEntry, len(pf.path))
	var newRoot *InnerNode

	for i, e := range pf.path {
		node := e.inner
		if node.DoCow() && node.Version() != targetVersion {
			cloned, err := node.Clone()
			if err != nil {
				return nil, err
			}
			node = cloned.(*InnerNode)
			node.SetDoCow(true)
			node.SetVersion(targetVersion)
		}

		newPath[i] = pathEntry{inner: node, branch: e.branch}

		if i == 0 {
			newRoot = node
		} else {
			parent := newPath[i-1].inner
			if err := parent.SetChild(newPath[i-1].branch, node); err != nil {
				return nil, err
			}
		}
	}

	pf.path = newPath
	if pf.hasLeaf {
		pf.leafParent = newPath[len(newPath)-1].inner
	}
	return newRoot, nil
}

// collapsePath implements §4.5: walking the recorded path deepest-first,
// promote a sole leaf child into its parent's slot, freeing the
// now-redundant inner, and stop at the first inner that still qualifies to
// exist (>=2 children, or any inner child). The root is never removed.
func collapsePath(path []pathEntry) error {
	for i := len(path) - 1; i > 0; i-- {
		inner := path[i].inner
		child, branch, ok := inner.OnlyChildLeaf()
		if !ok {
			return nil
		}

		parent := path[i-1].inner
		parentBranch := path[i-1].branch
		if err := parent.SetChild(parentBranch, child); err != nil {
			return err
		}
		_ = branch // branch within inner is informative only; the grandparent slot is parentBranch
	}
	return nil
}

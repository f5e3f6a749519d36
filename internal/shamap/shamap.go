// Package shamap implements the radix-16 authenticated prefix trie described
// in the core specification: copy-on-write snapshots, path compression,
// lazy hashing, and pluggable per-node traits for out-of-core extensions.
package shamap

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/atomic"
)

// SetResult reports the outcome of a SetItem call (§4.4, §6).
type SetResult int

const (
	ResultFailed SetResult = iota
	ResultAdd
	ResultUpdate
)

func (r SetResult) String() string {
	switch r {
	case ResultAdd:
		return "ADD"
	case ResultUpdate:
		return "UPDATE"
	default:
		return "FAILED"
	}
}

// SetMode selects which of AddOnly/UpdateOnly/AddOrUpdate semantics
// SetItem applies (§4.4).
type SetMode int

const (
	AddOnly SetMode = iota
	UpdateOnly
	AddOrUpdate
)

// SHAMap is a single-threaded-per-instance radix-16 trie. Parallelism comes
// from taking independent Snapshots that share immutable subtrees (§5);
// SHAMap itself applies no internal locking beyond what is needed to make a
// single instance's own mutations atomic with respect to GetHash readers
// on the same instance.
type SHAMap struct {
	mu       sync.Mutex
	root     *InnerNode
	leafKind NodeType

	// sharedVersion is the one atomic integer shared across a SHAMap and
	// all of its snapshots (§5, §4.6).
	sharedVersion *atomic.Int64
	myVersion     int64
}

// New creates an empty SHAMap whose leaves are all of the given kind.
// CoW is enabled unconditionally from construction (Open Question decision
// 2 in DESIGN.md: §9 recommends making CoW the default and removing the
// lazy enable-on-first-snapshot path).
func New(leafKind NodeType) (*SHAMap, error) {
	if leafKind == NodeTypeInner {
		return nil, fmt.Errorf("shamap: leaf kind must not be NodeTypeInner")
	}

	root := NewInnerNode()
	root.SetDoCow(true)

	sv := atomic.NewInt64(0)

	m := &SHAMap{
		root:          root,
		leafKind:      leafKind,
		sharedVersion: sv,
		myVersion:     0,
	}
	return m, nil
}

// Type returns the leaf kind this map stores.
func (m *SHAMap) Type() NodeType { return m.leafKind }

// EnableCow exists for §6 interface compatibility; CoW is always on
// (decision 2 in DESIGN.md), so this is a no-op.
func (m *SHAMap) EnableCow(bool) {}

// GetHash returns the root hash, resolving any stale cache lazily (§4.2).
// An empty map's hash is the zero hash.
func (m *SHAMap) GetHash() ([32]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.root.IsDirty() {
		if err := m.root.UpdateHash(); err != nil {
			return [32]byte{}, err
		}
	}
	return m.root.Hash(), nil
}

// GetChildHash returns the hash of the root's branch-th child, or the zero
// hash if that branch is empty.
func (m *SHAMap) GetChildHash(branch int) ([32]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	child, err := m.root.Child(branch)
	if err != nil {
		return [32]byte{}, err
	}
	if child == nil {
		return [32]byte{}, nil
	}
	if child.IsDirty() {
		if err := child.UpdateHash(); err != nil {
			return [32]byte{}, err
		}
	}
	return child.Hash(), nil
}

// Get returns the item stored under key, or nil if absent.
func (m *SHAMap) Get(key [32]byte) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pf, err := newPathFinder(m.root, key)
	if err != nil {
		return nil, err
	}
	if pf.hasLeaf && pf.didLeafKeyMatch {
		return pf.leaf.Item(), nil
	}
	return nil, nil
}

// Has reports whether key is present.
func (m *SHAMap) Has(key [32]byte) (bool, error) {
	item, err := m.Get(key)
	if err != nil {
		return false, err
	}
	return item != nil, nil
}

// AddItem is a convenience wrapper over SetItem(item, AddOnly) (§6).
func (m *SHAMap) AddItem(item *Item) (SetResult, error) {
	return m.SetItem(item, AddOnly)
}

// UpdateItem is a convenience wrapper over SetItem(item, UpdateOnly) (§6).
func (m *SHAMap) UpdateItem(item *Item) (SetResult, error) {
	return m.SetItem(item, UpdateOnly)
}

// SetItem implements §4.4's insert/update/collision algorithm. Shape
// violations are caught here and reported as ResultFailed rather than
// propagated, per §7's propagation policy; only genuinely exceptional
// conditions (e.g. a nil item) surface as errors.
func (m *SHAMap) SetItem(item *Item, mode SetMode) (result SetResult, err error) {
	if item == nil {
		return ResultFailed, ErrNilItem
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			result, err = ResultFailed, fmt.Errorf("shamap: set_item panic: %v", r)
		}
	}()

	key := item.Key()
	pf, perr := newPathFinder(m.root, key)
	if perr != nil {
		return ResultFailed, nil
	}

	newRoot, cerr := pf.copyOnWritePath(m.root, m.myVersion)
	if cerr != nil {
		return ResultFailed, nil
	}
	m.root = newRoot

	switch {
	case pf.endedAtNullBranch:
		if mode == UpdateOnly {
			return ResultFailed, nil
		}
		leaf, lerr := CreateLeafNode(m.leafKind, item)
		if lerr != nil {
			return ResultFailed, nil
		}
		parent := pf.path[len(pf.path)-1].inner
		if serr := parent.SetChild(pf.terminalBranch, leaf); serr != nil {
			return ResultFailed, nil
		}
		result = ResultAdd

	case pf.hasLeaf && pf.didLeafKeyMatch:
		if mode == AddOnly {
			return ResultFailed, nil
		}
		newLeaf, lerr := CreateLeafNode(m.leafKind, item)
		if lerr != nil {
			return ResultFailed, nil
		}
		if serr := pf.leafParent.SetChild(pf.leafBranch, newLeaf); serr != nil {
			return ResultFailed, nil
		}
		result = ResultUpdate

	case pf.hasLeaf && !pf.didLeafKeyMatch:
		if mode == UpdateOnly {
			return ResultFailed, nil
		}
		if serr := m.resolveCollision(pf, item); serr != nil {
			return ResultFailed, nil
		}
		result = ResultAdd

	default:
		return ResultFailed, nil
	}

	pf.dirtyPath()
	if cerr := collapsePath(pf.path); cerr != nil {
		return ResultFailed, nil
	}
	return result, nil
}

// resolveCollision implements §4.4 step 3's colliding-leaf branch: descend
// both keys one nibble at a time, building a chain of new inner nodes,
// until the keys diverge or depth 64 is reached without divergence (a hard
// failure — the keys would have to be equal).
func (m *SHAMap) resolveCollision(pf *PathFinder, newItem *Item) error {
	existingLeaf := pf.leaf
	existingItem := existingLeaf.Item()

	startDepth := uint8(len(pf.path))
	divergence := FindDivergenceDepth(existingItem.Key(), newItem.Key(), startDepth)
	if divergence >= MaxDepth {
		return ErrKeysEqual
	}

	newLeaf, err := CreateLeafNode(m.leafKind, newItem)
	if err != nil {
		return err
	}

	// Build the chain of intermediate inners from the divergence depth back
	// up to the insertion point, then splice the top of the chain into the
	// parent that previously held the colliding leaf.
	existingBranch := int(selectBranchAt(divergence, existingItem.Key()))
	newBranch := int(selectBranchAt(divergence, newItem.Key()))

	bottom := NewInnerNode()
	bottom.SetDoCow(true)
	bottom.SetVersion(pf.leafParent.Version())
	if err := bottom.SetChild(existingBranch, existingLeaf); err != nil {
		return err
	}
	if err := bottom.SetChild(newBranch, newLeaf); err != nil {
		return err
	}

	current := bottom
	for d := int(divergence) - 1; d >= int(startDepth); d-- {
		branch := int(selectBranchAt(uint8(d), existingItem.Key()))
		wrapper := NewInnerNode()
		wrapper.SetDoCow(true)
		wrapper.SetVersion(pf.leafParent.Version())
		if err := wrapper.SetChild(branch, current); err != nil {
			return err
		}
		current = wrapper
	}

	return pf.leafParent.SetChild(pf.leafBranch, current)
}

// RemoveItem removes key if present, reporting whether anything was
// removed (§4.4, §6).
func (m *SHAMap) RemoveItem(key [32]byte) (removed bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			removed, err = false, nil
		}
	}()

	pf, perr := newPathFinder(m.root, key)
	if perr != nil {
		return false, nil
	}
	if !pf.hasLeaf || !pf.didLeafKeyMatch {
		return false, nil
	}

	newRoot, cerr := pf.copyOnWritePath(m.root, m.myVersion)
	if cerr != nil {
		return false, nil
	}
	m.root = newRoot

	if serr := pf.leafParent.SetChild(pf.leafBranch, nil); serr != nil {
		return false, nil
	}

	pf.dirtyPath()
	if cerr := collapsePath(pf.path); cerr != nil {
		return false, nil
	}
	return true, nil
}

// Snapshot freezes the current state and returns a second map sharing all
// nodes with this one (§4.6). Both maps subsequently diverge by
// copy-on-write as each is mutated.
func (m *SHAMap) Snapshot() (*SHAMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	originalVersion := m.sharedVersion.Add(1)
	snapshotVersion := m.sharedVersion.Add(1)

	m.myVersion = originalVersion

	snap := &SHAMap{
		root:          m.root,
		leafKind:      m.leafKind,
		sharedVersion: m.sharedVersion,
		myVersion:     snapshotVersion,
	}
	return snap, nil
}

// Root returns the map's root node, for callers that need to walk the
// tree directly (the serialized-inners writer's depth-first pass).
func (m *SHAMap) Root() *InnerNode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.root
}

// VisitItems calls f for every leaf item in ascending key order (§6).
// Traversal stops early if f returns false.
func (m *SHAMap) VisitItems(f func(*Item) bool) error {
	m.mu.Lock()
	root := m.root
	m.mu.Unlock()

	items, err := collectItems(root)
	if err != nil {
		return err
	}
	sort.Slice(items, func(i, j int) bool {
		ki, kj := items[i].Key(), items[j].Key()
		for b := 0; b < 32; b++ {
			if ki[b] != kj[b] {
				return ki[b] < kj[b]
			}
		}
		return false
	})
	for _, item := range items {
		if !f(item) {
			break
		}
	}
	return nil
}

func collectItems(node Node) ([]*Item, error) {
	if node == nil {
		return nil, nil
	}
	if node.IsLeaf() {
		leaf := node.(*LeafNode)
		return []*Item{leaf.Item()}, nil
	}

	inner := node.(*InnerNode)
	var out []*Item
	for i := 0; i < 16; i++ {
		child, err := inner.Child(i)
		if err != nil {
			return nil, err
		}
		if child == nil {
			continue
		}
		childItems, err := collectItems(child)
		if err != nil {
			return nil, err
		}
		out = append(out, childItems...)
	}
	return out, nil
}

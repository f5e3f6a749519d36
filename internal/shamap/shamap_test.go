package shamap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catl-tools/catld/internal/hashing"
	"github.com/catl-tools/catld/internal/protocol"
)

func keyOf(b byte) [32]byte {
	var k [32]byte
	for i := range k {
		k[i] = b
	}
	return k
}

// S1: a fresh account-state map hashes to the zero hash.
func TestEmptyMapHashIsZero(t *testing.T) {
	m, err := New(NodeTypeAccountState)
	require.NoError(t, err)

	h, err := m.GetHash()
	require.NoError(t, err)
	require.Equal(t, [32]byte{}, h)
}

// S2: a single leaf's root hash is computable from first principles.
func TestSingleLeafHash(t *testing.T) {
	m, err := New(NodeTypeAccountState)
	require.NoError(t, err)

	key := keyOf(0x11)
	item := NewItem(key, []byte("abc"))

	result, err := m.AddItem(item)
	require.NoError(t, err)
	require.Equal(t, ResultAdd, result)

	leafHash := hashing.Sum512HalfMulti(protocol.HashPrefixLeafNode[:], []byte("abc"), key[:])

	var concatChildren []byte
	concatChildren = append(concatChildren, protocol.HashPrefixInnerNode[:]...)
	for i := 0; i < 16; i++ {
		if i == 1 { // 0x11's high nibble is 1
			concatChildren = append(concatChildren, leafHash[:]...)
		} else {
			var zero [32]byte
			concatChildren = append(concatChildren, zero[:]...)
		}
	}
	want := hashing.Sum512Half(concatChildren)

	got, err := m.GetHash()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

// S3: two keys agreeing on the first two nibbles produce a chain of
// single-branch inners at depths 0 and 1, then a depth-2 inner holding both
// leaves where they diverge.
func TestCollisionCreatesChain(t *testing.T) {
	m, err := New(NodeTypeAccountState)
	require.NoError(t, err)

	var k1, k2 [32]byte
	k1[0] = 0xAB
	k1[1] = 0x00
	k2[0] = 0xAB
	k2[1] = 0xFF

	_, err = m.AddItem(NewItem(k1, []byte("v1")))
	require.NoError(t, err)
	_, err = m.AddItem(NewItem(k2, []byte("v2")))
	require.NoError(t, err)

	got1, err := m.Get(k1)
	require.NoError(t, err)
	require.NotNil(t, got1)
	require.Equal(t, []byte("v1"), got1.DataUnsafe())

	got2, err := m.Get(k2)
	require.NoError(t, err)
	require.NotNil(t, got2)
	require.Equal(t, []byte("v2"), got2.DataUnsafe())

	depth0 := m.root
	require.Equal(t, 1, depth0.BranchCount())
	child, err := depth0.Child(0xA)
	require.NoError(t, err)
	require.True(t, child.IsInner())

	depth1 := child.(*InnerNode)
	require.Equal(t, 1, depth1.BranchCount())
	child2, err := depth1.Child(0xB)
	require.NoError(t, err)
	require.True(t, child2.IsInner())

	depth2 := child2.(*InnerNode)
	require.Equal(t, 2, depth2.BranchCount())
	leaf0, err := depth2.Child(0x0)
	require.NoError(t, err)
	require.True(t, leaf0.IsLeaf())
	leafF, err := depth2.Child(0xF)
	require.NoError(t, err)
	require.True(t, leafF.IsLeaf())
}

// S4: snapshot isolation — mutating the original after a snapshot must not
// affect the snapshot's view, and vice versa.
func TestSnapshotIsolation(t *testing.T) {
	m, err := New(NodeTypeAccountState)
	require.NoError(t, err)

	k1, k2, k3 := keyOf(0x01), keyOf(0x02), keyOf(0x03)

	_, err = m.AddItem(NewItem(k1, []byte("v1")))
	require.NoError(t, err)

	snap, err := m.Snapshot()
	require.NoError(t, err)

	_, err = m.AddItem(NewItem(k2, []byte("v2")))
	require.NoError(t, err)

	_, err = snap.AddItem(NewItem(k3, []byte("v3")))
	require.NoError(t, err)

	// Original sees {k1, k2}, not k3.
	has, _ := m.Has(k2)
	require.True(t, has)
	has, _ = m.Has(k3)
	require.False(t, has)

	// Snapshot sees {k1, k3}, not k2.
	has, _ = snap.Has(k3)
	require.True(t, has)
	has, _ = snap.Has(k2)
	require.False(t, has)

	origHash, err := m.GetHash()
	require.NoError(t, err)
	snapHash, err := snap.GetHash()
	require.NoError(t, err)
	require.NotEqual(t, origHash, snapHash)

	// Adding k3 to the snapshot-side map... now re-adding k2 to the
	// snapshot should converge it to the same set {k1,k2,k3} the original
	// would reach by also adding k3.
	_, err = snap.AddItem(NewItem(k2, []byte("v2")))
	require.NoError(t, err)
	_, err = m.AddItem(NewItem(k3, []byte("v3")))
	require.NoError(t, err)

	finalOrig, err := m.GetHash()
	require.NoError(t, err)
	finalSnap, err := snap.GetHash()
	require.NoError(t, err)
	require.Equal(t, finalOrig, finalSnap)
}

func TestAddThenRemoveRestoresHash(t *testing.T) {
	m, err := New(NodeTypeAccountState)
	require.NoError(t, err)

	before, err := m.GetHash()
	require.NoError(t, err)

	k := keyOf(0x42)
	_, err = m.AddItem(NewItem(k, []byte("hello")))
	require.NoError(t, err)

	removed, err := m.RemoveItem(k)
	require.NoError(t, err)
	require.True(t, removed)

	after, err := m.GetHash()
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestGetHashIsPure(t *testing.T) {
	m, err := New(NodeTypeAccountState)
	require.NoError(t, err)
	_, err = m.AddItem(NewItem(keyOf(0x07), []byte("x")))
	require.NoError(t, err)

	h1, err := m.GetHash()
	require.NoError(t, err)
	h2, err := m.GetHash()
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestOrderIndependence(t *testing.T) {
	items := []*Item{
		NewItem(keyOf(0x01), []byte("a")),
		NewItem(keyOf(0x02), []byte("b")),
		NewItem(keyOf(0x03), []byte("c")),
	}

	m1, err := New(NodeTypeAccountState)
	require.NoError(t, err)
	for _, it := range items {
		_, err := m1.AddItem(it)
		require.NoError(t, err)
	}

	m2, err := New(NodeTypeAccountState)
	require.NoError(t, err)
	for i := len(items) - 1; i >= 0; i-- {
		clone, err := items[i].Clone()
		require.NoError(t, err)
		_, err = m2.AddItem(clone)
		require.NoError(t, err)
	}

	h1, err := m1.GetHash()
	require.NoError(t, err)
	h2, err := m2.GetHash()
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestAddOnlyFailsOnDuplicate(t *testing.T) {
	m, err := New(NodeTypeAccountState)
	require.NoError(t, err)

	k := keyOf(0x09)
	res, err := m.SetItem(NewItem(k, []byte("1")), AddOnly)
	require.NoError(t, err)
	require.Equal(t, ResultAdd, res)

	res, err = m.SetItem(NewItem(k, []byte("2")), AddOnly)
	require.NoError(t, err)
	require.Equal(t, ResultFailed, res)
}

func TestUpdateOnlyFailsWhenMissing(t *testing.T) {
	m, err := New(NodeTypeAccountState)
	require.NoError(t, err)

	res, err := m.SetItem(NewItem(keyOf(0x0A), []byte("1")), UpdateOnly)
	require.NoError(t, err)
	require.Equal(t, ResultFailed, res)
}

func TestVisitItemsInOrder(t *testing.T) {
	m, err := New(NodeTypeAccountState)
	require.NoError(t, err)

	for _, b := range []byte{0x05, 0x01, 0x09, 0x03} {
		_, err := m.AddItem(NewItem(keyOf(b), []byte{b}))
		require.NoError(t, err)
	}

	var seen []byte
	err = m.VisitItems(func(it *Item) bool {
		seen = append(seen, it.Key()[0])
		return true
	})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x03, 0x05, 0x09}, seen)
}

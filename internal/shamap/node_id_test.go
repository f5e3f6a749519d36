package shamap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectBranchEvenOddDepth(t *testing.T) {
	var key [32]byte
	key[0] = 0xAB

	root := NewRootNodeID()
	require.EqualValues(t, 0xA, SelectBranch(root, key))

	child, err := root.ChildNodeID(0xA)
	require.NoError(t, err)
	require.EqualValues(t, 0xB, SelectBranch(child, key))
}

func TestChildThenParentRoundTrips(t *testing.T) {
	root := NewRootNodeID()
	child, err := root.ChildNodeID(7)
	require.NoError(t, err)
	require.EqualValues(t, 1, child.Depth())

	parent, err := child.ParentNodeID()
	require.NoError(t, err)
	require.True(t, parent.Equal(root))
}

func TestParentOfRootErrors(t *testing.T) {
	_, err := NewRootNodeID().ParentNodeID()
	require.ErrorIs(t, err, ErrRootHasNoParent)
}

func TestChildNodeIDRejectsInvalidBranch(t *testing.T) {
	_, err := NewRootNodeID().ChildNodeID(16)
	require.ErrorIs(t, err, ErrInvalidBranch)
}

func TestFindDivergenceDepth(t *testing.T) {
	var k1, k2 [32]byte
	k1[0], k1[1] = 0xAB, 0x00
	k2[0], k2[1] = 0xAB, 0xFF

	d := FindDivergenceDepth(k1, k2, 0)
	require.EqualValues(t, 2, d)
}

func TestFindDivergenceDepthIdenticalKeys(t *testing.T) {
	var k [32]byte
	k[0] = 0x11
	require.EqualValues(t, MaxDepth, FindDivergenceDepth(k, k, 0))
}

func TestBytesRoundTrip(t *testing.T) {
	var key [32]byte
	key[3] = 0x9C
	nodeID, err := CreateNodeID(10, key)
	require.NoError(t, err)

	data := nodeID.Bytes()
	require.Len(t, data, NodeIDSize)

	back, err := NodeIDFromBytes(data)
	require.NoError(t, err)
	require.True(t, nodeID.Equal(back))
}

func TestIsDescendantOf(t *testing.T) {
	var key [32]byte
	key[0] = 0xAB

	root := NewRootNodeID()
	depth1, err := root.ChildNodeID(0xA)
	require.NoError(t, err)
	depth2, err := depth1.ChildNodeID(0xB)
	require.NoError(t, err)

	require.True(t, depth2.IsDescendantOf(depth1))
	require.True(t, depth1.IsAncestorOf(depth2))
	require.False(t, depth1.IsDescendantOf(depth2))
}

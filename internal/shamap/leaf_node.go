package shamap

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/catl-tools/catld/internal/protocol"
)

// LeafNode is the single leaf-node variant described in §3: a reference to
// an Item plus a leaf-kind tag. The teacher repo modeled the three leaf
// kinds (account-state, transaction-no-meta, transaction-with-meta) as
// three near-identical Go types; here they collapse into one type carrying
// a kind tag, matching the data model's "leaf-kind tag" description and
// removing the duplicated hash/clone/serialize bodies.
type LeafNode struct {
	BaseNode
	mu   sync.RWMutex
	kind NodeType
	item *Item
}

// NewLeafNode creates a leaf of the given kind wrapping item, computing its
// initial hash.
func NewLeafNode(kind NodeType, item *Item) (*LeafNode, error) {
	if item == nil {
		return nil, ErrNilItem
	}
	if kind == NodeTypeInner {
		return nil, fmt.Errorf("shamap: %w: inner is not a leaf kind", ErrNilItem)
	}

	n := &LeafNode{BaseNode: newBaseNode(), kind: kind, item: item}
	if err := n.UpdateHash(); err != nil {
		return nil, fmt.Errorf("shamap: failed to hash new leaf: %w", err)
	}
	return n, nil
}

func (n *LeafNode) IsLeaf() bool  { return true }
func (n *LeafNode) IsInner() bool { return false }
func (n *LeafNode) Type() NodeType {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.kind
}

// Item returns the item held by this leaf.
func (n *LeafNode) Item() *Item {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.item
}

// SetItem replaces the leaf's item and recomputes its hash, reporting
// whether the hash changed.
func (n *LeafNode) SetItem(item *Item) (bool, error) {
	if item == nil {
		return false, ErrNilItem
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	oldHash := n.hash
	n.item = item
	if err := n.updateHashUnsafe(); err != nil {
		return false, fmt.Errorf("shamap: failed to update leaf hash: %w", err)
	}
	return n.hash != oldHash, nil
}

// UpdateHash recomputes the leaf's cached hash (§4.2).
func (n *LeafNode) UpdateHash() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.updateHashUnsafe()
}

func (n *LeafNode) updateHashUnsafe() error {
	if n.item == nil {
		return ErrNilItem
	}

	key := n.item.Key()
	switch n.kind {
	case NodeTypeAccountState:
		return n.setHash(protocol.HashPrefixLeafNode[:], n.item.DataUnsafe(), key[:])
	case NodeTypeTransactionWithMeta:
		return n.setHash(protocol.HashPrefixTxNode[:], n.item.DataUnsafe(), key[:])
	case NodeTypeTransactionNoMeta:
		return n.setHash(protocol.HashPrefixTxNode[:], n.item.DataUnsafe(), key[:])
	default:
		return fmt.Errorf("shamap: leaf has unknown kind %v", n.kind)
	}
}

// SerializeForWire emits the leaf record format from §4.9: 32-byte key,
// 4-byte packed size-and-flags (24-bit size, 1-bit compressed flag, 7 bits
// reserved), then data. The serialized-inners writer does not call this
// method: it builds its own leaf record in the same layout and sets the
// compressed flag itself when it compresses (§4.9). This method always
// emits the uncompressed form with the flag bits zero.
func (n *LeafNode) SerializeForWire() ([]byte, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.item == nil {
		return nil, ErrNilItem
	}

	key := n.item.Key()
	data := n.item.DataUnsafe()
	if len(data) > 1<<24-1 {
		return nil, fmt.Errorf("shamap: leaf data too large to serialize: %d bytes", len(data))
	}

	out := make([]byte, 0, 32+4+len(data))
	out = append(out, key[:]...)

	var sizeAndFlags [4]byte
	binary.BigEndian.PutUint32(sizeAndFlags[:], uint32(len(data))) // high byte (flags) stays 0: uncompressed
	out = append(out, sizeAndFlags[:]...)
	out = append(out, data...)
	return out, nil
}

// SerializeWithPrefix appends the leaf's wire-type tag so
// DeserializeNodeFromWire can dispatch on it.
func (n *LeafNode) SerializeWithPrefix() ([]byte, error) {
	body, err := n.SerializeForWire()
	if err != nil {
		return nil, err
	}

	n.mu.RLock()
	kind := n.kind
	n.mu.RUnlock()

	var tag byte
	switch kind {
	case NodeTypeAccountState:
		tag = wireTypeAccountState
	case NodeTypeTransactionNoMeta:
		tag = wireTypeTransaction
	case NodeTypeTransactionWithMeta:
		tag = wireTypeTransactionWithMeta
	default:
		return nil, fmt.Errorf("shamap: leaf has unknown kind %v", kind)
	}

	return append(body, tag), nil
}

// newLeafFromWire parses the record format written by SerializeForWire.
func newLeafFromWire(kind NodeType, data []byte) (Node, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("shamap: empty leaf wire data")
	}
	body := data[:len(data)-1] // strip the trailing type tag
	if len(body) < 36 {
		return nil, fmt.Errorf("shamap: leaf wire data too short: %d bytes", len(body))
	}

	var key [32]byte
	copy(key[:], body[:32])

	sizeAndFlags := binary.BigEndian.Uint32(body[32:36])
	size := sizeAndFlags & 0x00FFFFFF
	value := body[36:]
	if uint32(len(value)) != size {
		return nil, fmt.Errorf("shamap: leaf size mismatch: header says %d, have %d", size, len(value))
	}

	return NewLeafNode(kind, NewItem(key, value))
}

func (n *LeafNode) Invariants(isRoot bool) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.item == nil {
		return fmt.Errorf("shamap: leaf has nil item")
	}
	if n.IsZeroHash() {
		return fmt.Errorf("shamap: leaf has zero hash")
	}
	return nil
}

func (n *LeafNode) String(id NodeID) string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("LeafNode(%s) ID: %s\n", n.kind, id.String()))
	sb.WriteString(fmt.Sprintf("Hash: %s\n", hex.EncodeToString(n.hash[:])))
	if n.item != nil {
		key := n.item.Key()
		sb.WriteString(fmt.Sprintf("Key: %s\n", hex.EncodeToString(key[:])))
		sb.WriteString(fmt.Sprintf("Data size: %d bytes\n", n.item.Size()))
	}
	return sb.String()
}

// Clone produces an independent copy of the leaf, invoking the CoW trait
// hook on the new copy (§4.6).
func (n *LeafNode) Clone() (Node, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.item == nil {
		return nil, ErrNilItem
	}

	clone := &LeafNode{
		BaseNode: BaseNode{hash: n.hash, dirty: n.dirty, traits: n.traits.Clone()},
		kind:     n.kind,
		item:     n.item.Retain(),
	}
	clone.traits.OnCopied(n.traits)
	return clone, nil
}

// ItemFromLeafNode extracts the item from any Node that is a leaf,
// returning false if node is not a leaf.
func ItemFromLeafNode(node Node) (*Item, bool) {
	leaf, ok := node.(*LeafNode)
	if !ok {
		return nil, false
	}
	return leaf.Item(), true
}

// CreateLeafNode is the factory used by the trie mutators to build a leaf
// of the right kind for a given item.
func CreateLeafNode(kind NodeType, item *Item) (Node, error) {
	return NewLeafNode(kind, item)
}

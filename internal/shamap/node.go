package shamap

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/catl-tools/catld/internal/hashing"
)

// NodeType distinguishes the inner-node variant from the three leaf kinds
// named in §6's environment toggles.
type NodeType int

const (
	NodeTypeInner NodeType = iota + 1
	NodeTypeTransactionNoMeta
	NodeTypeTransactionWithMeta
	NodeTypeAccountState
)

// Leaf kind wire values, matching §6's tn* constants.
const (
	LeafKindAccountState      byte = 0x04
	LeafKindTransactionNoMeta byte = 0x02
	LeafKindTransactionWithMD byte = 0x03
	LeafKindRemove            byte = 0xFE
	LeafKindTerminal          byte = 0xFF
)

// Wire record type tags, the trailing byte of a node's serialized form
// (§4.9's inner/leaf record distinction extended to a self-describing tag
// so DeserializeNodeFromWire can dispatch without external context).
const (
	wireTypeInner               byte = 0x01
	wireTypeCompressedInner     byte = 0x02
	wireTypeAccountState        byte = 0x03
	wireTypeTransaction         byte = 0x04
	wireTypeTransactionWithMeta byte = 0x05
)

func (nt NodeType) String() string {
	switch nt {
	case NodeTypeInner:
		return "inner"
	case NodeTypeTransactionNoMeta:
		return "transaction"
	case NodeTypeTransactionWithMeta:
		return "transaction+meta"
	case NodeTypeAccountState:
		return "account_state"
	default:
		return fmt.Sprintf("unknown(%d)", int(nt))
	}
}

// Node is the common interface satisfied by InnerNode and the leaf node
// variants. Hashing is lazy (§4.2): UpdateHash recomputes only when dirty.
type Node interface {
	IsLeaf() bool
	IsInner() bool
	Hash() [32]byte
	Type() NodeType
	UpdateHash() error
	SerializeForWire() ([]byte, error)
	SerializeWithPrefix() ([]byte, error)
	String(nodeID NodeID) string
	Invariants(isRoot bool) error
	Clone() (Node, error)
	IsDirty() bool
	SetDirty(bool)
	Traits() Traits
}

// BaseNode holds the state shared by every node variant: a lazily valid
// cached hash and the dirty bit that invalidates it (§3, §4.2).
type BaseNode struct {
	hash   [32]byte
	dirty  bool
	traits Traits
}

func newBaseNode() BaseNode {
	return BaseNode{dirty: true, traits: NewDefaultTraits()}
}

// IsDirty reports whether the cached hash is stale.
func (b *BaseNode) IsDirty() bool { return b.dirty }

// SetDirty marks the cached hash valid (false) or stale (true).
func (b *BaseNode) SetDirty(d bool) { b.dirty = d }

// Hash returns the cached hash. Callers needing a fresh value must call
// UpdateHash first when IsDirty is true.
func (b *BaseNode) Hash() [32]byte { return b.hash }

// Traits returns the per-node out-of-core state (§3).
func (b *BaseNode) Traits() Traits { return b.traits }

// setHash computes SHA-512-half over the concatenation of data and caches
// it, clearing the dirty bit.
func (b *BaseNode) setHash(data ...[]byte) error {
	if len(data) == 0 {
		return ErrHashNoData
	}
	b.hash = hashing.Sum512HalfMulti(data...)
	b.dirty = false
	return nil
}

// String renders the base portion of a node's debug string.
func (b *BaseNode) String(id NodeID) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("NodeID: %s", id.String()))
	sb.WriteString(fmt.Sprintf(", Hash: %s", hex.EncodeToString(b.hash[:])))
	if b.dirty {
		sb.WriteString(", dirty")
	}
	return sb.String()
}

// IsZeroHash reports whether the cached hash is the all-zero sentinel used
// for an empty inner node (§4.2).
func (b *BaseNode) IsZeroHash() bool { return b.hash == [32]byte{} }

// DeserializeNodeFromWire dispatches on the trailing wire-type tag to
// reconstruct a Node from its serialized form (§4.9's record formats).
func DeserializeNodeFromWire(data []byte) (Node, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("shamap: empty wire data")
	}

	switch data[len(data)-1] {
	case wireTypeInner, wireTypeCompressedInner:
		return newInnerNodeFromWire(data)
	case wireTypeAccountState:
		return newLeafFromWire(NodeTypeAccountState, data)
	case wireTypeTransaction:
		return newLeafFromWire(NodeTypeTransactionNoMeta, data)
	case wireTypeTransactionWithMeta:
		return newLeafFromWire(NodeTypeTransactionWithMeta, data)
	default:
		return nil, fmt.Errorf("shamap: unknown wire type: %d", data[len(data)-1])
	}
}

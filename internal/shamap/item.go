package shamap

import (
	"fmt"

	"go.uber.org/atomic"
)

// Item is the owned triple (key, value, refcount) described in §3: an
// immutable value shared by reference across tree nodes and snapshots so
// that copy-on-write never has to duplicate leaf payloads.
type Item struct {
	key  [32]byte
	data []byte
	refs *atomic.Int32
}

// NewItem creates an Item with refcount 1, defensively copying data so the
// caller's slice can be reused or mutated afterwards.
func NewItem(key [32]byte, data []byte) *Item {
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	return &Item{
		key:  key,
		data: dataCopy,
		refs: atomic.NewInt32(1),
	}
}

// Key returns the item's key.
func (item *Item) Key() [32]byte { return item.key }

// Data returns a defensive copy of the item's value.
func (item *Item) Data() []byte {
	out := make([]byte, len(item.data))
	copy(out, item.data)
	return out
}

// DataUnsafe returns the internal data slice without copying. The caller
// must not modify the returned slice; it is shared with every retainer.
func (item *Item) DataUnsafe() []byte { return item.data }

// Size returns the length of the item's value.
func (item *Item) Size() int { return len(item.data) }

// Retain increments the item's reference count (relaxed fetch-add, §5) and
// returns the same item so call sites can chain it at the point a new
// strong reference is taken.
func (item *Item) Retain() *Item {
	item.refs.Add(1)
	return item
}

// Release decrements the reference count (release fetch-sub, §5) and
// reports whether this was the last reference. Callers that observe true
// own the sole remaining reference and may discard the item.
func (item *Item) Release() (bool, error) {
	n := item.refs.Add(-1)
	if n < 0 {
		return false, fmt.Errorf("shamap: item %s: %w", item, ErrZeroRefCount)
	}
	return n == 0, nil
}

// RefCount returns the current reference count, for tests and diagnostics.
func (item *Item) RefCount() int32 { return item.refs.Load() }

// Clone creates a fresh Item (refcount reset to 1) with the same key and
// value; unlike Retain, the clone is an independent owned copy.
func (item *Item) Clone() (*Item, error) {
	if item == nil {
		return nil, ErrNilItemClone
	}
	return NewItem(item.key, item.data), nil
}

// String renders a short debug form of the item.
func (item *Item) String() string {
	if item == nil {
		return "Item(nil)"
	}
	return fmt.Sprintf("Item(key=%x, size=%d, refs=%d)", item.key[:4], len(item.data), item.refs.Load())
}

// Equal reports whether two items have the same key and value. Reference
// counts are not compared: equality is about content, not ownership.
func (item *Item) Equal(other *Item) bool {
	if item == nil || other == nil {
		return item == other
	}
	if item.key != other.key {
		return false
	}
	if len(item.data) != len(other.data) {
		return false
	}
	for i, b := range item.data {
		if b != other.data[i] {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the item carries no value bytes.
func (item *Item) IsEmpty() bool {
	return item == nil || len(item.data) == 0
}

// Validate performs basic shape validation on the item.
func (item *Item) Validate() error {
	if item == nil {
		return ErrNilItem
	}
	if item.key == ([32]byte{}) {
		return ErrItemZeroKey
	}
	if len(item.data) == 0 {
		return ErrItemEmptyData
	}
	return nil
}

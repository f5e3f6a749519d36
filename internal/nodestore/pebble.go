package nodestore

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

// PebbleBackend persists nodes in a Pebble LSM-tree keyed by their hash.
type PebbleBackend struct {
	mu         sync.RWMutex
	db         *pebble.DB
	path       string
	open       bool
	deletePath bool
}

// NewPebbleBackend constructs a backend rooted at path. Open must be
// called before use.
func NewPebbleBackend(path string) *PebbleBackend {
	return &PebbleBackend{path: path}
}

func (b *PebbleBackend) Name() string { return "pebble" }

func (b *PebbleBackend) Open(createIfMissing bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := &pebble.Options{
		Cache:                 pebble.NewCache(64 << 20),
		MaxOpenFiles:          1000,
		MemTableSize:          32 << 20,
		ErrorIfNotExists:      !createIfMissing,
		ErrorIfExists:         false,
		BytesPerSync:          512 << 10,
		L0CompactionThreshold: 4,
	}
	db, err := pebble.Open(b.path, opts)
	if err != nil {
		return fmt.Errorf("nodestore: open pebble at %s: %w", b.path, err)
	}
	b.db = db
	b.open = true
	return nil
}

func (b *PebbleBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return nil
	}
	b.open = false
	return b.db.Close()
}

func (b *PebbleBackend) IsOpen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.open
}

// encodeNode lays out a stored record as:
//
//	[8B createdAt unix nanos][4B data length][data]
//
// There is no per-node type or ledger sequence field: the payload is an
// opaque blob, and compression is handled a layer up by DatabaseImpl.
func encodeNode(node *Node) []byte {
	out := make([]byte, 12+len(node.Data))
	binary.LittleEndian.PutUint64(out[0:8], uint64(node.CreatedAt.UnixNano()))
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(node.Data)))
	copy(out[12:], node.Data)
	return out
}

func decodeNode(hash Hash256, raw []byte) (*Node, error) {
	if len(raw) < 12 {
		return nil, fmt.Errorf("nodestore: record too short: %d bytes", len(raw))
	}
	nanos := binary.LittleEndian.Uint64(raw[0:8])
	dataLen := binary.LittleEndian.Uint32(raw[8:12])
	if int(dataLen) != len(raw)-12 {
		return nil, fmt.Errorf("nodestore: record length mismatch: header says %d, have %d", dataLen, len(raw)-12)
	}
	data := make([]byte, dataLen)
	copy(data, raw[12:])
	return &Node{Hash: hash, Data: data, CreatedAt: time.Unix(0, int64(nanos))}, nil
}

func (b *PebbleBackend) Fetch(key Hash256) (*Node, Status) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return nil, BackendError
	}
	val, closer, err := b.db.Get(key[:])
	if err == pebble.ErrNotFound {
		return nil, NotFound
	}
	if err != nil {
		return nil, BackendError
	}
	defer closer.Close()
	node, err := decodeNode(key, val)
	if err != nil {
		return nil, DataCorrupt
	}
	return node, OK
}

func (b *PebbleBackend) FetchBatch(keys []Hash256) ([]*Node, Status) {
	out := make([]*Node, 0, len(keys))
	for _, k := range keys {
		node, status := b.Fetch(k)
		if status != OK {
			return nil, status
		}
		out = append(out, node)
	}
	return out, OK
}

func (b *PebbleBackend) Store(node *Node) Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return BackendError
	}
	if err := b.db.Set(node.Hash[:], encodeNode(node), pebble.NoSync); err != nil {
		return BackendError
	}
	return OK
}

func (b *PebbleBackend) StoreBatch(nodes []*Node) Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return BackendError
	}
	batch := b.db.NewBatch()
	defer batch.Close()
	for _, n := range nodes {
		if err := batch.Set(n.Hash[:], encodeNode(n), nil); err != nil {
			return BackendError
		}
	}
	if err := batch.Commit(pebble.NoSync); err != nil {
		return BackendError
	}
	return OK
}

func (b *PebbleBackend) Sync() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return BackendError
	}
	if err := b.db.Flush(); err != nil {
		return BackendError
	}
	return OK
}

func (b *PebbleBackend) ForEach(fn func(*Node) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return ErrBackendClosed
	}
	iter, err := b.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("nodestore: new iterator: %w", err)
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		var hash Hash256
		copy(hash[:], iter.Key())
		node, err := decodeNode(hash, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(node); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (b *PebbleBackend) SetDeletePath() { b.deletePath = true }

func (b *PebbleBackend) FdRequired() int { return 100 }

// Compact runs a full-range manual compaction.
func (b *PebbleBackend) Compact() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return ErrBackendClosed
	}
	var maxKey [32]byte
	for i := range maxKey {
		maxKey[i] = 0xFF
	}
	return b.db.Compact(nil, maxKey[:], true)
}

// Metrics exposes Pebble's internal counters for diagnostics.
func (b *PebbleBackend) Metrics() *pebble.Metrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return nil
	}
	return b.db.Metrics()
}

package shamap

import (
	"context"
	"time"

	"github.com/catl-tools/catld/internal/nodestore"
)

// FlushEntry holds a serialized node ready to be written to a Family.
type FlushEntry struct {
	Hash [32]byte // node hash, used as the store key
	Data []byte   // SerializeWithPrefix() output
}

// Family is a pluggable out-of-core store for SHAMap nodes (§3's "node
// traits for out-of-core extensions"): a flush/fetch byte store keyed by
// node hash. It never interprets what it stores.
type Family interface {
	// Fetch retrieves a node's serialized bytes by hash. Returns nil, nil
	// if the node is not present.
	Fetch(hash [32]byte) ([]byte, error)

	// StoreBatch persists a batch of serialized nodes.
	StoreBatch(entries []FlushEntry) error
}

// NodeStoreFamily implements Family on top of a nodestore.Database.
type NodeStoreFamily struct {
	db nodestore.Database
}

// NewNodeStoreFamily wraps an already-opened, already-configured database.
func NewNodeStoreFamily(db nodestore.Database) *NodeStoreFamily {
	return &NodeStoreFamily{db: db}
}

// NewMemoryNodeStoreFamily builds a Family backed by an unbounded
// in-memory backend, suitable for tests and short-lived tooling.
func NewMemoryNodeStoreFamily() (*NodeStoreFamily, error) {
	backend := nodestore.NewMemoryBackend()
	if err := backend.Open(true); err != nil {
		return nil, err
	}
	cfg := &nodestore.Config{
		Backend:    "memory",
		Path:       "memory",
		CacheSize:  2000,
		CacheTTL:   time.Hour,
		Compressor: "none",
	}
	db, err := nodestore.NewDatabase(cfg, backend)
	if err != nil {
		return nil, err
	}
	return NewNodeStoreFamily(db), nil
}

// NewPebbleNodeStoreFamily builds a Family backed by Pebble on disk, with
// an LRU cache bounding RAM usage. The production path.
func NewPebbleNodeStoreFamily(path string, cacheSize int) (*NodeStoreFamily, error) {
	backend := nodestore.NewPebbleBackend(path)
	if err := backend.Open(true); err != nil {
		return nil, err
	}
	cfg := &nodestore.Config{
		Backend:          "pebble",
		Path:             path,
		CacheSize:        cacheSize,
		CacheTTL:         time.Hour,
		Compressor:       "lz4",
		CompressionLevel: 1,
		CreateIfMissing:  true,
	}
	db, err := nodestore.NewDatabase(cfg, backend)
	if err != nil {
		return nil, err
	}
	return NewNodeStoreFamily(db), nil
}

// Fetch retrieves a node's serialized bytes by hash.
func (f *NodeStoreFamily) Fetch(hash [32]byte) ([]byte, error) {
	node, err := f.db.Fetch(context.Background(), nodestore.Hash256(hash))
	if err == nodestore.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return node.Data, nil
}

// StoreBatch persists a batch of serialized nodes.
func (f *NodeStoreFamily) StoreBatch(entries []FlushEntry) error {
	if len(entries) == 0 {
		return nil
	}
	nodes := make([]*nodestore.Node, len(entries))
	for i, e := range entries {
		nodes[i] = nodestore.NewNode(nodestore.Hash256(e.Hash), e.Data)
	}
	return f.db.StoreBatch(context.Background(), nodes)
}

// Sweep drops expired cache entries; call periodically to bound memory.
func (f *NodeStoreFamily) Sweep() error {
	return f.db.Sweep()
}

// Stats returns the underlying database's cumulative counters.
func (f *NodeStoreFamily) Stats() nodestore.Statistics {
	return f.db.Stats()
}

// Close flushes and releases the underlying database.
func (f *NodeStoreFamily) Close() error {
	return f.db.Close()
}

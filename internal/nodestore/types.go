// Package nodestore provides persistent key-value storage for serialized
// SHAMap nodes, addressed by their 32-byte SHA-512-half hash. It is the
// out-of-core backend behind a shamap.Family: payloads are opaque bytes
// (§1's "treats transactions and account state as opaque byte blobs") —
// this package never interprets what a node contains.
package nodestore

import (
	"context"
	"fmt"
	"time"
)

// Hash256 is the content-addressing key: a node's SHA-512-half hash.
type Hash256 [32]byte

// Blob is an opaque serialized node payload.
type Blob []byte

// Node is a stored payload with its key and bookkeeping metadata.
type Node struct {
	Hash      Hash256
	Data      Blob
	CreatedAt time.Time
}

// NewNode wraps data under the given hash (the caller computes the hash;
// this package never recomputes it, since the hash is the node's identity
// in the trie, not a property of the blob alone once compression enters
// the picture).
func NewNode(hash Hash256, data Blob) *Node {
	return &Node{Hash: hash, Data: data, CreatedAt: time.Now()}
}

// Size returns the length of the node's data.
func (n *Node) Size() int { return len(n.Data) }

// Result is the outcome of an asynchronous fetch.
type Result struct {
	Node *Node
	Err  error
}

// Database is the main interface consumed by shamap.Family.
type Database interface {
	Store(ctx context.Context, node *Node) error
	Fetch(ctx context.Context, hash Hash256) (*Node, error)
	FetchBatch(ctx context.Context, hashes []Hash256) ([]*Node, error)
	StoreBatch(ctx context.Context, nodes []*Node) error
	Sweep() error
	Stats() Statistics
	Close() error
	Sync() error
}

// Statistics holds cumulative performance counters for a Database.
type Statistics struct {
	Reads        uint64
	CacheHits    uint64
	CacheMisses  uint64
	ReadBytes    uint64
	Writes       uint64
	WriteBytes   uint64
	CacheSize    uint64
	CacheMaxSize uint64
	BackendName  string
}

func (s Statistics) String() string {
	hitRate := float64(0)
	if s.Reads > 0 {
		hitRate = float64(s.CacheHits) / float64(s.Reads) * 100
	}
	return fmt.Sprintf("nodestore[%s]: reads=%d (%.1f%% hit) cache=%d/%d writes=%d",
		s.BackendName, s.Reads, hitRate, s.CacheSize, s.CacheMaxSize, s.Writes)
}

// Status is the result of a synchronous Backend operation.
type Status int

const (
	OK Status = iota
	NotFound
	DataCorrupt
	BackendError
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case NotFound:
		return "NotFound"
	case DataCorrupt:
		return "DataCorrupt"
	case BackendError:
		return "BackendError"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Backend is the interface storage engines implement; Database wraps one
// with caching.
type Backend interface {
	Name() string
	Open(createIfMissing bool) error
	Close() error
	IsOpen() bool
	Fetch(key Hash256) (*Node, Status)
	FetchBatch(keys []Hash256) ([]*Node, Status)
	Store(node *Node) Status
	StoreBatch(nodes []*Node) Status
	Sync() Status
	ForEach(fn func(*Node) error) error
	SetDeletePath()
	FdRequired() int
}

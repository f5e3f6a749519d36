package nodestore

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/catl-tools/catld/internal/nodestore/compression"
)

// DatabaseImpl is the cached, compressed Database built on top of a Backend.
type DatabaseImpl struct {
	backend    Backend
	cache      *Cache
	compressor compression.Compressor
	compLevel  int

	reads, writes         atomic.Uint64
	readBytes, writeBytes atomic.Uint64
}

// NewDatabase wraps backend with an LRU+TTL cache and the named compressor.
func NewDatabase(cfg *Config, backend Backend) (*DatabaseImpl, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	comp, err := compression.Get(cfg.Compressor)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompressor, cfg.Compressor)
	}
	return &DatabaseImpl{
		backend:    backend,
		cache:      NewCache(cfg.CacheSize, cfg.CacheTTL),
		compressor: comp,
		compLevel:  cfg.CompressionLevel,
	}, nil
}

func (d *DatabaseImpl) Store(ctx context.Context, node *Node) error {
	compressed, err := d.compressor.Compress(node.Data, d.compLevel)
	if err != nil {
		// Not every payload compresses (e.g. already-compressed data); fall
		// back to storing it raw rather than failing the write.
		compressed = node.Data
	}
	stored := &Node{Hash: node.Hash, Data: compressed, CreatedAt: node.CreatedAt}
	if status := d.backend.Store(stored); status != OK {
		return fmt.Errorf("nodestore: store %x: %s", node.Hash, status)
	}
	d.writes.Add(1)
	d.writeBytes.Add(uint64(len(compressed)))
	d.cache.Put(node)
	return nil
}

func (d *DatabaseImpl) Fetch(ctx context.Context, hash Hash256) (*Node, error) {
	d.reads.Add(1)
	if node, ok := d.cache.Get(hash); ok {
		return node, nil
	}
	raw, status := d.backend.Fetch(hash)
	switch status {
	case NotFound:
		return nil, ErrNotFound
	case DataCorrupt:
		return nil, ErrDataCorrupt
	case OK:
	default:
		return nil, fmt.Errorf("nodestore: fetch %x: %s", hash, status)
	}
	data, err := d.compressor.Decompress(raw.Data)
	if err != nil {
		data = raw.Data
	}
	node := &Node{Hash: hash, Data: data, CreatedAt: raw.CreatedAt}
	d.readBytes.Add(uint64(len(data)))
	d.cache.Put(node)
	return node, nil
}

func (d *DatabaseImpl) FetchBatch(ctx context.Context, hashes []Hash256) ([]*Node, error) {
	out := make([]*Node, len(hashes))
	for i, h := range hashes {
		node, err := d.Fetch(ctx, h)
		if err != nil {
			return nil, err
		}
		out[i] = node
	}
	return out, nil
}

func (d *DatabaseImpl) StoreBatch(ctx context.Context, nodes []*Node) error {
	for _, n := range nodes {
		if err := d.Store(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (d *DatabaseImpl) Sweep() error {
	d.cache.Sweep()
	return nil
}

func (d *DatabaseImpl) Stats() Statistics {
	s := d.cache.stats()
	return Statistics{
		Reads:        d.reads.Load(),
		CacheHits:    s.hits,
		CacheMisses:  s.misses,
		ReadBytes:    d.readBytes.Load(),
		Writes:       d.writes.Load(),
		WriteBytes:   d.writeBytes.Load(),
		CacheSize:    uint64(s.size),
		CacheMaxSize: uint64(s.maxSize),
		BackendName:  d.backend.Name(),
	}
}

func (d *DatabaseImpl) Close() error { return d.backend.Close() }

func (d *DatabaseImpl) Sync() error {
	if status := d.backend.Sync(); status != OK {
		return fmt.Errorf("nodestore: sync: %s", status)
	}
	return nil
}

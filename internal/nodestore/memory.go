package nodestore

import "sync"

// MemoryBackend is an in-memory Backend, used in tests and for scratch
// state maps that never need to outlive the process.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[Hash256]*Node
	open bool
}

// NewMemoryBackend constructs an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[Hash256]*Node)}
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Open(createIfMissing bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	return nil
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}

func (m *MemoryBackend) IsOpen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.open
}

func (m *MemoryBackend) Fetch(key Hash256) (*Node, Status) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	node, ok := m.data[key]
	if !ok {
		return nil, NotFound
	}
	return node, OK
}

func (m *MemoryBackend) FetchBatch(keys []Hash256) ([]*Node, Status) {
	out := make([]*Node, 0, len(keys))
	for _, k := range keys {
		node, status := m.Fetch(k)
		if status != OK {
			return nil, status
		}
		out = append(out, node)
	}
	return out, OK
}

func (m *MemoryBackend) Store(node *Node) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[node.Hash] = node
	return OK
}

func (m *MemoryBackend) StoreBatch(nodes []*Node) Status {
	for _, n := range nodes {
		if status := m.Store(n); status != OK {
			return status
		}
	}
	return OK
}

func (m *MemoryBackend) Sync() Status { return OK }

func (m *MemoryBackend) ForEach(fn func(*Node) error) error {
	m.mu.RLock()
	nodes := make([]*Node, 0, len(m.data))
	for _, n := range m.data {
		nodes = append(nodes, n)
	}
	m.mu.RUnlock()
	for _, n := range nodes {
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryBackend) SetDeletePath() {}

func (m *MemoryBackend) FdRequired() int { return 0 }

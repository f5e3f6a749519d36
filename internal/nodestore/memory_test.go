package nodestore_test

import (
	"sync"
	"testing"

	"github.com/catl-tools/catld/internal/hashing"
	"github.com/catl-tools/catld/internal/nodestore"
)

func hashOf(data []byte) nodestore.Hash256 {
	return nodestore.Hash256(hashing.Sum512Half(data))
}

func TestMemoryBackend(t *testing.T) {
	t.Run("Creation", func(t *testing.T) {
		backend := nodestore.NewMemoryBackend()
		if backend.Name() != "memory" {
			t.Errorf("expected name 'memory', got %q", backend.Name())
		}
		if backend.FdRequired() != 0 {
			t.Errorf("expected 0 file descriptors, got %d", backend.FdRequired())
		}
	})

	t.Run("OpenClose", func(t *testing.T) {
		backend := nodestore.NewMemoryBackend()
		if backend.IsOpen() {
			t.Error("backend should not be open initially")
		}
		if err := backend.Open(true); err != nil {
			t.Fatalf("failed to open backend: %v", err)
		}
		if !backend.IsOpen() {
			t.Error("backend should be open after Open()")
		}
		if err := backend.Close(); err != nil {
			t.Errorf("failed to close backend: %v", err)
		}
		if backend.IsOpen() {
			t.Error("backend should not be open after Close()")
		}
	})

	t.Run("StoreAndFetch", func(t *testing.T) {
		backend := nodestore.NewMemoryBackend()
		if err := backend.Open(true); err != nil {
			t.Fatalf("failed to open backend: %v", err)
		}
		defer backend.Close()

		data := nodestore.Blob("test data for memory backend")
		node := nodestore.NewNode(hashOf(data), data)

		if status := backend.Store(node); status != nodestore.OK {
			t.Fatalf("failed to store node: %v", status)
		}

		fetched, status := backend.Fetch(node.Hash)
		if status != nodestore.OK {
			t.Fatalf("failed to fetch node: %v", status)
		}
		if string(fetched.Data) != string(node.Data) {
			t.Error("fetched data doesn't match")
		}
	})

	t.Run("FetchNotFound", func(t *testing.T) {
		backend := nodestore.NewMemoryBackend()
		if err := backend.Open(true); err != nil {
			t.Fatalf("failed to open backend: %v", err)
		}
		defer backend.Close()

		hash := hashOf([]byte("non-existent"))
		fetched, status := backend.Fetch(hash)
		if status != nodestore.NotFound {
			t.Errorf("expected NotFound, got %v", status)
		}
		if fetched != nil {
			t.Error("expected nil node")
		}
	})

	t.Run("StoreBatchAndFetchBatch", func(t *testing.T) {
		backend := nodestore.NewMemoryBackend()
		if err := backend.Open(true); err != nil {
			t.Fatalf("failed to open backend: %v", err)
		}
		defer backend.Close()

		nodes := make([]*nodestore.Node, 10)
		hashes := make([]nodestore.Hash256, 10)
		for i := 0; i < 10; i++ {
			data := nodestore.Blob("batch data " + string(rune('A'+i)))
			nodes[i] = nodestore.NewNode(hashOf(data), data)
			hashes[i] = nodes[i].Hash
		}

		if status := backend.StoreBatch(nodes); status != nodestore.OK {
			t.Fatalf("failed to store batch: %v", status)
		}

		fetched, status := backend.FetchBatch(hashes)
		if status != nodestore.OK {
			t.Fatalf("failed to fetch batch: %v", status)
		}
		if len(fetched) != len(nodes) {
			t.Fatalf("expected %d nodes, got %d", len(nodes), len(fetched))
		}
		for i, node := range fetched {
			if string(node.Data) != string(nodes[i].Data) {
				t.Errorf("node %d data doesn't match", i)
			}
		}
	})

	t.Run("ForEach", func(t *testing.T) {
		backend := nodestore.NewMemoryBackend()
		if err := backend.Open(true); err != nil {
			t.Fatalf("failed to open backend: %v", err)
		}
		defer backend.Close()

		expectedCount := 5
		for i := 0; i < expectedCount; i++ {
			data := nodestore.Blob("foreach test " + string(rune('A'+i)))
			backend.Store(nodestore.NewNode(hashOf(data), data))
		}

		count := 0
		err := backend.ForEach(func(node *nodestore.Node) error {
			count++
			return nil
		})
		if err != nil {
			t.Errorf("ForEach returned error: %v", err)
		}
		if count != expectedCount {
			t.Errorf("expected %d nodes, counted %d", expectedCount, count)
		}
	})

	t.Run("ConcurrentAccess", func(t *testing.T) {
		backend := nodestore.NewMemoryBackend()
		if err := backend.Open(true); err != nil {
			t.Fatalf("failed to open backend: %v", err)
		}
		defer backend.Close()

		const goroutines = 10
		const opsPerGoroutine = 50

		var wg sync.WaitGroup
		wg.Add(goroutines)
		for g := 0; g < goroutines; g++ {
			go func(id int) {
				defer wg.Done()
				for i := 0; i < opsPerGoroutine; i++ {
					data := nodestore.Blob("concurrent " + string(rune('A'+id)) + string(rune('0'+i%10)))
					node := nodestore.NewNode(hashOf(data), data)
					backend.Store(node)
					backend.Fetch(node.Hash)
				}
			}(g)
		}
		wg.Wait()
	})
}

func TestMemoryBackendRegistration(t *testing.T) {
	if !nodestore.IsBackendAvailable("memory") {
		t.Error("memory backend should be registered")
	}
	backend, err := nodestore.CreateBackend("memory", "")
	if err != nil {
		t.Fatalf("failed to create memory backend via factory: %v", err)
	}
	if backend.Name() != "memory" {
		t.Errorf("expected name 'memory', got %q", backend.Name())
	}
}

package compression

import (
	"fmt"
	"sync"
)

// Compressor is the interface backend node compressors implement.
type Compressor interface {
	Name() string
	Compress(data []byte, level int) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	MaxCompressedSize(uncompressedSize int) int
}

// Factory constructs a Compressor.
type Factory func() Compressor

var (
	mu          sync.RWMutex
	compressors = make(map[string]Factory)
)

// Register adds a named compressor factory.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	compressors[name] = factory
}

// Get returns a new instance of the named compressor.
func Get(name string) (Compressor, error) {
	mu.RLock()
	factory, ok := compressors[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("nodestore: unknown compressor: %s", name)
	}
	return factory(), nil
}

func init() {
	Register("none", func() Compressor { return &NoCompressor{} })
	Register("lz4", func() Compressor { return &LZ4Compressor{} })
}

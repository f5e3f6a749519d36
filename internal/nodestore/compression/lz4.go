package compression

import (
	"fmt"

	"github.com/pierrec/lz4"
)

// NoCompressor passes data through unchanged.
type NoCompressor struct{}

func (c *NoCompressor) Name() string { return "none" }

func (c *NoCompressor) Compress(data []byte, level int) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (c *NoCompressor) Decompress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (c *NoCompressor) MaxCompressedSize(uncompressedSize int) int { return uncompressedSize }

// LZ4Compressor compresses node payloads with LZ4 block compression.
type LZ4Compressor struct{}

func (c *LZ4Compressor) Name() string { return "lz4" }

func (c *LZ4Compressor) Compress(data []byte, level int) ([]byte, error) {
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	var ht [1 << 16]int
	n, err := lz4.CompressBlock(data, buf, ht[:])
	if err != nil {
		return nil, fmt.Errorf("nodestore: lz4 compress: %w", err)
	}
	if n == 0 {
		// Incompressible input: CompressBlock reports 0 when the result
		// would not be smaller than the source.
		return nil, fmt.Errorf("nodestore: lz4 compress: incompressible")
	}
	return buf[:n], nil
}

func (c *LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	size := len(data) * 4
	if size == 0 {
		size = 64
	}
	for attempt := 0; attempt < 6; attempt++ {
		buf := make([]byte, size)
		n, err := lz4.UncompressBlock(data, buf)
		if err == nil {
			return buf[:n], nil
		}
		size *= 2
	}
	return nil, fmt.Errorf("nodestore: lz4 decompress: output exceeds retry bound")
}

func (c *LZ4Compressor) MaxCompressedSize(uncompressedSize int) int {
	return lz4.CompressBlockBound(uncompressedSize)
}

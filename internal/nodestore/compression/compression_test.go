package compression_test

import (
	"bytes"
	"testing"

	"github.com/catl-tools/catld/internal/nodestore/compression"
)

func TestNoCompressorRoundTrip(t *testing.T) {
	c, err := compression.Get("none")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data := []byte("pass through unchanged")
	compressed, err := c.Compress(data, 0)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	out, err := c.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("round trip mismatch: got %q want %q", out, data)
	}
}

func TestLZ4CompressorRoundTrip(t *testing.T) {
	c, err := compression.Get("lz4")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data := bytes.Repeat([]byte("repeatable payload segment "), 64)
	compressed, err := c.Compress(data, 1)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(compressed) >= len(data) {
		t.Errorf("expected compressed size < original for repetitive data: %d >= %d", len(compressed), len(data))
	}
	out, err := c.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("round trip mismatch")
	}
}

func TestGetUnknownCompressorErrors(t *testing.T) {
	if _, err := compression.Get("does-not-exist"); err == nil {
		t.Fatal("expected error for unknown compressor")
	}
}

func TestMaxCompressedSizeIsAnUpperBound(t *testing.T) {
	c, err := compression.Get("lz4")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data := []byte("some sample input")
	compressed, err := c.Compress(data, 1)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(compressed) > c.MaxCompressedSize(len(data)) {
		t.Errorf("compressed size %d exceeds MaxCompressedSize %d", len(compressed), c.MaxCompressedSize(len(data)))
	}
}

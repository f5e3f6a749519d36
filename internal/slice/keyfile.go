package slice

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// KeyFileMagic identifies a slice key file.
	KeyFileMagic = "nudb.key"
	// KeyFileVersion is the only key file format version this package
	// reads or writes.
	KeyFileVersion = 1
	// KeyFileHeaderSize is the fixed size in bytes of KeyFileHeader.
	KeyFileHeaderSize = 72

	// PepperXXHash64 identifies the xxhash64 family as the bucket hash
	// function. A reader refuses to open a key file whose pepper names a
	// hash function it does not implement.
	PepperXXHash64 uint64 = 0x78786861736836 // ASCII "xxhash6" truncated to 7 bytes

	// entrySize is the on-disk size of one (hash48, size48, offset48)
	// bucket entry.
	entrySize = 18
	// bucketOverhead is the per-bucket count field (2 bytes) plus trailing
	// spill pointer (8 bytes).
	bucketOverhead = 10
)

// KeyFileHeader is the fixed-size header of a slice key file: an
// open-addressed hash table over 48-bit (hash, size, offset) triples.
type KeyFileHeader struct {
	Salt        uint64
	Pepper      uint64
	UID         uint64
	Appnum      uint64
	KeySize     uint16
	BlockSize   uint32
	LoadFactor  float64
	BucketCount uint64
	Modulus     uint64
}

// Capacity returns the number of entries that fit in one bucket of this
// header's block size.
func (h *KeyFileHeader) Capacity() int {
	return (int(h.BlockSize) - bucketOverhead) / entrySize
}

// MarshalBinary encodes the header to its fixed on-disk form.
func (h *KeyFileHeader) MarshalBinary() ([]byte, error) {
	buf := make([]byte, KeyFileHeaderSize)
	copy(buf[0:8], KeyFileMagic)
	binary.BigEndian.PutUint16(buf[8:10], KeyFileVersion)
	binary.BigEndian.PutUint64(buf[10:18], h.Salt)
	binary.BigEndian.PutUint64(buf[18:26], h.Pepper)
	binary.BigEndian.PutUint64(buf[26:34], h.UID)
	binary.BigEndian.PutUint64(buf[34:42], h.Appnum)
	binary.BigEndian.PutUint16(buf[42:44], h.KeySize)
	binary.BigEndian.PutUint32(buf[44:48], h.BlockSize)
	binary.BigEndian.PutUint64(buf[48:56], math.Float64bits(h.LoadFactor))
	binary.BigEndian.PutUint64(buf[56:64], h.BucketCount)
	binary.BigEndian.PutUint64(buf[64:72], h.Modulus)
	return buf, nil
}

// UnmarshalKeyFileHeader decodes and validates a key file header.
func UnmarshalKeyFileHeader(data []byte) (*KeyFileHeader, error) {
	if len(data) < KeyFileHeaderSize {
		return nil, ErrShortHeader
	}
	if string(data[0:8]) != KeyFileMagic {
		return nil, ErrBadMagic
	}
	version := binary.BigEndian.Uint16(data[8:10])
	if version != KeyFileVersion {
		return nil, fmt.Errorf("%w: got version %d", ErrUnsupportedVersion, version)
	}
	h := &KeyFileHeader{
		Salt:        binary.BigEndian.Uint64(data[10:18]),
		Pepper:      binary.BigEndian.Uint64(data[18:26]),
		UID:         binary.BigEndian.Uint64(data[26:34]),
		Appnum:      binary.BigEndian.Uint64(data[34:42]),
		KeySize:     binary.BigEndian.Uint16(data[42:44]),
		BlockSize:   binary.BigEndian.Uint32(data[44:48]),
		LoadFactor:  math.Float64frombits(binary.BigEndian.Uint64(data[48:56])),
		BucketCount: binary.BigEndian.Uint64(data[56:64]),
		Modulus:     binary.BigEndian.Uint64(data[64:72]),
	}
	if h.Pepper != PepperXXHash64 {
		return nil, fmt.Errorf("slice: key file pepper %#x does not name a known hash function", h.Pepper)
	}
	if h.BlockSize == 0 || h.Capacity() < 1 {
		return nil, fmt.Errorf("slice: block_size %d too small for any bucket entries", h.BlockSize)
	}
	return h, nil
}

// bucketEntry is one (hash, size, offset) triple, each field truncated to
// 48 bits on disk.
type bucketEntry struct {
	Hash   uint64
	Size   uint64
	Offset uint64
}

func encodeBucket(entries []bucketEntry, spillOffset uint64, blockSize int) []byte {
	buf := make([]byte, blockSize)
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(entries)))
	pos := 2
	for _, e := range entries {
		put48(buf[pos:], e.Hash)
		put48(buf[pos+6:], e.Size)
		put48(buf[pos+12:], e.Offset)
		pos += entrySize
	}
	binary.BigEndian.PutUint64(buf[blockSize-8:blockSize], spillOffset)
	return buf
}

func decodeBucket(buf []byte) (entries []bucketEntry, spillOffset uint64) {
	count := int(binary.BigEndian.Uint16(buf[0:2]))
	entries = make([]bucketEntry, count)
	pos := 2
	for i := 0; i < count; i++ {
		entries[i] = bucketEntry{
			Hash:   get48(buf[pos:]),
			Size:   get48(buf[pos+6:]),
			Offset: get48(buf[pos+12:]),
		}
		pos += entrySize
	}
	spillOffset = binary.BigEndian.Uint64(buf[len(buf)-8:])
	return entries, spillOffset
}

func put48(b []byte, v uint64) {
	b[0] = byte(v >> 40)
	b[1] = byte(v >> 32)
	b[2] = byte(v >> 24)
	b[3] = byte(v >> 16)
	b[4] = byte(v >> 8)
	b[5] = byte(v)
}

func get48(b []byte) uint64 {
	return uint64(b[0])<<40 | uint64(b[1])<<32 | uint64(b[2])<<24 |
		uint64(b[3])<<16 | uint64(b[4])<<8 | uint64(b[5])
}

// bucketOf returns the bucket index for a given hash, per the header's
// modulus (a power of two).
func (h *KeyFileHeader) bucketOf(hash uint64) uint64 {
	return hash & (h.Modulus - 1)
}

// nextPowerOfTwo rounds n up to the next power of two, with a floor of 1.
func nextPowerOfTwo(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// Package serializedinners implements an incremental, append-only encoding
// of a SHAMap snapshot: a depth-first writer that skips subtrees already
// durable from an earlier snapshot (§4.9), and a reader that resolves
// inner and leaf records by the file offsets the writer recorded.
package serializedinners

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed size of the leading file header, written empty
// at open and rewritten once with final counts when the writer closes.
const HeaderSize = 256

// Magic identifies a serialized-inners file: the ASCII bytes "SINR" read
// as a little-endian uint32.
const Magic uint32 = 0x524E4953

// Version is the only format version this package understands.
const Version uint16 = 1

// Header is the packed file header (§4.9's "256-byte file header ...
// rewritten last with final counts, root offset, and root hash").
// Layout mirrors the CATL header's fixed-offset, little-endian style.
type Header struct {
	Magic      uint32
	Version    uint16
	Reserved   uint16
	RootOffset uint64
	RootHash   [32]byte
	LeafCount  uint64
	InnerCount uint64
	FileSize   uint64
}

// MarshalBinary encodes the header into a HeaderSize-byte buffer, zero
// padded.
func (h *Header) MarshalBinary() ([]byte, error) {
	out := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(out[0:4], h.Magic)
	binary.LittleEndian.PutUint16(out[4:6], h.Version)
	binary.LittleEndian.PutUint16(out[6:8], h.Reserved)
	binary.LittleEndian.PutUint64(out[8:16], h.RootOffset)
	copy(out[16:48], h.RootHash[:])
	binary.LittleEndian.PutUint64(out[48:56], h.LeafCount)
	binary.LittleEndian.PutUint64(out[56:64], h.InnerCount)
	binary.LittleEndian.PutUint64(out[64:72], h.FileSize)
	return out, nil
}

// UnmarshalHeader parses a header from its wire form.
func UnmarshalHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("serializedinners: short header: %d bytes", len(data))
	}

	h := &Header{
		Magic:      binary.LittleEndian.Uint32(data[0:4]),
		Version:    binary.LittleEndian.Uint16(data[4:6]),
		Reserved:   binary.LittleEndian.Uint16(data[6:8]),
		RootOffset: binary.LittleEndian.Uint64(data[8:16]),
		LeafCount:  binary.LittleEndian.Uint64(data[48:56]),
		InnerCount: binary.LittleEndian.Uint64(data[56:64]),
		FileSize:   binary.LittleEndian.Uint64(data[64:72]),
	}
	copy(h.RootHash[:], data[16:48])

	if h.Magic != Magic {
		return nil, ErrBadMagic
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	return h, nil
}

package catl

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed on-disk size of a CATL v1 file header: the sum
// of the per-field offset+size table (24-byte fixed fields plus a 64-byte
// SHA-512 digest).
const HeaderSize = 88

// Magic identifies a CATL v1 file: the ASCII bytes "CATL" read as a
// little-endian uint32.
const Magic uint32 = 0x4C544143

const maxFileSize = 1 << 40 // 1 TiB

// Header is the packed file header, little-endian throughout.
type Header struct {
	Magic       uint32
	MinLedger   uint32
	MaxLedger   uint32
	VersionWord uint16
	NetworkID   uint16
	FileSize    uint64
	SHA512      [64]byte
}

// FormatVersion is the low byte of VersionWord.
func (h *Header) FormatVersion() uint8 {
	return uint8(h.VersionWord & 0xFF)
}

// CompressionLevel is the zlib level (0-9) packed into bits 8-11 of
// VersionWord.
func (h *Header) CompressionLevel() int {
	return int((h.VersionWord >> 8) & 0x0F)
}

// SetCompressionLevel stamps level (0-9) into bits 8-11, preserving the
// format version in the low byte.
func (h *Header) SetCompressionLevel(level int) {
	h.VersionWord = (h.VersionWord & 0x00FF) | uint16(level&0x0F)<<8
}

// MarshalBinary encodes the header to its wire form.
func (h *Header) MarshalBinary() ([]byte, error) {
	out := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(out[0:4], h.Magic)
	binary.LittleEndian.PutUint32(out[4:8], h.MinLedger)
	binary.LittleEndian.PutUint32(out[8:12], h.MaxLedger)
	binary.LittleEndian.PutUint16(out[12:14], h.VersionWord)
	binary.LittleEndian.PutUint16(out[14:16], h.NetworkID)
	binary.LittleEndian.PutUint64(out[16:24], h.FileSize)
	copy(out[24:88], h.SHA512[:])
	return out, nil
}

// UnmarshalHeader parses a header from its wire form.
func UnmarshalHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, ErrShortHeader
	}
	h := &Header{
		Magic:       binary.LittleEndian.Uint32(data[0:4]),
		MinLedger:   binary.LittleEndian.Uint32(data[4:8]),
		MaxLedger:   binary.LittleEndian.Uint32(data[8:12]),
		VersionWord: binary.LittleEndian.Uint16(data[12:14]),
		NetworkID:   binary.LittleEndian.Uint16(data[14:16]),
		FileSize:    binary.LittleEndian.Uint64(data[16:24]),
	}
	copy(h.SHA512[:], data[24:88])
	return h, nil
}

// Validate checks magic, ledger-range ordering, and the 1 TiB file-size
// ceiling. A non-zero size mismatch against the on-disk length is a
// caller-level warning, not a Validate failure (§9: "file_size field ...
// is reserved-but-unused by some writers; treat mismatch as a warning").
func (h *Header) Validate() error {
	if h.Magic != Magic {
		return fmt.Errorf("%w: got 0x%08X", ErrBadMagic, h.Magic)
	}
	if h.MinLedger > h.MaxLedger {
		return fmt.Errorf("%w: min=%d max=%d", ErrBadLedgerRange, h.MinLedger, h.MaxLedger)
	}
	if h.FileSize > maxFileSize {
		return fmt.Errorf("%w: %d bytes", ErrFileTooLarge, h.FileSize)
	}
	return nil
}

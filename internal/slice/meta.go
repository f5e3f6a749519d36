package slice

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// MetaMagic identifies a slice meta file.
	MetaMagic = "nudb.slice.meta"
	// MetaVersion is the only meta file format version this package reads
	// or writes.
	MetaVersion = 1
	// MetaHeaderSize is the fixed size in bytes of MetaHeader, including
	// reserved padding for future fields.
	MetaHeaderSize = 128

	// metaIndexEntrySize is the on-disk size of one SliceIndexEntry.
	metaIndexEntrySize = 16
)

// MetaHeader is the header of a slice meta file: slice boundaries, key
// count, the embedded slice-local index parameters, and where the spill
// bucket section begins.
type MetaHeader struct {
	UID                uint64
	Appnum             uint64
	KeySize            uint16
	SliceStartOffset   uint64
	SliceEndOffset     uint64
	KeyCount           uint64
	IndexInterval      uint64
	IndexCount         uint64
	IndexSectionOffset uint64
	SpillSectionOffset uint64
	SpillCount         uint64
}

// MarshalBinary encodes the header to its fixed on-disk form.
func (h *MetaHeader) MarshalBinary() ([]byte, error) {
	buf := make([]byte, MetaHeaderSize)
	copy(buf[0:16], MetaMagic)
	binary.BigEndian.PutUint16(buf[16:18], MetaVersion)
	binary.BigEndian.PutUint64(buf[18:26], h.UID)
	binary.BigEndian.PutUint64(buf[26:34], h.Appnum)
	binary.BigEndian.PutUint16(buf[34:36], h.KeySize)
	binary.BigEndian.PutUint64(buf[36:44], h.SliceStartOffset)
	binary.BigEndian.PutUint64(buf[44:52], h.SliceEndOffset)
	binary.BigEndian.PutUint64(buf[52:60], h.KeyCount)
	binary.BigEndian.PutUint64(buf[60:68], h.IndexInterval)
	binary.BigEndian.PutUint64(buf[68:76], h.IndexCount)
	binary.BigEndian.PutUint64(buf[76:84], h.IndexSectionOffset)
	binary.BigEndian.PutUint64(buf[84:92], h.SpillSectionOffset)
	binary.BigEndian.PutUint64(buf[92:100], h.SpillCount)
	return buf, nil
}

// UnmarshalMetaHeader decodes and validates a slice meta file header.
func UnmarshalMetaHeader(data []byte) (*MetaHeader, error) {
	if len(data) < MetaHeaderSize {
		return nil, ErrShortHeader
	}
	if string(data[0:16]) != MetaMagic {
		return nil, ErrBadMagic
	}
	version := binary.BigEndian.Uint16(data[16:18])
	if version != MetaVersion {
		return nil, fmt.Errorf("%w: got version %d", ErrUnsupportedVersion, version)
	}
	h := &MetaHeader{
		UID:                binary.BigEndian.Uint64(data[18:26]),
		Appnum:             binary.BigEndian.Uint64(data[26:34]),
		KeySize:            binary.BigEndian.Uint16(data[34:36]),
		SliceStartOffset:   binary.BigEndian.Uint64(data[36:44]),
		SliceEndOffset:     binary.BigEndian.Uint64(data[44:52]),
		KeyCount:           binary.BigEndian.Uint64(data[52:60]),
		IndexInterval:      binary.BigEndian.Uint64(data[60:68]),
		IndexCount:         binary.BigEndian.Uint64(data[68:76]),
		IndexSectionOffset: binary.BigEndian.Uint64(data[76:84]),
		SpillSectionOffset: binary.BigEndian.Uint64(data[84:92]),
		SpillCount:         binary.BigEndian.Uint64(data[92:100]),
	}
	if h.SliceEndOffset < h.SliceStartOffset {
		return nil, ErrInvalidRange
	}
	return h, nil
}

// SliceIndexEntry maps a record number relative to the slice's own scan
// order to its byte offset in the shared data file. This is the slice's
// private, embedded index — distinct from the standalone nudb.idx file the
// slice was built from.
type SliceIndexEntry struct {
	RecordNumber uint64
	DatOffset    uint64
}

func writeSliceIndexEntry(w io.Writer, e SliceIndexEntry) error {
	var buf [metaIndexEntrySize]byte
	binary.BigEndian.PutUint64(buf[0:8], e.RecordNumber)
	binary.BigEndian.PutUint64(buf[8:16], e.DatOffset)
	_, err := w.Write(buf[:])
	return err
}

func decodeSliceIndexEntry(data []byte) SliceIndexEntry {
	return SliceIndexEntry{
		RecordNumber: binary.BigEndian.Uint64(data[0:8]),
		DatOffset:    binary.BigEndian.Uint64(data[8:16]),
	}
}

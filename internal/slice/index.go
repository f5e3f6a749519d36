package slice

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// IndexMagic identifies an index file.
	IndexMagic = "nudb.idx"
	// IndexVersion is the only index file format version this package
	// reads or writes.
	IndexVersion = 1
	// IndexHeaderSize is the fixed size in bytes of IndexHeader on disk.
	IndexHeaderSize = 68
	indexReserved   = 16
)

// IndexHeader is the 68-byte header of a nudb.idx file. It records enough
// about the source data file to detect a mismatched pairing at load time.
type IndexHeader struct {
	UID           uint64
	Appnum        uint64
	KeySize       uint16
	TotalRecords  uint64
	IndexInterval uint64
	EntryCount    uint64
}

// MarshalBinary encodes the header, including magic and version, to its
// 68-byte on-disk form. All multi-byte fields are big-endian.
func (h *IndexHeader) MarshalBinary() ([]byte, error) {
	buf := make([]byte, IndexHeaderSize)
	copy(buf[0:8], IndexMagic)
	binary.BigEndian.PutUint16(buf[8:10], IndexVersion)
	binary.BigEndian.PutUint64(buf[10:18], h.UID)
	binary.BigEndian.PutUint64(buf[18:26], h.Appnum)
	binary.BigEndian.PutUint16(buf[26:28], h.KeySize)
	binary.BigEndian.PutUint64(buf[28:36], h.TotalRecords)
	binary.BigEndian.PutUint64(buf[36:44], h.IndexInterval)
	binary.BigEndian.PutUint64(buf[44:52], h.EntryCount)
	// remaining 16 bytes reserved, left zero
	return buf, nil
}

// UnmarshalIndexHeader decodes a 68-byte index file header and validates
// its magic, version, and field invariants.
func UnmarshalIndexHeader(data []byte) (*IndexHeader, error) {
	if len(data) < IndexHeaderSize {
		return nil, ErrShortHeader
	}
	if string(data[0:8]) != IndexMagic {
		return nil, ErrBadMagic
	}
	version := binary.BigEndian.Uint16(data[8:10])
	if version != IndexVersion {
		return nil, fmt.Errorf("%w: got version %d", ErrUnsupportedVersion, version)
	}
	h := &IndexHeader{
		UID:           binary.BigEndian.Uint64(data[10:18]),
		Appnum:        binary.BigEndian.Uint64(data[18:26]),
		KeySize:       binary.BigEndian.Uint16(data[26:28]),
		TotalRecords:  binary.BigEndian.Uint64(data[28:36]),
		IndexInterval: binary.BigEndian.Uint64(data[36:44]),
		EntryCount:    binary.BigEndian.Uint64(data[44:52]),
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// Validate checks the invariants an index header must satisfy regardless of
// which data file it pairs with.
func (h *IndexHeader) Validate() error {
	if h.KeySize < 1 {
		return fmt.Errorf("slice: index key_size must be >= 1")
	}
	if h.TotalRecords < 1 {
		return fmt.Errorf("slice: index total_records must be >= 1")
	}
	if h.IndexInterval < 1 {
		return ErrInvalidInterval
	}
	if h.EntryCount < 1 {
		return fmt.Errorf("slice: index entry_count must be >= 1")
	}
	return nil
}

// VerifyAgainstDataFile checks that this index's identity fields match the
// data file it is supposed to index.
func (h *IndexHeader) VerifyAgainstDataFile(uid, appnum uint64, keySize uint16) error {
	if h.UID != uid || h.Appnum != appnum || h.KeySize != keySize {
		return ErrSiblingMismatch
	}
	return nil
}

// BuildIndexEntries scans dataFile (already validated and positioned past
// its own header) and collects the byte offset of every interval-th data
// record, starting at record 0. It stops at the first incomplete tail
// record, which is expected and tolerated on a live, still-growing file.
func BuildIndexEntries(dataFile []byte, keySize int, startOffset uint64, interval uint64) (totalRecords uint64, offsets []uint64, err error) {
	if interval < 1 {
		return 0, nil, ErrInvalidInterval
	}
	offsets = make([]uint64, 0, len(dataFile)/256/int(interval)+1)
	total := ScanRecords(dataFile, keySize, startOffset, 0, func(rec Record) {
		if rec.Number%interval == 0 {
			offsets = append(offsets, rec.Offset)
		}
	})
	return total, offsets, nil
}

// WriteIndexFile writes a complete nudb.idx file: header followed by the
// big-endian offset array.
func WriteIndexFile(w io.Writer, h IndexHeader, offsets []uint64) error {
	h.EntryCount = uint64(len(offsets))
	data, err := h.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("slice: write index header: %w", err)
	}
	entry := make([]byte, 8)
	for _, off := range offsets {
		binary.BigEndian.PutUint64(entry, off)
		if _, err := w.Write(entry); err != nil {
			return fmt.Errorf("slice: write index entry: %w", err)
		}
	}
	return nil
}

// Index is a loaded, queryable nudb.idx file: a header plus its offset
// array. It can be backed by an in-memory byte slice or a memory-mapped
// file — callers own the lifetime of the backing bytes.
type Index struct {
	Header  IndexHeader
	offsets []uint64
}

// LoadIndex parses a complete index file image (header + offset array) held
// in data.
func LoadIndex(data []byte) (*Index, error) {
	h, err := UnmarshalIndexHeader(data)
	if err != nil {
		return nil, err
	}
	want := IndexHeaderSize + int(h.EntryCount)*8
	if len(data) < want {
		return nil, ErrShortFile
	}
	offsets := make([]uint64, h.EntryCount)
	for i := range offsets {
		off := IndexHeaderSize + i*8
		offsets[i] = binary.BigEndian.Uint64(data[off : off+8])
	}
	return &Index{Header: *h, offsets: offsets}, nil
}

// Lookup translates a data record number into the byte offset of the
// nearest indexed record at or before it, plus the number of records the
// caller must scan forward from that offset to reach recordNum exactly.
func (idx *Index) Lookup(recordNum uint64) (offset uint64, recordsToSkip uint64) {
	arrayIndex := recordNum / idx.Header.IndexInterval
	if arrayIndex >= uint64(len(idx.offsets)) {
		arrayIndex = uint64(len(idx.offsets)) - 1
	}
	offset = idx.offsets[arrayIndex]
	indexedRecord := arrayIndex * idx.Header.IndexInterval
	recordsToSkip = recordNum - indexedRecord
	return offset, recordsToSkip
}

// EntryCount returns the number of indexed offsets.
func (idx *Index) EntryCount() int { return len(idx.offsets) }

// MaxEndRecord returns one past the last record number this index can
// resolve without scanning: (entry_count - 1) * interval + interval, i.e.
// the record boundary one interval past the last indexed record.
func (idx *Index) MaxEndRecord() uint64 {
	last := uint64(len(idx.offsets)-1) * idx.Header.IndexInterval
	return last + idx.Header.IndexInterval
}

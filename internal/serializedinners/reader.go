package serializedinners

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// ChildType distinguishes the two kinds of non-empty child reference an
// inner record can hold (§4.9's two-bit child_types field).
type ChildType int

const (
	ChildEmpty ChildType = iota
	ChildInner
	ChildLeaf
)

// ChildRef is one slot of a decoded InnerRecord.
type ChildRef struct {
	Type   ChildType
	Offset uint64
}

// InnerRecord is a decoded §4.9 inner record: depth plus up to 16 child
// references, indexed by branch.
type InnerRecord struct {
	Depth    uint8
	Children [16]ChildRef
}

// LeafRecord is a decoded §4.9 leaf record, already decompressed if the
// writer compressed it.
type LeafRecord struct {
	Key  [32]byte
	Data []byte
}

// Reader resolves inner and leaf records by the file offsets a Writer
// recorded. Unlike shamap.DeserializeNodeFromWire, it never reconstructs
// live shamap.Node values: a record only carries its children's offsets,
// so a caller rebuilding a tree must walk records itself.
type Reader struct {
	src    io.ReaderAt
	dec    *zstd.Decoder
	header Header
}

// NewReader parses src's header and prepares a decompressor for leaf
// payloads.
func NewReader(src io.ReaderAt) (*Reader, error) {
	buf := make([]byte, HeaderSize)
	if _, err := src.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("serializedinners: reading header: %w", err)
	}
	h, err := UnmarshalHeader(buf)
	if err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("serializedinners: opening zstd decoder: %w", err)
	}

	return &Reader{src: src, dec: dec, header: *h}, nil
}

// Header returns the file's header as last stamped by Writer.Close.
func (r *Reader) Header() Header { return r.header }

// ReadRoot reads the inner record the header names as the tree's root.
func (r *Reader) ReadRoot() (*InnerRecord, error) {
	return r.ReadInner(r.header.RootOffset)
}

// ReadInner decodes the inner record at offset.
func (r *Reader) ReadInner(offset uint64) (*InnerRecord, error) {
	head := make([]byte, 6)
	if _, err := r.src.ReadAt(head, int64(offset)); err != nil {
		return nil, fmt.Errorf("%w: inner header at %d: %v", ErrShortRecord, offset, err)
	}

	rec := &InnerRecord{Depth: head[0] & 0x3F}
	childTypes := binary.BigEndian.Uint32(head[2:6])

	pos := offset + 6
	for i := 0; i < 16; i++ {
		tag := (childTypes >> uint(2*i)) & 0x3
		switch tag {
		case 0:
			continue
		case 1, 2:
			offBuf := make([]byte, 8)
			if _, err := r.src.ReadAt(offBuf, int64(pos)); err != nil {
				return nil, fmt.Errorf("%w: inner child offset at %d: %v", ErrShortRecord, pos, err)
			}
			childType := ChildInner
			if tag == 2 {
				childType = ChildLeaf
			}
			rec.Children[i] = ChildRef{Type: childType, Offset: binary.BigEndian.Uint64(offBuf)}
			pos += 8
		default:
			return nil, ErrChildTypeReserved
		}
	}
	return rec, nil
}

// ReadLeaf decodes the leaf record at offset, decompressing its payload
// if the writer's compressed flag is set.
func (r *Reader) ReadLeaf(offset uint64) (*LeafRecord, error) {
	head := make([]byte, 36)
	if _, err := r.src.ReadAt(head, int64(offset)); err != nil {
		return nil, fmt.Errorf("%w: leaf header at %d: %v", ErrShortRecord, offset, err)
	}

	var key [32]byte
	copy(key[:], head[:32])

	sizeAndFlags := binary.BigEndian.Uint32(head[32:36])
	compressed := sizeAndFlags&leafCompressedFlag != 0
	size := sizeAndFlags & 0x00FFFFFF

	payload := make([]byte, size)
	if size > 0 {
		if _, err := r.src.ReadAt(payload, int64(offset+36)); err != nil {
			return nil, fmt.Errorf("%w: leaf payload at %d: %v", ErrShortRecord, offset+36, err)
		}
	}

	data := payload
	if compressed {
		decoded, err := r.dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("serializedinners: decompressing leaf payload: %w", err)
		}
		data = decoded
	}
	return &LeafRecord{Key: key, Data: data}, nil
}

// Close releases the decompressor. It does not close the underlying
// source.
func (r *Reader) Close() error {
	r.dec.Close()
	return nil
}

package serializedinners

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/catl-tools/catld/internal/shamap"
)

// Sink is what a Writer appends records to: sequential writes for the
// body, plus random-access writes for the header that gets stamped twice
// (empty at open, final at Close). *os.File satisfies this.
type Sink interface {
	io.Writer
	io.WriterAt
}

// Stats reports what a single WriteSnapshot call actually emitted: leaves
// and inners newly written, plus the snapshot's current root reference
// (which may point at a node emitted by an earlier call, if the root
// itself was untouched since then).
type Stats struct {
	LeafCount  uint64
	InnerCount uint64
	RootOffset uint64
	RootHash   [32]byte
}

// Writer appends SHAMap snapshots to a Sink using the incremental scheme
// from §4.9: nodes already marked processed are referenced by their
// recorded offset instead of being re-emitted, so only the delta since the
// last snapshot is written.
type Writer struct {
	sink   Sink
	offset uint64
	enc    *zstd.Encoder

	totalLeaf, totalInner uint64
	lastRootOffset        uint64
	lastRootHash          [32]byte
}

// NewWriter opens sink for writing, reserving HeaderSize bytes for the
// header that Close will fill in.
func NewWriter(sink Sink) (*Writer, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("serializedinners: opening zstd encoder: %w", err)
	}

	placeholder := make([]byte, HeaderSize)
	n, err := sink.Write(placeholder)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("serializedinners: writing placeholder header: %w", err)
	}

	return &Writer{sink: sink, offset: uint64(n), enc: enc}, nil
}

// frame tracks a still-open inner node during the explicit-stack
// depth-first walk: which child branch to examine next, and the depth to
// stamp on its eventual inner record.
type frame struct {
	node   *shamap.InnerNode
	depth  uint8
	branch int
}

// WriteSnapshot appends m's delta since whatever snapshot last wrote
// through this Writer (or the whole tree, for the first call). It walks
// depth-first with an explicit stack rather than recursion, skipping any
// subtree whose root is already Traits().Processed().
func (w *Writer) WriteSnapshot(m *shamap.SHAMap) (Stats, error) {
	root := m.Root()
	if root == nil {
		return Stats{}, ErrNilRoot
	}
	rootHash, err := m.GetHash()
	if err != nil {
		return Stats{}, err
	}

	if root.Traits().Processed() {
		// Nothing changed since this root was last emitted.
		w.lastRootOffset = root.Traits().NodeOffset()
		w.lastRootHash = rootHash
		return Stats{RootOffset: w.lastRootOffset, RootHash: rootHash}, nil
	}

	var leafCount, innerCount uint64
	stack := []*frame{{node: root, depth: 0, branch: 0}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if top.branch > 15 {
			offset, err := w.writeInner(top.node, top.depth)
			if err != nil {
				return Stats{}, err
			}
			top.node.Traits().SetNodeOffset(offset)
			top.node.Traits().SetProcessed(true)
			innerCount++
			stack = stack[:len(stack)-1]
			continue
		}

		branch := top.branch
		top.branch++

		child, err := top.node.Child(branch)
		if err != nil {
			return Stats{}, err
		}
		if child == nil || child.Traits().Processed() {
			continue
		}

		if child.IsLeaf() {
			leaf, ok := child.(*shamap.LeafNode)
			if !ok {
				return Stats{}, fmt.Errorf("serializedinners: leaf child has unexpected type %T", child)
			}
			offset, err := w.writeLeaf(leaf)
			if err != nil {
				return Stats{}, err
			}
			leaf.Traits().SetNodeOffset(offset)
			leaf.Traits().SetProcessed(true)
			leafCount++
			continue
		}

		inner, ok := child.(*shamap.InnerNode)
		if !ok {
			return Stats{}, fmt.Errorf("serializedinners: inner child has unexpected type %T", child)
		}
		stack = append(stack, &frame{node: inner, depth: top.depth + 1, branch: 0})
	}

	w.totalLeaf += leafCount
	w.totalInner += innerCount
	w.lastRootOffset = root.Traits().NodeOffset()
	w.lastRootHash = rootHash

	return Stats{
		LeafCount:  leafCount,
		InnerCount: innerCount,
		RootOffset: w.lastRootOffset,
		RootHash:   rootHash,
	}, nil
}

// writeInner appends an inner record at the current offset and returns
// where it was written. Every non-empty child must already carry a valid
// NodeOffset (guaranteed by the postorder walk in WriteSnapshot).
func (w *Writer) writeInner(node *shamap.InnerNode, depth uint8) (uint64, error) {
	body, err := node.SerializeAt(depth)
	if err != nil {
		return 0, fmt.Errorf("serializedinners: serializing inner node: %w", err)
	}
	offset := w.offset
	n, err := w.sink.Write(body)
	w.offset += uint64(n)
	if err != nil {
		return 0, fmt.Errorf("serializedinners: writing inner record: %w", err)
	}
	return offset, nil
}

const maxLeafSize = 1<<24 - 1
const leafCompressedFlag = uint32(1) << 24

// writeLeaf appends a leaf record at the current offset: 32-byte key,
// 4-byte packed size-and-flags, then data, zstd-compressed when that's
// strictly smaller than the raw form (§4.9).
func (w *Writer) writeLeaf(leaf *shamap.LeafNode) (uint64, error) {
	item := leaf.Item()
	if item == nil {
		return 0, fmt.Errorf("serializedinners: leaf has no item")
	}
	key := item.Key()
	raw := item.Data()

	payload := raw
	var flags uint32
	if compressed := w.enc.EncodeAll(raw, nil); len(compressed) < len(raw) {
		payload = compressed
		flags = leafCompressedFlag
	}
	if len(payload) > maxLeafSize {
		return 0, fmt.Errorf("serializedinners: leaf payload too large: %d bytes", len(payload))
	}

	buf := make([]byte, 0, 32+4+len(payload))
	buf = append(buf, key[:]...)

	var sizeAndFlags [4]byte
	binary.BigEndian.PutUint32(sizeAndFlags[:], uint32(len(payload))|flags)
	buf = append(buf, sizeAndFlags[:]...)
	buf = append(buf, payload...)

	offset := w.offset
	n, err := w.sink.Write(buf)
	w.offset += uint64(n)
	if err != nil {
		return 0, fmt.Errorf("serializedinners: writing leaf record: %w", err)
	}
	return offset, nil
}

// Close stamps the final header (counts, root offset, root hash, file
// size) and releases the compressor. It does not close the underlying
// Sink.
func (w *Writer) Close() error {
	h := Header{
		Magic:      Magic,
		Version:    Version,
		RootOffset: w.lastRootOffset,
		RootHash:   w.lastRootHash,
		LeafCount:  w.totalLeaf,
		InnerCount: w.totalInner,
		FileSize:   w.offset,
	}
	data, err := h.MarshalBinary()
	if err != nil {
		w.enc.Close()
		return err
	}
	if _, err := w.sink.WriteAt(data, 0); err != nil {
		w.enc.Close()
		return fmt.Errorf("serializedinners: writing final header: %w", err)
	}
	return w.enc.Close()
}

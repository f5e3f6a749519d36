package serializedinners

import (
	"bytes"
	"testing"

	"github.com/catl-tools/catld/internal/shamap"
)

// fakeFile is a tiny in-memory stand-in for *os.File: sequential Write
// appends, WriteAt and ReadAt address absolute offsets. Good enough to
// exercise Writer/Reader without touching disk.
type fakeFile struct {
	buf []byte
}

func (f *fakeFile) Write(p []byte) (int, error) {
	f.buf = append(f.buf, p...)
	return len(p), nil
}

func (f *fakeFile) WriteAt(p []byte, off int64) (int, error) {
	end := int(off) + len(p)
	if end > len(f.buf) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	copy(f.buf[off:end], p)
	return len(p), nil
}

func (f *fakeFile) ReadAt(p []byte, off int64) (int, error) {
	if int(off)+len(p) > len(f.buf) {
		return 0, bytes.ErrTooLarge
	}
	copy(p, f.buf[off:int(off)+len(p)])
	return len(p), nil
}

func buildSampleMap(t *testing.T, n int) *shamap.SHAMap {
	t.Helper()
	m, err := shamap.New(shamap.NodeTypeAccountState)
	if err != nil {
		t.Fatalf("shamap.New: %v", err)
	}
	for i := 0; i < n; i++ {
		var key [32]byte
		key[0] = byte(i)
		key[31] = byte(i >> 8)
		item := shamap.NewItem(key, []byte{byte(i), byte(i), byte(i)})
		if _, err := m.AddItem(item); err != nil {
			t.Fatalf("AddItem(%d): %v", i, err)
		}
	}
	return m
}

func TestWriteSnapshotRoundTrip(t *testing.T) {
	m := buildSampleMap(t, 50)
	wantHash, err := m.GetHash()
	if err != nil {
		t.Fatalf("GetHash: %v", err)
	}

	f := &fakeFile{}
	w, err := NewWriter(f)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	stats, err := w.WriteSnapshot(m)
	if err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if stats.LeafCount != 50 {
		t.Errorf("expected 50 leaves written, got %d", stats.LeafCount)
	}
	if stats.InnerCount == 0 {
		t.Error("expected at least one inner record written")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(f)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	h := r.Header()
	if h.RootHash != wantHash {
		t.Errorf("header root hash mismatch: got %x want %x", h.RootHash, wantHash)
	}
	if h.LeafCount != 50 {
		t.Errorf("expected header leaf count 50, got %d", h.LeafCount)
	}

	root, err := r.ReadRoot()
	if err != nil {
		t.Fatalf("ReadRoot: %v", err)
	}

	seen := 0
	var walk func(rec *InnerRecord)
	walk = func(rec *InnerRecord) {
		for _, child := range rec.Children {
			switch child.Type {
			case ChildLeaf:
				leaf, err := r.ReadLeaf(child.Offset)
				if err != nil {
					t.Fatalf("ReadLeaf(%d): %v", child.Offset, err)
				}
				if len(leaf.Data) != 3 {
					t.Errorf("expected 3-byte leaf payload, got %d bytes", len(leaf.Data))
				}
				seen++
			case ChildInner:
				inner, err := r.ReadInner(child.Offset)
				if err != nil {
					t.Fatalf("ReadInner(%d): %v", child.Offset, err)
				}
				walk(inner)
			}
		}
	}
	walk(root)

	if seen != 50 {
		t.Errorf("expected to visit 50 leaves, visited %d", seen)
	}
}

func TestWriteSnapshotSecondCallOnlyWritesDelta(t *testing.T) {
	m := buildSampleMap(t, 30)

	f := &fakeFile{}
	w, err := NewWriter(f)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, err := w.WriteSnapshot(m); err != nil {
		t.Fatalf("first WriteSnapshot: %v", err)
	}

	snap, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	var mutateKey [32]byte
	mutateKey[0] = 1
	if _, err := snap.UpdateItem(shamap.NewItem(mutateKey, []byte("xyz"))); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}

	stats, err := w.WriteSnapshot(snap)
	if err != nil {
		t.Fatalf("second WriteSnapshot: %v", err)
	}
	if stats.LeafCount != 1 {
		t.Errorf("expected exactly 1 new leaf written for a single-key mutation, got %d", stats.LeafCount)
	}
	if stats.InnerCount == 0 || stats.InnerCount >= 30 {
		t.Errorf("expected only the path to the mutated leaf re-written, got %d inner records", stats.InnerCount)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestWriteSnapshotUnchangedRootSkipsRewrite(t *testing.T) {
	m := buildSampleMap(t, 10)

	f := &fakeFile{}
	w, err := NewWriter(f)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, err := w.WriteSnapshot(m); err != nil {
		t.Fatalf("first WriteSnapshot: %v", err)
	}
	sizeAfterFirst := len(f.buf)

	snap, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	stats, err := w.WriteSnapshot(snap)
	if err != nil {
		t.Fatalf("second WriteSnapshot: %v", err)
	}
	if stats.LeafCount != 0 || stats.InnerCount != 0 {
		t.Errorf("expected no new records for an unmutated snapshot, got leaves=%d inners=%d", stats.LeafCount, stats.InnerCount)
	}
	if len(f.buf) != sizeAfterFirst {
		t.Errorf("expected file size unchanged, got %d want %d", len(f.buf), sizeAfterFirst)
	}
}

func TestWriteLeafCompressesHighlyRedundantPayload(t *testing.T) {
	m, err := shamap.New(shamap.NodeTypeAccountState)
	if err != nil {
		t.Fatalf("shamap.New: %v", err)
	}
	var key [32]byte
	key[0] = 7
	redundant := bytes.Repeat([]byte("A"), 4096)
	if _, err := m.AddItem(shamap.NewItem(key, redundant)); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	f := &fakeFile{}
	w, err := NewWriter(f)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, err := w.WriteSnapshot(m); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(f.buf) >= HeaderSize+len(redundant) {
		t.Errorf("expected the redundant payload to compress smaller than raw, file is %d bytes", len(f.buf))
	}

	r, err := NewReader(f)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	root, err := r.ReadRoot()
	if err != nil {
		t.Fatalf("ReadRoot: %v", err)
	}
	var leafOffset uint64
	found := false
	for _, child := range root.Children {
		if child.Type == ChildLeaf {
			leafOffset = child.Offset
			found = true
		}
	}
	if !found {
		t.Fatal("expected a leaf child directly under the root")
	}
	leaf, err := r.ReadLeaf(leafOffset)
	if err != nil {
		t.Fatalf("ReadLeaf: %v", err)
	}
	if !bytes.Equal(leaf.Data, redundant) {
		t.Error("decompressed leaf data does not match original")
	}
}

package slice

import (
	"bytes"
	"testing"
)

func TestIndexHeaderRoundTrip(t *testing.T) {
	h := &IndexHeader{
		UID:           0xdeadbeef,
		Appnum:        42,
		KeySize:       32,
		TotalRecords:  1000,
		IndexInterval: 10,
		EntryCount:    100,
	}
	data, err := h.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(data) != IndexHeaderSize {
		t.Fatalf("expected %d bytes, got %d", IndexHeaderSize, len(data))
	}

	back, err := UnmarshalIndexHeader(data)
	if err != nil {
		t.Fatalf("UnmarshalIndexHeader: %v", err)
	}
	if *back != *h {
		t.Errorf("round trip mismatch: got %+v want %+v", back, h)
	}
}

func TestUnmarshalIndexHeaderRejectsBadMagic(t *testing.T) {
	data := make([]byte, IndexHeaderSize)
	copy(data, "notanidx")
	if _, err := UnmarshalIndexHeader(data); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestBuildIndexEntriesAndWriteIndexFile(t *testing.T) {
	var pairs [][2]string
	for i := 0; i < 25; i++ {
		pairs = append(pairs, [2]string{"key0", "v"})
	}
	data, _ := buildDataFile(4, pairs)

	total, offsets, err := BuildIndexEntries(data, 4, 0, 10)
	if err != nil {
		t.Fatalf("BuildIndexEntries: %v", err)
	}
	if total != 25 {
		t.Fatalf("expected 25 records, got %d", total)
	}
	if len(offsets) != 3 { // records 0, 10, 20
		t.Fatalf("expected 3 index entries, got %d", len(offsets))
	}

	h := IndexHeader{UID: 1, Appnum: 1, KeySize: 4, TotalRecords: total, IndexInterval: 10}
	var buf bytes.Buffer
	if err := WriteIndexFile(&buf, h, offsets); err != nil {
		t.Fatalf("WriteIndexFile: %v", err)
	}

	idx, err := LoadIndex(buf.Bytes())
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if idx.EntryCount() != 3 {
		t.Fatalf("expected 3 entries loaded, got %d", idx.EntryCount())
	}

	off, skip := idx.Lookup(23)
	if off != offsets[2] || skip != 3 {
		t.Errorf("Lookup(23): got offset=%d skip=%d, want offset=%d skip=3", off, skip, offsets[2])
	}

	off0, skip0 := idx.Lookup(0)
	if off0 != offsets[0] || skip0 != 0 {
		t.Errorf("Lookup(0): got offset=%d skip=%d, want offset=%d skip=0", off0, skip0, offsets[0])
	}
}

func TestLoadIndexRejectsShortFile(t *testing.T) {
	h := IndexHeader{UID: 1, Appnum: 1, KeySize: 4, TotalRecords: 10, IndexInterval: 10, EntryCount: 5}
	data, _ := h.MarshalBinary()
	// Declares 5 entries but provides none.
	if _, err := LoadIndex(data); err == nil {
		t.Fatal("expected error for truncated offset array")
	}
}

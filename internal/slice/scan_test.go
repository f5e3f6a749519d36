package slice

import "testing"

// buildDataFile encodes a sequence of (key, value) pairs into NuDB-style
// data records: 6-byte big-endian size, key bytes, value bytes. It returns
// the encoded bytes plus the byte offset of each record's size header.
func buildDataFile(keySize int, pairs [][2]string) ([]byte, []uint64) {
	var buf []byte
	var offsets []uint64
	for _, kv := range pairs {
		key, value := kv[0], kv[1]
		if len(key) != keySize {
			panic("test fixture key size mismatch")
		}
		offsets = append(offsets, uint64(len(buf)))
		size := make([]byte, 6)
		putSize48(size, uint64(len(value)))
		buf = append(buf, size...)
		buf = append(buf, key...)
		buf = append(buf, value...)
	}
	return buf, offsets
}

func TestScanRecordsFindsAllCompleteRecords(t *testing.T) {
	data, offsets := buildDataFile(4, [][2]string{
		{"key0", "value-zero"},
		{"key1", "value-one"},
		{"key2", "value-two"},
	})

	var got []Record
	total := ScanRecords(data, 4, 0, 0, func(rec Record) { got = append(got, rec) })

	if total != 3 {
		t.Fatalf("expected 3 records, got %d", total)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 callback invocations, got %d", len(got))
	}
	for i, rec := range got {
		if rec.Number != uint64(i) {
			t.Errorf("record %d: expected number %d, got %d", i, i, rec.Number)
		}
		if rec.Offset != offsets[i] {
			t.Errorf("record %d: expected offset %d, got %d", i, offsets[i], rec.Offset)
		}
	}
}

func TestScanRecordsStopsAtTornTailRecord(t *testing.T) {
	data, _ := buildDataFile(4, [][2]string{
		{"key0", "value-zero"},
		{"key1", "value-one"},
	})
	// Simulate a writer that has only written the size header and key of a
	// third record, with the value not yet flushed.
	torn := make([]byte, 6)
	putSize48(torn, 100) // claims 100 bytes of value that are not present
	data = append(data, torn...)
	data = append(data, "key2"...)

	var got []Record
	total := ScanRecords(data, 4, 0, 0, func(rec Record) { got = append(got, rec) })

	if total != 2 {
		t.Fatalf("expected scan to stop before the torn record, got total %d", total)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 complete records, got %d", len(got))
	}
}

func TestScanRecordsSkipsSpillRecords(t *testing.T) {
	data, _ := buildDataFile(4, [][2]string{{"key0", "value-zero"}})

	// Append a spill record: 6-byte zero size, 2-byte bucket length, bucket bytes.
	data = append(data, 0, 0, 0, 0, 0, 0)
	data = append(data, 0, 4) // bucket_size = 4
	data = append(data, "bkt!"...)

	data2, _ := buildDataFile(4, [][2]string{{"key1", "value-one"}})
	data = append(data, data2...)

	var got []Record
	total := ScanRecords(data, 4, 0, 0, func(rec Record) { got = append(got, rec) })

	if total != 2 {
		t.Fatalf("expected the spill record to be skipped and not counted, got total %d", total)
	}
}

func TestRecordEndComputesInclusiveEndOffset(t *testing.T) {
	data, offsets := buildDataFile(4, [][2]string{{"key0", "hello"}})

	end, ok := RecordEnd(data, 4, offsets[0])
	if !ok {
		t.Fatal("expected RecordEnd to succeed")
	}
	if int(end) != len(data)-1 {
		t.Errorf("expected end offset %d, got %d", len(data)-1, end)
	}
}

func TestRecordEndRejectsSpillRecord(t *testing.T) {
	spill := make([]byte, 8)
	if _, ok := RecordEnd(spill, 4, 0); ok {
		t.Error("expected RecordEnd to reject a spill marker (size == 0)")
	}
}

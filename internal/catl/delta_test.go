package catl

import (
	"bytes"
	"io"
	"testing"
)

func TestWriteReadDeltaRoundTrip(t *testing.T) {
	var k1, k2 [32]byte
	k1[0], k2[0] = 0xAA, 0xBB

	entries := []DeltaEntry{
		{Type: DeltaAccountStateSet, Key: k1, Value: []byte("account state payload")},
		{Type: DeltaTxWithMetaSet, Key: k2, Value: []byte("tx with metadata")},
		{Type: DeltaRemove, Key: k1},
	}

	var buf bytes.Buffer
	if err := WriteDelta(&buf, entries); err != nil {
		t.Fatalf("WriteDelta: %v", err)
	}

	got, err := ReadDelta(&buf)
	if err != nil {
		t.Fatalf("ReadDelta: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), len(got))
	}
	for i, e := range got {
		if e.Type != entries[i].Type || e.Key != entries[i].Key || !bytes.Equal(e.Value, entries[i].Value) {
			t.Errorf("entry %d mismatch: got %+v want %+v", i, e, entries[i])
		}
	}
}

func TestReadDeltaEmptyStreamIsJustTerminal(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTerminal(&buf); err != nil {
		t.Fatalf("WriteTerminal: %v", err)
	}

	got, err := ReadDelta(&buf)
	if err != nil {
		t.Fatalf("ReadDelta: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no entries, got %d", len(got))
	}
}

func TestReadDeltaEntryTruncatedMidKeyReturnsErrTruncatedDelta(t *testing.T) {
	buf := bytes.NewBuffer([]byte{DeltaRemove, 0x01, 0x02}) // short key
	_, err := ReadDeltaEntry(buf)
	if err == nil {
		t.Fatal("expected error")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("catl: delta stream ended")) {
		t.Errorf("expected ErrTruncatedDelta wrapped, got %v", err)
	}
}

func TestReadDeltaEntryCleanEOFBeforeAnyByte(t *testing.T) {
	_, err := ReadDeltaEntry(bytes.NewReader(nil))
	if err != io.EOF {
		t.Errorf("expected io.EOF on clean empty stream, got %v", err)
	}
}

func TestReadDeltaEntryUnknownTypeErrors(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x99})
	_, err := ReadDeltaEntry(buf)
	if err == nil {
		t.Fatal("expected error for unknown delta type")
	}
}

func TestWriteDeltaEntryRejectsUnknownType(t *testing.T) {
	var buf bytes.Buffer
	err := WriteDeltaEntry(&buf, DeltaEntry{Type: 0x77})
	if err == nil {
		t.Fatal("expected error for unknown delta type")
	}
}

package catl

import "testing"

func TestHeaderRoundTrip(t *testing.T) {
	h := &Header{
		Magic:     Magic,
		MinLedger: 100,
		MaxLedger: 200,
		NetworkID: 21337,
		FileSize:  12345,
	}
	h.SetCompressionLevel(6)
	for i := range h.SHA512 {
		h.SHA512[i] = byte(i)
	}

	data, err := h.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(data) != HeaderSize {
		t.Fatalf("expected %d bytes, got %d", HeaderSize, len(data))
	}

	back, err := UnmarshalHeader(data)
	if err != nil {
		t.Fatalf("UnmarshalHeader: %v", err)
	}
	if *back != *h {
		t.Errorf("round trip mismatch: got %+v want %+v", back, h)
	}
}

func TestHeaderCompressionLevelPacking(t *testing.T) {
	h := &Header{}
	h.VersionWord = 1 // format version 1
	h.SetCompressionLevel(9)

	if h.FormatVersion() != 1 {
		t.Errorf("expected format version 1, got %d", h.FormatVersion())
	}
	if h.CompressionLevel() != 9 {
		t.Errorf("expected compression level 9, got %d", h.CompressionLevel())
	}
}

func TestHeaderValidateRejectsBadMagic(t *testing.T) {
	h := &Header{Magic: 0xDEADBEEF, MinLedger: 1, MaxLedger: 2}
	if err := h.Validate(); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestHeaderValidateRejectsInvertedRange(t *testing.T) {
	h := &Header{Magic: Magic, MinLedger: 10, MaxLedger: 5}
	if err := h.Validate(); err == nil {
		t.Fatal("expected error for inverted ledger range")
	}
}

func TestHeaderValidateRejectsOversizedFile(t *testing.T) {
	h := &Header{Magic: Magic, MinLedger: 1, MaxLedger: 2, FileSize: maxFileSize + 1}
	if err := h.Validate(); err == nil {
		t.Fatal("expected error for oversized file_size")
	}
}

func TestUnmarshalHeaderRejectsShortInput(t *testing.T) {
	if _, err := UnmarshalHeader(make([]byte, 10)); err == nil {
		t.Fatal("expected error for short header")
	}
}

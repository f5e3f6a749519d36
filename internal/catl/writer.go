package catl

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/catl-tools/catld/internal/hashing"
)

// Writer builds a CATL v1 file: an 88-byte header followed by a stream
// of ledger headers and map deltas, optionally zlib-compressed as a
// single stream.
type Writer struct {
	header         Header
	payload        bytes.Buffer
	compressWriter *zlib.Writer
	dest           io.Writer // payload.Write, or compressWriter.Write when compressing
}

// NewWriter starts a CATL file covering [minLedger, maxLedger] at the
// given zlib level (0 disables compression) and network ID.
func NewWriter(minLedger, maxLedger uint32, compressionLevel int, networkID uint16) (*Writer, error) {
	if minLedger > maxLedger {
		return nil, ErrBadLedgerRange
	}
	w := &Writer{
		header: Header{
			Magic:     Magic,
			MinLedger: minLedger,
			MaxLedger: maxLedger,
			NetworkID: networkID,
		},
	}
	w.header.SetCompressionLevel(compressionLevel)

	if compressionLevel > 0 {
		zw, err := zlib.NewWriterLevel(&w.payload, compressionLevel)
		if err != nil {
			return nil, fmt.Errorf("catl: opening zlib writer: %w", err)
		}
		w.compressWriter = zw
		w.dest = zw
	} else {
		w.dest = &w.payload
	}
	return w, nil
}

// WriteLedger appends one ledger header plus its two map deltas.
func (w *Writer) WriteLedger(ledger *Ledger) error {
	hdrBytes, err := ledger.Header.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := w.dest.Write(hdrBytes); err != nil {
		return err
	}
	if err := WriteDelta(w.dest, ledger.StateMap); err != nil {
		return fmt.Errorf("catl: ledger %d state-map delta: %w", ledger.Header.Sequence, err)
	}
	if err := WriteDelta(w.dest, ledger.TxMap); err != nil {
		return fmt.Errorf("catl: ledger %d tx-map delta: %w", ledger.Header.Sequence, err)
	}
	return nil
}

// Finish finalizes the payload (flushing any zlib writer), stamps
// file_size and a rolling SHA-512 over the whole file (treating the
// 64 hash bytes as zero while hashing, per §4.7), and writes the
// complete file to out.
func (w *Writer) Finish(out io.Writer) error {
	if w.compressWriter != nil {
		if err := w.compressWriter.Close(); err != nil {
			return fmt.Errorf("catl: closing zlib writer: %w", err)
		}
	}

	w.header.FileSize = uint64(HeaderSize + w.payload.Len())

	hasher := hashing.New()
	headerBytes, err := w.header.MarshalBinary()
	if err != nil {
		return err
	}
	// SHA512 field is zeroed during hashing; MarshalBinary already wrote
	// the zero-value w.header.SHA512 since it hasn't been computed yet.
	hasher.Write(headerBytes)
	hasher.Write(w.payload.Bytes())
	w.header.SHA512 = hasher.SumFull()

	finalHeader, err := w.header.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := out.Write(finalHeader); err != nil {
		return err
	}
	_, err = out.Write(w.payload.Bytes())
	return err
}

// ComputeFileHash returns the SHA-512 digest of a complete CATL file's
// bytes, treating the 64-byte SHA512 field (offset 24-88) as zero, per
// §4.7's rolling whole-file hash definition. Callers use this both to
// stamp a freshly-written file and to verify one already on disk.
func ComputeFileHash(fileBytes []byte) ([64]byte, error) {
	if len(fileBytes) < HeaderSize {
		return [64]byte{}, ErrShortHeader
	}
	hasher := hashing.New()
	hasher.Write(fileBytes[:24])
	var zeros [64]byte
	hasher.Write(zeros[:])
	hasher.Write(fileBytes[HeaderSize:])
	return hasher.SumFull(), nil
}

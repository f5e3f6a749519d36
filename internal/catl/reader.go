package catl

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Ledger is one decoded ledger: its header plus the state-map and
// transaction-map deltas that follow it in the payload.
type Ledger struct {
	Header   *LedgerHeader
	StateMap []DeltaEntry
	TxMap    []DeltaEntry
}

// Reader streams ledgers out of a CATL v1 payload.
type Reader struct {
	Header *Header
	src    io.Reader
	ra     *ReadAheadReader
}

// NewReader parses the 88-byte header from r and prepares to stream the
// payload that follows. When the header's compression level is non-zero
// the payload is unwrapped through zlib. The payload is read directly
// unless EnableReadAhead is called, which puts a ReadAheadReader in front
// of it so decompression overlaps with delta parsing.
func NewReader(r io.Reader) (*Reader, error) {
	hdrBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hdrBuf); err != nil {
		return nil, fmt.Errorf("catl: reading header: %w", err)
	}
	header, err := UnmarshalHeader(hdrBuf)
	if err != nil {
		return nil, err
	}
	if err := header.Validate(); err != nil {
		return nil, err
	}

	var payload io.Reader = r
	if header.CompressionLevel() > 0 {
		zr, err := zlib.NewReader(bufio.NewReader(r))
		if err != nil {
			return nil, fmt.Errorf("catl: opening zlib stream: %w", err)
		}
		payload = zr
	}

	reader := &Reader{Header: header, src: payload}
	return reader, nil
}

// EnableReadAhead wraps the payload stream in a ReadAheadReader using the
// given chunk size/count (0 for defaults). Call before the first
// ReadLedger.
func (r *Reader) EnableReadAhead(ctx context.Context, chunkSize, numChunks int) {
	r.ra = NewReadAheadReader(ctx, r.src, chunkSize, numChunks)
	r.src = r.ra
}

// Close releases the read-ahead goroutine, if one was started.
func (r *Reader) Close() error {
	if r.ra != nil {
		return r.ra.Close()
	}
	return nil
}

// ReadLedger reads one ledger header plus its two map deltas. Returns
// io.EOF when the payload is exhausted cleanly between ledgers.
func (r *Reader) ReadLedger() (*Ledger, error) {
	hdrBuf := make([]byte, LedgerHeaderSize)
	if _, err := io.ReadFull(r.src, hdrBuf); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: ledger header: %v", ErrTruncatedDelta, err)
	}
	ledgerHeader, err := UnmarshalLedgerHeader(hdrBuf)
	if err != nil {
		return nil, err
	}

	stateMap, err := ReadDelta(r.src)
	if err != nil {
		return nil, fmt.Errorf("catl: ledger %d state-map delta: %w", ledgerHeader.Sequence, err)
	}
	txMap, err := ReadDelta(r.src)
	if err != nil {
		return nil, fmt.Errorf("catl: ledger %d tx-map delta: %w", ledgerHeader.Sequence, err)
	}

	return &Ledger{Header: ledgerHeader, StateMap: stateMap, TxMap: txMap}, nil
}

// ReadAll reads every ledger in [min_ledger, max_ledger].
func (r *Reader) ReadAll() ([]*Ledger, error) {
	expected := int(r.Header.MaxLedger-r.Header.MinLedger) + 1
	ledgers := make([]*Ledger, 0, expected)
	for {
		ledger, err := r.ReadLedger()
		if err == io.EOF {
			return ledgers, nil
		}
		if err != nil {
			return nil, err
		}
		ledgers = append(ledgers, ledger)
	}
}

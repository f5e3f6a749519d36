package catl

import "encoding/binary"

// LedgerHeaderSize is the fixed size of the canonical ledger header
// preceding each ledger's map deltas.
const LedgerHeaderSize = 118

// LedgerHeader is one ledger's canonical header, as it appears inline in
// the CATL payload.
type LedgerHeader struct {
	Sequence            uint32
	Drops               uint64
	ParentHash          [32]byte
	TxHash              [32]byte
	AccountHash         [32]byte
	ParentCloseTime     uint32
	CloseTime           uint32
	CloseTimeResolution uint8
	CloseFlags          uint8
}

// MarshalBinary encodes the ledger header to its 118-byte wire form.
func (h *LedgerHeader) MarshalBinary() ([]byte, error) {
	out := make([]byte, LedgerHeaderSize)
	binary.LittleEndian.PutUint32(out[0:4], h.Sequence)
	binary.LittleEndian.PutUint64(out[4:12], h.Drops)
	copy(out[12:44], h.ParentHash[:])
	copy(out[44:76], h.TxHash[:])
	copy(out[76:108], h.AccountHash[:])
	binary.LittleEndian.PutUint32(out[108:112], h.ParentCloseTime)
	binary.LittleEndian.PutUint32(out[112:116], h.CloseTime)
	out[116] = h.CloseTimeResolution
	out[117] = h.CloseFlags
	return out, nil
}

// UnmarshalLedgerHeader parses a 118-byte ledger header.
func UnmarshalLedgerHeader(data []byte) (*LedgerHeader, error) {
	if len(data) < LedgerHeaderSize {
		return nil, ErrShortLedgerHeader
	}
	h := &LedgerHeader{
		Sequence:            binary.LittleEndian.Uint32(data[0:4]),
		Drops:               binary.LittleEndian.Uint64(data[4:12]),
		ParentCloseTime:     binary.LittleEndian.Uint32(data[108:112]),
		CloseTime:           binary.LittleEndian.Uint32(data[112:116]),
		CloseTimeResolution: data[116],
		CloseFlags:          data[117],
	}
	copy(h.ParentHash[:], data[12:44])
	copy(h.TxHash[:], data[44:76])
	copy(h.AccountHash[:], data[76:108])
	return h, nil
}

package catl

import "errors"

var (
	ErrBadMagic          = errors.New("catl: bad magic number")
	ErrBadLedgerRange    = errors.New("catl: min_ledger > max_ledger")
	ErrFileTooLarge      = errors.New("catl: file_size exceeds 1 TiB")
	ErrShortHeader       = errors.New("catl: header shorter than 88 bytes")
	ErrShortLedgerHeader = errors.New("catl: ledger header shorter than 118 bytes")
	ErrTruncatedDelta    = errors.New("catl: delta stream ended without a terminal entry")
	ErrUnknownDeltaType  = errors.New("catl: unknown delta entry type")
	ErrUnsupportedFormat = errors.New("catl: unsupported format version")
)

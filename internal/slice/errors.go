// Package slice implements a read-only, hash-addressed view over a byte
// range of an append-only NuDB-style data file: a forward record scanner, a
// standalone record-number index, and a slice key/meta file pair that
// together answer fetch(key) -> bytes without touching the source file.
package slice

import "errors"

var (
	// ErrBadMagic is returned when a file's magic bytes do not match the
	// expected type (index, slice key, or slice meta file).
	ErrBadMagic = errors.New("slice: bad file magic")

	// ErrUnsupportedVersion is returned when a file's version field is not
	// one this package knows how to read.
	ErrUnsupportedVersion = errors.New("slice: unsupported format version")

	// ErrShortHeader is returned when a file is too short to contain its
	// fixed-size header.
	ErrShortHeader = errors.New("slice: file shorter than header")

	// ErrShortFile is returned when a file is too short to contain the
	// data its header claims it holds.
	ErrShortFile = errors.New("slice: file shorter than header declares")

	// ErrInvalidRange is returned when a requested [start, end] byte range
	// is empty or inverted.
	ErrInvalidRange = errors.New("slice: invalid byte range")

	// ErrInvalidInterval is returned when index_interval is zero.
	ErrInvalidInterval = errors.New("slice: index interval must be >= 1")

	// ErrBoundaryNotOnInterval is returned when a slice's start or end
	// record is not an exact multiple of the source index's interval.
	ErrBoundaryNotOnInterval = errors.New("slice: boundary is not a multiple of the index interval")

	// ErrEmptySlice is returned when a requested slice contains zero
	// records.
	ErrEmptySlice = errors.New("slice: empty record range")

	// ErrRecordCountMismatch is returned when the caller-supplied expected
	// record count disagrees with what pass 1 actually scanned.
	ErrRecordCountMismatch = errors.New("slice: record count mismatch between expected and scanned")

	// ErrKeyNotFound is returned by Fetch when no entry in the slice
	// matches the requested key.
	ErrKeyNotFound = errors.New("slice: key not found")

	// ErrSiblingMismatch is returned when a key file and meta file that
	// are supposed to describe the same slice disagree on UID, appnum,
	// or key size.
	ErrSiblingMismatch = errors.New("slice: sibling file header mismatch")

	// ErrKeySizeMismatch is returned when a record's key size disagrees
	// with the data file's declared key size.
	ErrKeySizeMismatch = errors.New("slice: key size mismatch")
)

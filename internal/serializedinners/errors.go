package serializedinners

import "errors"

var (
	// ErrBadMagic is returned when a file does not start with Magic.
	ErrBadMagic = errors.New("serializedinners: bad magic")
	// ErrUnsupportedVersion is returned for a header version this reader
	// does not understand.
	ErrUnsupportedVersion = errors.New("serializedinners: unsupported version")
	// ErrShortRecord is returned when a record cannot be fully read from
	// the requested offset.
	ErrShortRecord = errors.New("serializedinners: short record")
	// ErrChildTypeReserved is returned when a two-bit child-type field
	// carries the reserved value 3.
	ErrChildTypeReserved = errors.New("serializedinners: reserved child type")
	// ErrNilRoot is returned when WriteSnapshot is given a map with no
	// root node.
	ErrNilRoot = errors.New("serializedinners: nil root")
)

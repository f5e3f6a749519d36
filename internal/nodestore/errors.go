package nodestore

import "errors"

var (
	ErrNotFound              = errors.New("nodestore: node not found")
	ErrDataCorrupt           = errors.New("nodestore: data corruption detected")
	ErrBackendClosed         = errors.New("nodestore: backend is closed")
	ErrInvalidConfig         = errors.New("nodestore: invalid configuration")
	ErrUnsupportedBackend    = errors.New("nodestore: unsupported backend")
	ErrUnsupportedCompressor = errors.New("nodestore: unsupported compressor")
)

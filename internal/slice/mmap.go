package slice

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// FileStore is a Store backed by three memory-mapped files on disk: the
// shared data file (opened read-only, never written by this package) and a
// slice's own key and meta files.
type FileStore struct {
	*Store

	datFile  *os.File
	keyFile  *os.File
	metaFile *os.File

	datMap  mmap.MMap
	keyMap  mmap.MMap
	metaMap mmap.MMap
}

// OpenFiles memory-maps the data, slice key, and slice meta files at the
// given paths and returns a ready-to-query FileStore.
func OpenFiles(datPath, keyPath, metaPath string) (*FileStore, error) {
	fs := &FileStore{}
	ok := false
	defer func() {
		if !ok {
			fs.Close()
		}
	}()

	var err error
	fs.datFile, fs.datMap, err = openMapped(datPath)
	if err != nil {
		return nil, fmt.Errorf("slice: open data file: %w", err)
	}
	fs.keyFile, fs.keyMap, err = openMapped(keyPath)
	if err != nil {
		return nil, fmt.Errorf("slice: open key file: %w", err)
	}
	fs.metaFile, fs.metaMap, err = openMapped(metaPath)
	if err != nil {
		return nil, fmt.Errorf("slice: open meta file: %w", err)
	}

	store, err := Open([]byte(fs.datMap), []byte(fs.keyMap), []byte(fs.metaMap))
	if err != nil {
		return nil, err
	}
	fs.Store = store
	ok = true
	return fs, nil
}

func openMapped(path string) (*os.File, mmap.MMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, m, nil
}

// Close unmaps and closes all three underlying files. It is safe to call on
// a FileStore that failed to fully open.
func (fs *FileStore) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if fs.datMap != nil {
		record(fs.datMap.Unmap())
	}
	if fs.keyMap != nil {
		record(fs.keyMap.Unmap())
	}
	if fs.metaMap != nil {
		record(fs.metaMap.Unmap())
	}
	if fs.datFile != nil {
		record(fs.datFile.Close())
	}
	if fs.keyFile != nil {
		record(fs.keyFile.Close())
	}
	if fs.metaFile != nil {
		record(fs.metaFile.Close())
	}
	return firstErr
}

package slice

import (
	"fmt"
	"sort"
)

// Store answers Fetch(key) -> value over a data file byte range using a
// slice key file and slice meta file. It operates on plain byte slices, so
// it is indifferent to whether those slices are backed by a memory-mapped
// file (see OpenFiles) or held entirely in memory (useful in tests).
type Store struct {
	dat  []byte
	key  []byte
	meta []byte

	kh KeyFileHeader
	mh MetaHeader
}

// Open builds a Store from the three slice files' complete byte images.
// It validates that the key and meta file headers agree on UID, appnum, and
// key size.
func Open(dat, keyFile, metaFile []byte) (*Store, error) {
	kh, err := UnmarshalKeyFileHeader(keyFile)
	if err != nil {
		return nil, fmt.Errorf("slice: open key file: %w", err)
	}
	mh, err := UnmarshalMetaHeader(metaFile)
	if err != nil {
		return nil, fmt.Errorf("slice: open meta file: %w", err)
	}
	if kh.UID != mh.UID || kh.Appnum != mh.Appnum || kh.KeySize != mh.KeySize {
		return nil, ErrSiblingMismatch
	}
	wantKeyFileSize := KeyFileHeaderSize + int(kh.Modulus)*int(kh.BlockSize)
	if len(keyFile) < wantKeyFileSize {
		return nil, fmt.Errorf("%w: key file", ErrShortFile)
	}
	if mh.SliceEndOffset >= uint64(len(dat)) {
		return nil, fmt.Errorf("slice: meta file slice_end_offset exceeds data file length")
	}
	return &Store{dat: dat, key: keyFile, meta: metaFile, kh: *kh, mh: *mh}, nil
}

// KeyCount returns the number of keys indexed by this slice.
func (s *Store) KeyCount() uint64 { return s.mh.KeyCount }

// KeySize returns the fixed key length.
func (s *Store) KeySize() int { return int(s.kh.KeySize) }

// Fetch looks up key and returns a copy of its value, or ErrKeyNotFound if
// no entry matches.
func (s *Store) Fetch(key []byte) ([]byte, error) {
	if len(key) != int(s.kh.KeySize) {
		return nil, ErrKeySizeMismatch
	}
	h := hashKey(key, s.kh.Salt)
	bucketIdx := s.kh.bucketOf(h)

	blockStart := KeyFileHeaderSize + int(bucketIdx)*int(s.kh.BlockSize)
	if blockStart+int(s.kh.BlockSize) > len(s.key) {
		return nil, ErrKeyNotFound
	}
	block := s.key[blockStart : blockStart+int(s.kh.BlockSize)]

	for {
		entries, spillOffset := decodeBucket(block)
		if value, found := s.scanBucketEntries(entries, h, key); found {
			return value, nil
		}
		if spillOffset == 0 {
			return nil, ErrKeyNotFound
		}
		end := spillOffset + uint64(s.kh.BlockSize)
		if end > uint64(len(s.meta)) {
			return nil, ErrKeyNotFound
		}
		block = s.meta[spillOffset:end]
	}
}

// scanBucketEntries performs the lower_bound(h)-then-linear-scan described
// by the lookup algorithm: entries are sorted ascending by hash, so once
// entry.Hash no longer equals h the scan can stop.
func (s *Store) scanBucketEntries(entries []bucketEntry, h uint64, key []byte) ([]byte, bool) {
	start := sort.Search(len(entries), func(i int) bool { return entries[i].Hash >= h })
	for i := start; i < len(entries) && entries[i].Hash == h; i++ {
		e := entries[i]
		value, ok := s.readAndCompare(e, key)
		if ok {
			return value, true
		}
	}
	return nil, false
}

// readAndCompare reads the key stored at e.Offset in the data file and, if
// it matches, returns a copy of the associated value.
//
// Every offset dereference here bounds-checks against the current length of
// the data slice: a record whose bytes would extend past the end is treated
// as not-yet-written rather than as an error, so a slice can be safely
// fetched from while the underlying data file is still being appended to.
func (s *Store) readAndCompare(e bucketEntry, key []byte) ([]byte, bool) {
	keySize := uint64(s.kh.KeySize)
	keyStart := e.Offset + 6
	keyEnd := keyStart + keySize
	valueEnd := keyEnd + e.Size
	if valueEnd > uint64(len(s.dat)) {
		return nil, false
	}
	if string(s.dat[keyStart:keyEnd]) != string(key) {
		return nil, false
	}
	value := make([]byte, e.Size)
	copy(value, s.dat[keyEnd:valueEnd])
	return value, true
}

package slice

import (
	"bytes"
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// BuildOptions configures rekeySlice.
type BuildOptions struct {
	// KeySize is the fixed key length used by every record in the data
	// file.
	KeySize int
	// Salt seeds the bucket hash function. Two slices built with
	// different salts over the same key set place keys in different
	// buckets.
	Salt uint64
	// BlockSize is the on-disk size of one key file bucket, in bytes.
	BlockSize uint32
	// LoadFactor is the target fraction of bucket capacity to fill before
	// the bucket count is considered sized correctly. Must be in (0, 1).
	LoadFactor float64
	// UID and Appnum are recorded in the key and meta file headers and
	// checked for agreement when a slice store is opened.
	UID    uint64
	Appnum uint64
}

// BuildResult holds the complete key and meta file images produced by
// rekeySlice, ready to be written to disk.
type BuildResult struct {
	KeyFile   []byte
	MetaFile  []byte
	KeyCount  uint64
	BucketCnt uint64
}

// hashKey returns the 48-bit bucket hash that key file entries store.
func hashKey(key []byte, salt uint64) uint64 {
	d := xxhash.NewWithSeed(salt)
	d.Write(key)
	return d.Sum64() & (1<<48 - 1)
}

// BuildSlice implements rekey_slice: given a data file already validated
// and memory-mapped read-only, a source index covering it, and an
// inclusive-exclusive record range, it produces a slice key file and a
// slice meta file that answer fetch(key) without further reference to the
// source index.
//
// startRecord and endRecord must be exact multiples of srcIndex's
// IndexInterval — this is what lets both boundaries be resolved to byte
// offsets with zero scanning, which matters when dataFile is still being
// appended to by another writer.
func BuildSlice(dataFile []byte, srcIndex *Index, startRecord, endRecord uint64, opts BuildOptions) (*BuildResult, error) {
	if opts.KeySize < 1 {
		return nil, fmt.Errorf("slice: key size must be >= 1")
	}
	if opts.LoadFactor <= 0 || opts.LoadFactor >= 1 {
		return nil, fmt.Errorf("slice: load_factor must be in (0, 1), got %v", opts.LoadFactor)
	}
	if endRecord <= startRecord {
		return nil, ErrEmptySlice
	}
	interval := srcIndex.Header.IndexInterval
	if startRecord%interval != 0 || endRecord%interval != 0 {
		return nil, ErrBoundaryNotOnInterval
	}
	if endRecord > srcIndex.MaxEndRecord() {
		return nil, fmt.Errorf("slice: end record %d exceeds indexed range (max %d)", endRecord, srcIndex.MaxEndRecord())
	}

	startOffset, _ := srcIndex.Lookup(startRecord)
	var endOffset uint64
	if endRecord >= srcIndex.Header.TotalRecords {
		endOffset = uint64(len(dataFile))
	} else {
		endOffset, _ = srcIndex.Lookup(endRecord)
	}
	if endOffset > uint64(len(dataFile)) {
		endOffset = uint64(len(dataFile))
	}
	if endOffset <= startOffset {
		return nil, ErrInvalidRange
	}

	// Pass 1: scan the range once, counting records and recording a
	// slice-local index at the same interval as the source index.
	var keyCount uint64
	var sliceIndex []SliceIndexEntry
	keyCount = ScanRecords(dataFile[:endOffset], opts.KeySize, startOffset, 0, func(rec Record) {
		if rec.Number%interval == 0 {
			sliceIndex = append(sliceIndex, SliceIndexEntry{RecordNumber: rec.Number, DatOffset: rec.Offset})
		}
	})
	if keyCount == 0 {
		return nil, ErrEmptySlice
	}

	capacity := (int(opts.BlockSize) - bucketOverhead) / entrySize
	if capacity < 1 {
		return nil, fmt.Errorf("slice: block_size %d leaves no room for bucket entries", opts.BlockSize)
	}
	bucketCount := uint64(math.Ceil(float64(keyCount) / (float64(capacity) * opts.LoadFactor)))
	if bucketCount < 1 {
		bucketCount = 1
	}
	modulus := nextPowerOfTwo(bucketCount)

	kh := &KeyFileHeader{
		Salt:        opts.Salt,
		Pepper:      PepperXXHash64,
		UID:         opts.UID,
		Appnum:      opts.Appnum,
		KeySize:     uint16(opts.KeySize),
		BlockSize:   opts.BlockSize,
		LoadFactor:  opts.LoadFactor,
		BucketCount: bucketCount,
		Modulus:     modulus,
	}

	// Pass 2: rescan, placing each record's (hash, size, offset) into its
	// bucket's pending entry list.
	pending := make([][]bucketEntry, modulus)
	ScanRecords(dataFile[:endOffset], opts.KeySize, startOffset, 0, func(rec Record) {
		keyStart := rec.Offset + 6
		key := dataFile[keyStart : keyStart+uint64(opts.KeySize)]
		h := hashKey(key, opts.Salt)
		b := kh.bucketOf(h)
		pending[b] = append(pending[b], bucketEntry{Hash: h, Size: rec.Size, Offset: rec.Offset})
	})

	keyFile := new(bytes.Buffer)
	headerBytes, err := kh.MarshalBinary()
	if err != nil {
		return nil, err
	}
	keyFile.Write(headerBytes)

	var spills bytes.Buffer
	spillBase := uint64(MetaHeaderSize) + uint64(len(sliceIndex))*metaIndexEntrySize
	var spillCount uint64

	for b := uint64(0); b < modulus; b++ {
		entries := pending[b]
		sort.Slice(entries, func(i, j int) bool { return entries[i].Hash < entries[j].Hash })

		var chunks [][]bucketEntry
		for len(entries) > capacity {
			chunks = append(chunks, entries[:capacity])
			entries = entries[capacity:]
		}
		chunks = append(chunks, entries) // final (possibly empty) chunk always present

		// Write spill chunks back-to-front: the last chunk in the chain is
		// written first with no spill pointer of its own, so that every
		// earlier chunk can be written with the already-known offset of
		// the one that follows it.
		nextOffset := uint64(0)
		for i := len(chunks) - 1; i >= 1; i-- {
			recordOffset := spillBase + uint64(spills.Len())
			spills.Write(encodeBucket(chunks[i], nextOffset, int(opts.BlockSize)))
			spillCount++
			nextOffset = recordOffset
		}

		keyFile.Write(encodeBucket(chunks[0], nextOffset, int(opts.BlockSize)))
	}

	mh := &MetaHeader{
		UID:                opts.UID,
		Appnum:             opts.Appnum,
		KeySize:            uint16(opts.KeySize),
		SliceStartOffset:   startOffset,
		SliceEndOffset:     endOffset - 1,
		KeyCount:           keyCount,
		IndexInterval:      interval,
		IndexCount:         uint64(len(sliceIndex)),
		IndexSectionOffset: MetaHeaderSize,
		SpillSectionOffset: spillBase,
		SpillCount:         spillCount,
	}
	metaFile := new(bytes.Buffer)
	mhBytes, err := mh.MarshalBinary()
	if err != nil {
		return nil, err
	}
	metaFile.Write(mhBytes)
	for _, e := range sliceIndex {
		if err := writeSliceIndexEntry(metaFile, e); err != nil {
			return nil, err
		}
	}
	metaFile.Write(spills.Bytes())

	return &BuildResult{
		KeyFile:   keyFile.Bytes(),
		MetaFile:  metaFile.Bytes(),
		KeyCount:  keyCount,
		BucketCnt: modulus,
	}, nil
}

package slice

// BucketStats summarizes the load-factor and overflow characteristics of a
// built key file. It is the data this package's teacher-equivalent exposed
// through a live terminal dashboard; here it is a plain read-only pass
// callers can log or report however they like.
type BucketStats struct {
	TotalBuckets        uint64
	EmptyBuckets        uint64
	FullBuckets         uint64
	BucketsWithSpills   uint64
	TotalEntries        uint64
	MaxEntriesInBucket  uint64
	EntryCountHistogram map[int]uint64
	CapacityPerBucket   int
}

// ComputeBucketStats walks every primary bucket in a key file (without
// following spill chains into the meta file) and reports occupancy
// statistics.
func ComputeBucketStats(keyFile []byte) (*BucketStats, error) {
	kh, err := UnmarshalKeyFileHeader(keyFile)
	if err != nil {
		return nil, err
	}
	capacity := kh.Capacity()
	stats := &BucketStats{
		TotalBuckets:        kh.Modulus,
		CapacityPerBucket:   capacity,
		EntryCountHistogram: make(map[int]uint64),
	}

	for b := uint64(0); b < kh.Modulus; b++ {
		start := KeyFileHeaderSize + int(b)*int(kh.BlockSize)
		end := start + int(kh.BlockSize)
		if end > len(keyFile) {
			break
		}
		entries, spillOffset := decodeBucket(keyFile[start:end])
		n := len(entries)
		stats.TotalEntries += uint64(n)
		stats.EntryCountHistogram[n]++
		if n == 0 {
			stats.EmptyBuckets++
		}
		if n >= capacity {
			stats.FullBuckets++
		}
		if spillOffset != 0 {
			stats.BucketsWithSpills++
		}
		if uint64(n) > stats.MaxEntriesInBucket {
			stats.MaxEntriesInBucket = uint64(n)
		}
	}
	return stats, nil
}

// LoadFactor returns the observed fill ratio: total entries over total
// capacity across all buckets.
func (s *BucketStats) LoadFactor() float64 {
	if s.TotalBuckets == 0 || s.CapacityPerBucket == 0 {
		return 0
	}
	return float64(s.TotalEntries) / (float64(s.TotalBuckets) * float64(s.CapacityPerBucket))
}

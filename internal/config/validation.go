package config

import "fmt"

// Validate checks that every tunable is within the range its consumer
// requires (§6, §7's codec/slice error kinds).
func (c *Config) Validate() error {
	if c.Slice.IndexInterval < 1 {
		return fmt.Errorf("config: slice.index_interval must be >= 1, got %d", c.Slice.IndexInterval)
	}
	if c.Slice.BlockSize == 0 {
		return fmt.Errorf("config: slice.block_size must be > 0")
	}
	if c.Slice.LoadFactor <= 0 || c.Slice.LoadFactor >= 1 {
		return fmt.Errorf("config: slice.load_factor must be in (0, 1), got %f", c.Slice.LoadFactor)
	}
	if c.CATL.CompressionLevel < 0 || c.CATL.CompressionLevel > 9 {
		return fmt.Errorf("config: catl.compression_level must be 0-9, got %d", c.CATL.CompressionLevel)
	}
	if c.NodeStorePath == "" {
		return fmt.Errorf("config: node_store_path must not be empty")
	}
	return nil
}

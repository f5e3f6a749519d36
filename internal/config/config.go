// Package config loads catld's tunables: the slice builder's index
// interval, bucket block size, and load factor, the CATL writer's
// compression level, and where the node store keeps its backing files.
package config

import "path/filepath"

// Config is catld's complete configuration surface.
type Config struct {
	// Slice holds the nudb.idx/slice builder tunables (§4.8, §6's
	// environment toggles).
	Slice SliceConfig `mapstructure:"slice"`

	// CATL holds CATL v1 writer tunables (§4.7).
	CATL CATLConfig `mapstructure:"catl"`

	// NodeStorePath is where the node store family keeps its pebble
	// database and compressed node blobs.
	NodeStorePath string `mapstructure:"node_store_path"`

	configPath string `mapstructure:"-"`
}

// SliceConfig mirrors §6's slice environment toggles.
type SliceConfig struct {
	// IndexInterval is how often nudb.idx records a (record_number,
	// offset) pair; must be >= 1, typically 10000.
	IndexInterval uint64 `mapstructure:"index_interval"`
	// BlockSize is the slice key file's bucket byte size.
	BlockSize uint32 `mapstructure:"block_size"`
	// LoadFactor controls how full a bucket may get before entries spill;
	// must be in (0, 1).
	LoadFactor float64 `mapstructure:"load_factor"`
}

// CATLConfig mirrors §6's CATL version-word compression nibble.
type CATLConfig struct {
	// CompressionLevel is the zlib level packed into the CATL version
	// word, 0-9 (§4.7).
	CompressionLevel int `mapstructure:"compression_level"`
}

// ConfigPaths holds the path to catld's configuration file.
type ConfigPaths struct {
	Main string
}

// DefaultConfigPaths returns the default configuration file path, resolved
// relative to the current working directory.
func DefaultConfigPaths() ConfigPaths {
	return ConfigPaths{Main: "catld.toml"}
}

// ConfigPathsFromDir returns configuration paths rooted at dir.
func ConfigPathsFromDir(dir string) ConfigPaths {
	return ConfigPaths{Main: filepath.Join(dir, "catld.toml")}
}

// Path returns the config file this Config was loaded from, or "" if it
// was built entirely from defaults/flags/environment.
func (c *Config) Path() string { return c.configPath }

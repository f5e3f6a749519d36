package config

import "github.com/spf13/viper"

// setDefaults installs catld's built-in defaults before any config file or
// environment override is applied.
func setDefaults(v *viper.Viper) {
	v.SetDefault("slice.index_interval", 10000)
	v.SetDefault("slice.block_size", 4096)
	v.SetDefault("slice.load_factor", 0.5)

	v.SetDefault("catl.compression_level", 6)

	v.SetDefault("node_store_path", "catld-data")
}

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from, in priority order: built-in
// defaults, the config file at paths.Main (if present), then CATLD_-
// prefixed environment variables.
func LoadConfig(paths ConfigPaths) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if paths.Main != "" {
		if _, err := os.Stat(paths.Main); err == nil {
			v.SetConfigFile(paths.Main)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("config: reading %s: %w", paths.Main, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: checking %s: %w", paths.Main, err)
		}
	}

	v.SetEnvPrefix("CATLD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}
	cfg.configPath = paths.Main

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

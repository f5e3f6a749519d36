// Package cli wires catld's cobra commands.
package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/catl-tools/catld/internal/config"
)

var (
	configFile string
	debug      bool
	verbose    bool

	loadedConfig *config.Config
)

// rootCmd is the base command when catld is called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "catld",
	Short: "catld - CATL v1 tooling for the XRP Ledger / Xahau family",
	Long: `catld decodes and builds the file formats a ledger node uses to
archive and serve history: the CATL v1 catalogue codec, NuDB-style hash
slices, and the incremental serialized-inners tree encoding.`,
	Version: "0.1.0-dev",
}

// Execute adds all child commands and runs the root command. Called once
// from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path (default catld.toml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable verbose debug logging")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
}

// initConfig loads catld's configuration once flags are parsed, so every
// subcommand's Run can read loadedConfig directly.
func initConfig() {
	paths := config.DefaultConfigPaths()
	if configFile != "" {
		paths.Main = configFile
	}

	cfg, err := config.LoadConfig(paths)
	if err != nil {
		log.Fatalf("catld: loading config: %v", err)
	}
	loadedConfig = cfg
}

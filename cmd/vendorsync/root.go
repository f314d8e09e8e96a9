// vendorsync consolidates per-plugin composer vendor trees into a single
// shared vendor directory, so plugins sharing a runtime stop carrying
// duplicate copies of the same libraries and competing autoloaders.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vendorsync/vendorsync/internal/config"
)

var (
	flagInstallRoot string
	flagConfigPath  string
	flagVerbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "vendorsync",
	Short: "Consolidate per-plugin composer vendor trees into a shared store",
	Long: `vendorsync merges the vendor trees of every plugin under an installation
root into one shared vendor directory and regenerates the composer autoloader,
so plugins load one copy of each library instead of their own.

The shared store lives at <install-root>/vendor. Plugins keep their own vendor
trees as a boot-time fallback; 'vendorsync resolve' picks which one to load.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagInstallRoot, "install-root", "",
		"Installation root holding the shared vendor store (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "",
		"Path to .vendorsync.yaml (default: <install-root>/.vendorsync.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"Enable debug logging")
}

// loadConfig resolves the runtime configuration from flags, config file, and
// environment. Flags win over the file; environment wins over both.
func loadConfig() (*config.Config, error) {
	installRoot := flagInstallRoot
	if installRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		installRoot = cwd
	}

	configPath := flagConfigPath
	if configPath == "" {
		configPath = filepath.Join(installRoot, ".vendorsync.yaml")
	}

	cfg, err := config.Load(configPath, installRoot)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vendorsync/vendorsync/internal/bootstrap"
)

var resolvePlugin string

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Pick the autoload index a plugin should load at boot",
	Long: `Decide whether a plugin should load the shared store's autoloader or fall
back to its own vendor tree, and print the chosen index path on stdout.

This is the boot hook: run it before the plugin loads any shared code. The
decision is deterministic - a shared store missing its index or missing any
package the plugin's lockfile pins is never selected. Warnings about a
fallback go to stderr.

Exit codes:
  0 - an index was selected (stdout has its path)
  2 - fatal: no usable index; the plugin must be deactivated`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		res, err := bootstrap.Resolve(resolvePlugin, cfg.SharedStoreDir())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}

		for _, warning := range res.Warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
		fmt.Println(res.IndexPath)
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().StringVar(&resolvePlugin, "plugin", "", "Plugin root directory (required)")
	_ = resolveCmd.MarkFlagRequired("plugin")
}

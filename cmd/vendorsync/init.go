package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the shared dependency store root",
	Long: `Create the shared vendor directory at the installation root.

This is the activation hook: it must succeed before any consolidation pass
runs. Creation is idempotent; an existing store is left untouched. If the
directory cannot be created, activation must abort, so this command fails
loudly.

Example:
  vendorsync --install-root /srv/app init`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		store := cfg.SharedStoreDir()
		if err := os.MkdirAll(store, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot create shared store at %s: %v\n", store, err)
			fmt.Fprintf(os.Stderr, "Activation must not proceed without a shared store.\n")
			os.Exit(2)
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Printf("\n%s Shared dependency store ready\n\n", green("✓"))
		fmt.Printf("  Store: %s\n", cyan(store))
		fmt.Printf("  Scan base: %s\n", cyan(cfg.ScanBaseDir))
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

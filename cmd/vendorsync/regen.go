package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vendorsync/vendorsync/internal/composer"
)

var regenCmd = &cobra.Command{
	Use:   "regen",
	Short: "Regenerate the shared store's autoload index",
	Long: `Regenerate the composer autoloader in the shared store.

Consolidation passes regenerate the index automatically when they mutate the
store; this command is the standalone maintenance operation for everything
else (manual store surgery, a pass run with --no-regen, recovery after a
failed regeneration).`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx := context.Background()

		gw, err := composer.New(ctx, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if err := gw.RegenerateIndex(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Regenerated autoload index at %s\n", green("✓"), cfg.SharedIndexPath())
	},
}

func init() {
	rootCmd.AddCommand(regenCmd)
}

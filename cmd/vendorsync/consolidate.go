package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vendorsync/vendorsync/internal/composer"
	"github.com/vendorsync/vendorsync/internal/consolidate"
	"github.com/vendorsync/vendorsync/internal/journal"
)

var consolidateNoRegen bool

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Run one consolidation pass over all plugins",
	Long: `Discover plugin units under the scan base directory and merge each one's
dependency tree into the shared store.

Per plugin: a vendor/composer.json manifest is installed through composer; a
vendor tree without a manifest has its resolved packages migrated directly; a
plugin without a vendor tree is skipped. One plugin's failure never aborts the
pass - failures are reported at the end for operator review.

If the pass mutated the store, the shared autoloader is regenerated once at
the end (disable with --no-regen; 'vendorsync regen' runs it separately).`,
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

		engine := consolidate.New(cfg, gw)
		report, err := engine.Consolidate(ctx, consolidate.Options{SkipRegen: consolidateNoRegen})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		// Journal failures are observability-only, never fatal to a pass.
		if j, err := journal.Open(cfg.JournalPath); err == nil {
			if err := j.RecordPass(ctx, report); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to record pass in journal: %v\n", err)
			}
			_ = j.Close()
		} else {
			fmt.Fprintf(os.Stderr, "Warning: failed to open journal: %v\n", err)
		}

		printPassReport(report)
	},
}

func printPassReport(report *consolidate.PassReport) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\nConsolidation pass %s\n\n", gray(report.ID))

	for _, res := range report.Results {
		switch res.Action {
		case consolidate.ActionSkipped:
			fmt.Printf("  %s %s (no dependency tree)\n", gray("-"), res.Root)
		case consolidate.ActionInstalled:
			fmt.Printf("  %s %s (installed from manifest)\n", green("✓"), res.Root)
		case consolidate.ActionMigrated:
			fmt.Printf("  %s %s (migrated %d packages)\n", green("✓"), res.Root, res.Packages)
		case consolidate.ActionFailed:
			fmt.Printf("  %s %s: %v\n", red("✗"), res.Root, res.Err)
		}
	}

	if report.RegenRan {
		if report.RegenErr != nil {
			fmt.Printf("\n%s Autoload regeneration failed: %v\n", yellow("⚠"), report.RegenErr)
		} else {
			fmt.Printf("\n%s Autoload index regenerated\n", green("✓"))
		}
	}

	failed := len(report.Failures())
	fmt.Printf("\n%d plugins processed, %d failed, duration %s\n\n",
		len(report.Results), failed, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
}

func init() {
	rootCmd.AddCommand(consolidateCmd)
	consolidateCmd.Flags().BoolVar(&consolidateNoRegen, "no-regen", false,
		"Skip regenerating the autoload index at the end of the pass")
}

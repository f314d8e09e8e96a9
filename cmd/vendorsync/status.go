package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vendorsync/vendorsync/internal/consolidate"
	"github.com/vendorsync/vendorsync/internal/journal"
)

var statusPasses int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show shared store state, duplicate packages, and pass history",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		ctx := context.Background()

		fmt.Printf("\nShared store: %s\n", cyan(cfg.SharedStoreDir()))
		if _, err := os.Stat(cfg.SharedIndexPath()); err == nil {
			fmt.Printf("  %s autoload index present\n", green("✓"))
		} else {
			fmt.Printf("  %s autoload index missing\n", yellow("⚠"))
		}

		// Duplicate report runs without a gateway; it only reads plugin trees.
		engine := consolidate.New(cfg, nil)
		dups, err := engine.DuplicateReport(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: duplicate scan failed: %v\n", err)
		}
		fmt.Printf("\nDuplicate packages across plugin trees: %d\n", len(dups))
		for _, d := range dups {
			fmt.Printf("  %s (%d copies, newest %s in %s)\n",
				cyan(d.Name), len(d.Occurrences), d.Newest.Version, d.Newest.PluginRoot)
			for _, o := range d.Occurrences {
				fmt.Printf("    %s %s %s\n", gray("-"), o.PluginRoot, gray(o.Version))
			}
		}

		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: journal unavailable: %v\n", err)
			return
		}
		defer j.Close()

		passes, err := j.RecentPasses(ctx, statusPasses)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to read pass history: %v\n", err)
			return
		}

		fmt.Printf("\nRecent passes:\n")
		if len(passes) == 0 {
			fmt.Printf("  %s\n", gray("none recorded"))
		}
		for _, p := range passes {
			marker := green("✓")
			if p.PluginsFailed > 0 || p.RegenError != "" {
				marker = yellow("⚠")
			}
			fmt.Printf("  %s %s  %d plugins, %d failed  %s\n",
				marker, p.StartedAt.Format("2006-01-02 15:04:05"),
				p.PluginsTotal, p.PluginsFailed, gray(p.ID))
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().IntVar(&statusPasses, "passes", 10, "Number of recent passes to show")
}

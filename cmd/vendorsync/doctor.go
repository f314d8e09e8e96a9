package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vendorsync/vendorsync/internal/bootstrap"
	"github.com/vendorsync/vendorsync/internal/journal"
	"github.com/vendorsync/vendorsync/internal/manifest"
	"github.com/vendorsync/vendorsync/internal/plugin"
)

var doctorPlugin string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check shared store and plugin boot preconditions",
	Long: `Run health checks over the shared dependency store and every plugin's
boot preconditions.

This command checks:
- Composer binary availability
- Shared store directory and autoload index
- Store lock status
- Per-plugin boot resolution (lockfile, manifest, vendor tree, package coverage)
- Journal accessibility

Exit codes:
  0 - All checks passed
  1 - Warnings only (plugins falling back to local trees, etc.)
  2 - Fatal failures (a plugin cannot boot, or the store is unusable)`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		var warnings, failures []string

		fmt.Printf("Running vendorsync health checks...\n\n")

		// Check 1: composer binary.
		fmt.Printf("%s Composer binary\n", cyan("→"))
		if path, err := exec.LookPath(cfg.ComposerPath); err != nil {
			failures = append(failures, fmt.Sprintf("composer not found: %v", err))
			fmt.Printf("  %s composer not found (looked for %q)\n", red("✗"), cfg.ComposerPath)
		} else {
			fmt.Printf("  %s Found composer: %s\n", green("✓"), path)
		}

		// Check 2: shared store.
		fmt.Printf("%s Shared dependency store\n", cyan("→"))
		if info, err := os.Stat(cfg.SharedStoreDir()); err != nil || !info.IsDir() {
			failures = append(failures, "shared store directory missing")
			fmt.Printf("  %s Store missing at %s (run 'vendorsync init')\n", red("✗"), cfg.SharedStoreDir())
		} else {
			fmt.Printf("  %s Store present: %s\n", green("✓"), cfg.SharedStoreDir())
			if _, err := os.Stat(cfg.SharedIndexPath()); err != nil {
				warnings = append(warnings, "shared index missing; plugins will fall back to local trees")
				fmt.Printf("  %s No autoload index (run 'vendorsync regen')\n", yellow("⚠"))
			} else {
				fmt.Printf("  %s Autoload index present\n", green("✓"))
			}
		}

		// Check 3: store lock.
		fmt.Printf("%s Store lock\n", cyan("→"))
		if _, err := os.Stat(cfg.LockPath()); err == nil {
			warnings = append(warnings, "store lock file present; a pass may be running or died uncleanly")
			fmt.Printf("  %s Lock file present at %s\n", yellow("⚠"), cfg.LockPath())
		} else {
			fmt.Printf("  %s No active lock\n", green("✓"))
		}

		// Check 4: per-plugin boot resolution.
		fmt.Printf("%s Plugin boot preconditions\n", cyan("→"))
		roots := []string{doctorPlugin}
		if doctorPlugin == "" {
			roots, _ = plugin.ListRoots(cfg.ScanBaseDir)
		}
		if len(roots) == 0 {
			fmt.Printf("  %s No plugins found under %s\n", green("✓"), cfg.ScanBaseDir)
		}
		for _, root := range roots {
			desc := plugin.NewDescriptor(root)
			if doctorPlugin == "" && !desc.HasDependencyTree() {
				fmt.Printf("  %s %s: no dependency tree, nothing to resolve\n", green("✓"), root)
				continue
			}
			res, err := bootstrap.Resolve(root, cfg.SharedStoreDir())
			switch {
			case err != nil:
				failures = append(failures, fmt.Sprintf("%s: %v", root, err))
				fmt.Printf("  %s %s: %v\n", red("✗"), root, err)
			case res.Store == bootstrap.StoreLocal:
				warnings = append(warnings, fmt.Sprintf("%s falls back to its local tree", root))
				fmt.Printf("  %s %s: local fallback (%s)\n", yellow("⚠"), root, res.Warnings[0])
				if total, missing, covErr := lockfileCoverage(root, cfg.SharedStoreDir()); covErr == nil && len(missing) > 0 {
					fmt.Printf("    %d/%d locked packages in store; first missing: %s\n", total-len(missing), total, missing[0])
				}
			default:
				total, missing, covErr := lockfileCoverage(root, cfg.SharedStoreDir())
				switch {
				case covErr != nil:
					warnings = append(warnings, fmt.Sprintf("%s: lockfile unreadable: %v", root, covErr))
					fmt.Printf("  %s %s: shared store, lockfile unreadable (%v)\n", yellow("⚠"), root, covErr)
				case len(missing) > 0:
					warnings = append(warnings, fmt.Sprintf("%s: %d of %d locked packages missing from store", root, len(missing), total))
					fmt.Printf("  %s %s: shared store, %d/%d packages present (missing %s)\n", yellow("⚠"), root, total-len(missing), total, missing[0])
				default:
					fmt.Printf("  %s %s: shared store, all %d locked packages present\n", green("✓"), root, total)
				}
			}
		}

		// Check 5: journal.
		fmt.Printf("%s Pass journal\n", cyan("→"))
		if j, err := journal.Open(cfg.JournalPath); err != nil {
			warnings = append(warnings, fmt.Sprintf("journal unavailable: %v", err))
			fmt.Printf("  %s Journal unavailable: %v\n", yellow("⚠"), err)
		} else {
			if passes, err := j.RecentPasses(context.Background(), 1); err == nil && len(passes) > 0 {
				fmt.Printf("  %s Journal OK, last pass %s\n", green("✓"), passes[0].StartedAt.Format("2006-01-02 15:04:05"))
			} else {
				fmt.Printf("  %s Journal OK, no passes recorded yet\n", green("✓"))
			}
			_ = j.Close()
		}

		fmt.Println()
		switch {
		case len(failures) > 0:
			fmt.Printf("%s %d fatal problem(s), %d warning(s)\n", red("✗"), len(failures), len(warnings))
			os.Exit(2)
		case len(warnings) > 0:
			fmt.Printf("%s %d warning(s)\n", yellow("⚠"), len(warnings))
			os.Exit(1)
		default:
			fmt.Printf("%s All checks passed\n", green("✓"))
		}
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().StringVar(&doctorPlugin, "plugin", "", "Check a single plugin root instead of all discovered plugins")
}

// lockfileCoverage reads a plugin's resolved lockfile and reports how many of
// its packages have a directory in the shared store. Returns the total locked
// package count and the sorted names that are absent.
func lockfileCoverage(pluginRoot, sharedStore string) (total int, missing []string, err error) {
	lf, err := manifest.LoadLockfile(filepath.Join(pluginRoot, "composer.lock"))
	if err != nil {
		return 0, nil, err
	}
	names := lf.PackageNames()
	for _, name := range names {
		if _, statErr := os.Stat(filepath.Join(sharedStore, filepath.FromSlash(name))); statErr != nil {
			missing = append(missing, name)
		}
	}
	return len(names), missing, nil
}

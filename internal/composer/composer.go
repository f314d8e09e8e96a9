// Package composer is the only component permitted to invoke the external
// composer CLI. It treats the subprocess boundary as the unit of failure
// isolation: the gateway inspects exit statuses, never composer's resolution
// internals, so the rest of the system stays independent of how composer
// solves versions.
package composer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/vendorsync/vendorsync/internal/config"
	"github.com/vendorsync/vendorsync/internal/manifest"
)

// Metadata directories inside a vendor tree that are not packages.
var reservedTreeEntries = map[string]bool{
	"composer": true,
	"bin":      true,
}

// Gateway wraps the composer CLI. All mutations of the shared dependency
// store go through it; no other component writes package files.
type Gateway struct {
	composerPath string
	// storeRoot is the installation root every invocation runs in; composer
	// maintains <storeRoot>/vendor as the shared store.
	storeRoot string
	timeout   time.Duration
	log       *slog.Logger
}

// New creates a Gateway for the configured shared store.
// It verifies that composer is available and runnable.
func New(ctx context.Context, cfg *config.Config) (*Gateway, error) {
	composerPath, err := exec.LookPath(cfg.ComposerPath)
	if err != nil {
		return nil, fmt.Errorf("composer not found (looked for %q): %w", cfg.ComposerPath, err)
	}

	cmd := exec.CommandContext(ctx, composerPath, "--version")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("composer command failed: %w", err)
	}

	return &Gateway{
		composerPath: composerPath,
		storeRoot:    cfg.InstallRoot,
		timeout:      cfg.CommandTimeout,
		log:          slog.Default().With("component", "composer"),
	}, nil
}

// InstallFromManifest installs every package a plugin manifest requires into
// the shared store. The manifest's require map is read only to build
// name:version arguments; constraint semantics stay composer's problem.
// On failure, partial mutation of the store may remain; there is no rollback.
func (g *Gateway) InstallFromManifest(ctx context.Context, manifestPath string) error {
	refs, err := manifest.ParseManifest(manifestPath)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		g.log.Debug("manifest requires no packages", "manifest", manifestPath)
		return nil
	}

	args := []string{"require", "--no-interaction", "--no-progress", "--update-no-dev"}
	for _, ref := range refs {
		args = append(args, ref.String())
	}

	if err := g.run(ctx, "require", manifestPath, args...); err != nil {
		return err
	}
	g.log.Info("installed from manifest", "manifest", manifestPath, "packages", len(refs))
	return nil
}

// MigrateResolvedPackages reinstalls each already-resolved package under
// treePath into the shared store. Failures on individual packages are
// collected and reported together; one bad package never aborts the rest.
// The returned error is an *AggregateError when any unit failed.
func (g *Gateway) MigrateResolvedPackages(ctx context.Context, treePath string) (*MigrationReport, error) {
	units, report := g.packageUnits(treePath)

	for _, unit := range units {
		ref, err := manifest.ReadPackageRef(filepath.Join(unit, "composer.json"))
		if err == nil {
			err = g.run(ctx, "require", ref.Name,
				"require", "--no-interaction", "--no-progress", "--update-no-dev", ref.String())
		}
		if err != nil {
			g.log.Warn("package migration failed", "unit", unit, "error", err)
			report.Failures = append(report.Failures, UnitFailure{Unit: unit, Err: err})
			continue
		}
		report.Migrated = append(report.Migrated, ref.Name)
	}

	if report.Failed() {
		return report, &AggregateError{Tree: treePath, Failures: report.Failures}
	}
	g.log.Info("migrated resolved packages", "tree", treePath, "packages", len(report.Migrated))
	return report, nil
}

// packageUnits enumerates the package directories of a resolved vendor tree.
// An immediate subdirectory carrying composer.json is one unit. A
// subdirectory without one is a vendor namespace grouping and its children
// become the units; a child without composer.json, or a namespace with no
// package subdirectories, is recorded as a failure on the report so it is
// never silently skipped.
func (g *Gateway) packageUnits(treePath string) ([]string, *MigrationReport) {
	report := &MigrationReport{}

	entries, err := os.ReadDir(treePath)
	if err != nil {
		report.Failures = append(report.Failures, UnitFailure{
			Unit: treePath,
			Err:  fmt.Errorf("failed to read dependency tree: %w", err),
		})
		return nil, report
	}

	var units []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || reservedTreeEntries[name] || strings.HasPrefix(name, ".") {
			continue
		}
		dir := filepath.Join(treePath, name)

		if hasManifestFile(dir) {
			units = append(units, dir)
			continue
		}

		children, err := os.ReadDir(dir)
		if err != nil {
			report.Failures = append(report.Failures, UnitFailure{
				Unit: dir,
				Err:  fmt.Errorf("failed to read namespace directory: %w", err),
			})
			continue
		}
		childDirs := 0
		for _, child := range children {
			if !child.IsDir() {
				continue
			}
			childDirs++
			pkgDir := filepath.Join(dir, child.Name())
			if hasManifestFile(pkgDir) {
				units = append(units, pkgDir)
			} else {
				report.Failures = append(report.Failures, UnitFailure{
					Unit: pkgDir,
					Err:  fmt.Errorf("no composer.json in package directory"),
				})
			}
		}
		if childDirs == 0 {
			report.Failures = append(report.Failures, UnitFailure{
				Unit: dir,
				Err:  fmt.Errorf("no package directories in namespace directory"),
			})
		}
	}

	return units, report
}

// RegenerateIndex rebuilds the shared store's autoloader.
func (g *Gateway) RegenerateIndex(ctx context.Context) error {
	if err := g.run(ctx, "dump-autoload", g.storeRoot,
		"dump-autoload", "--no-interaction", "--optimize"); err != nil {
		return err
	}
	g.log.Info("regenerated autoload index", "store", g.storeRoot)
	return nil
}

// run executes one composer invocation in the shared store with the
// configured timeout. Arguments are always passed as an argv slice, never
// through a shell, so untrusted path segments cannot alter the command.
func (g *Gateway) run(ctx context.Context, op, target string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.composerPath, args...)
	cmd.Dir = g.storeRoot

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	g.log.Debug("running composer", "op", op, "target", target, "args", args)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &CommandError{
				Op:       op,
				Target:   target,
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
			}
		}
		return fmt.Errorf("composer %s failed for %s: %w", op, target, err)
	}
	return nil
}

func hasManifestFile(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, "composer.json"))
	return err == nil && info.Mode().IsRegular()
}

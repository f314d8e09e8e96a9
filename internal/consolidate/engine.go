// Package consolidate orchestrates a consolidation pass: discover plugin
// units, decide per plugin between manifest install and package migration,
// drive the composer gateway, and regenerate the shared autoload index.
package consolidate

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vendorsync/vendorsync/internal/composer"
	"github.com/vendorsync/vendorsync/internal/config"
	"github.com/vendorsync/vendorsync/internal/plugin"
)

// PackageManager is the gateway surface the engine drives. Satisfied by
// *composer.Gateway; faked in tests.
type PackageManager interface {
	InstallFromManifest(ctx context.Context, manifestPath string) error
	MigrateResolvedPackages(ctx context.Context, treePath string) (*composer.MigrationReport, error)
	RegenerateIndex(ctx context.Context) error
}

// Options tune a single pass.
type Options struct {
	// SkipRegen suppresses the end-of-pass autoload regeneration. The
	// regeneration can then be run separately as a maintenance operation.
	SkipRegen bool
}

// Engine runs consolidation passes against the shared dependency store.
type Engine struct {
	cfg *config.Config
	pm  PackageManager
	log *slog.Logger
}

// New creates an Engine. The package manager gateway is injected; the engine
// itself never touches package files on disk.
func New(cfg *config.Config, pm PackageManager) *Engine {
	return &Engine{
		cfg: cfg,
		pm:  pm,
		log: slog.Default().With("component", "consolidate"),
	}
}

// Consolidate runs one pass. One plugin's failure never aborts the scan:
// gateway errors are recorded on the report and the loop continues. The
// returned error covers only pass-level problems (the store lock); a report
// full of failures still returns nil.
//
// If the pass mutated the store, the autoload index is regenerated once at
// the end (unless opts.SkipRegen); a regeneration failure is recorded on the
// report, since it is fatal only at boot, not during consolidation.
func (e *Engine) Consolidate(ctx context.Context, opts Options) (*PassReport, error) {
	lockPath, err := acquireStoreLock(e.cfg.LockPath())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := releaseStoreLock(lockPath); err != nil {
			e.log.Warn("failed to release store lock", "error", err)
		}
	}()

	report := &PassReport{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
	}
	e.log.Info("starting consolidation pass", "pass", report.ID, "base", e.cfg.ScanBaseDir)

	roots, err := plugin.ListRoots(e.cfg.ScanBaseDir)
	if err != nil {
		// Unreadable base directory degrades to an empty installation.
		e.log.Debug("plugin discovery degraded to empty", "error", err)
		roots = nil
	}

	for _, root := range roots {
		report.Results = append(report.Results, e.processPlugin(ctx, plugin.NewDescriptor(root)))
	}

	if report.Mutated() && !opts.SkipRegen {
		report.RegenRan = true
		if err := e.pm.RegenerateIndex(ctx); err != nil {
			e.log.Warn("autoload regeneration failed", "pass", report.ID, "error", err)
			report.RegenErr = err
		}
	}

	report.FinishedAt = time.Now()
	e.log.Info("consolidation pass finished",
		"pass", report.ID,
		"plugins", len(report.Results),
		"failed", len(report.Failures()),
		"duration", report.FinishedAt.Sub(report.StartedAt))

	return report, nil
}

// processPlugin applies the per-plugin decision: no vendor tree → skip;
// explicit manifest → install from it; otherwise → migrate the resolved
// packages directly.
func (e *Engine) processPlugin(ctx context.Context, desc plugin.Descriptor) PluginResult {
	if !desc.HasDependencyTree() {
		e.log.Debug("plugin has no dependency tree, skipping", "plugin", desc.Root)
		return PluginResult{Root: desc.Root, Action: ActionSkipped}
	}

	if desc.HasManifest() {
		if err := e.pm.InstallFromManifest(ctx, desc.ManifestPath()); err != nil {
			e.log.Warn("manifest install failed", "plugin", desc.Root, "error", err)
			return PluginResult{Root: desc.Root, Action: ActionFailed, Err: err}
		}
		return PluginResult{Root: desc.Root, Action: ActionInstalled}
	}

	mig, err := e.pm.MigrateResolvedPackages(ctx, desc.DependencyTreePath())
	if err != nil {
		e.log.Warn("package migration failed", "plugin", desc.Root, "error", err)
		result := PluginResult{Root: desc.Root, Action: ActionFailed, Err: err}
		if mig != nil {
			result.Packages = len(mig.Migrated)
		}
		return result
	}
	return PluginResult{Root: desc.Root, Action: ActionMigrated, Packages: len(mig.Migrated)}
}

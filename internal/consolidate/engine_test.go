package consolidate

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendorsync/vendorsync/internal/composer"
	"github.com/vendorsync/vendorsync/internal/config"
)

// fakePM records gateway calls. Targets in failInstall fail their manifest
// install; trees in failMigrate fail partially, with one package migrated
// before the failing unit.
type fakePM struct {
	installs    []string
	migrations  []string
	regenCalls  int
	failInstall map[string]bool
	failMigrate map[string]bool
}

func (f *fakePM) InstallFromManifest(ctx context.Context, manifestPath string) error {
	f.installs = append(f.installs, manifestPath)
	if f.failInstall[manifestPath] {
		return &composer.CommandError{Op: "require", Target: manifestPath, ExitCode: 2}
	}
	return nil
}

func (f *fakePM) MigrateResolvedPackages(ctx context.Context, treePath string) (*composer.MigrationReport, error) {
	f.migrations = append(f.migrations, treePath)
	if f.failMigrate[treePath] {
		report := &composer.MigrationReport{
			Migrated: []string{"psr/log"},
			Failures: []composer.UnitFailure{{
				Unit: treePath,
				Err:  &composer.CommandError{Op: "require", Target: treePath, ExitCode: 2},
			}},
		}
		return report, &composer.AggregateError{Tree: treePath, Failures: report.Failures}
	}
	return &composer.MigrationReport{Migrated: []string{"psr/log"}}, nil
}

func (f *fakePM) RegenerateIndex(ctx context.Context) error {
	f.regenCalls++
	return nil
}

// makePlugin creates a plugin directory with the requested vendor shape.
func makePlugin(t *testing.T, base, name string, vendor, withManifest bool) string {
	t.Helper()
	root := filepath.Join(base, name)
	require.NoError(t, os.MkdirAll(root, 0755))
	if vendor {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "vendor"), 0755))
	}
	if withManifest {
		require.NoError(t, os.WriteFile(filepath.Join(root, "vendor", "composer.json"),
			[]byte(`{"require": {"psr/log": "^1.1"}}`), 0644))
	}
	return root
}

func newTestEngine(t *testing.T, base string) (*Engine, *fakePM) {
	t.Helper()
	cfg := config.Default(base)
	pm := &fakePM{failInstall: map[string]bool{}, failMigrate: map[string]bool{}}
	return New(cfg, pm), pm
}

func TestConsolidateRouting(t *testing.T) {
	base := t.TempDir()
	makePlugin(t, base, "bare", false, false)
	withManifest := makePlugin(t, base, "manifested", true, true)
	treeOnly := makePlugin(t, base, "resolved", true, false)

	engine, pm := newTestEngine(t, base)
	report, err := engine.Consolidate(context.Background(), Options{})
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	byRoot := map[string]PluginResult{}
	for _, res := range report.Results {
		byRoot[res.Root] = res
	}

	assert.Equal(t, ActionSkipped, byRoot[filepath.Join(base, "bare")].Action)
	assert.Equal(t, ActionInstalled, byRoot[withManifest].Action)
	assert.Equal(t, ActionMigrated, byRoot[treeOnly].Action)

	// No gateway calls for the plugin without a vendor tree.
	assert.Equal(t, []string{filepath.Join(withManifest, "vendor", "composer.json")}, pm.installs)
	assert.Equal(t, []string{filepath.Join(treeOnly, "vendor")}, pm.migrations)
}

func TestConsolidateIsolation(t *testing.T) {
	// Unit B's install fails; A and C must still be processed, and the pass
	// reports exactly one failure.
	base := t.TempDir()
	a := makePlugin(t, base, "a-unit", true, true)
	b := makePlugin(t, base, "b-unit", true, true)
	c := makePlugin(t, base, "c-unit", true, true)

	engine, pm := newTestEngine(t, base)
	pm.failInstall[filepath.Join(b, "vendor", "composer.json")] = true

	report, err := engine.Consolidate(context.Background(), Options{})
	require.NoError(t, err, "per-plugin failures must not fail the pass")

	require.Len(t, report.Results, 3)
	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, b, failures[0].Root)

	// All three manifests were attempted, in discovery order.
	assert.Equal(t, []string{
		filepath.Join(a, "vendor", "composer.json"),
		filepath.Join(b, "vendor", "composer.json"),
		filepath.Join(c, "vendor", "composer.json"),
	}, pm.installs)
}

func TestConsolidateIdempotence(t *testing.T) {
	// Two passes over an unchanged tree drive the gateway identically; the
	// observable package set cannot differ between them.
	base := t.TempDir()
	makePlugin(t, base, "manifested", true, true)
	makePlugin(t, base, "resolved", true, false)

	engine, pm := newTestEngine(t, base)

	first, err := engine.Consolidate(context.Background(), Options{})
	require.NoError(t, err)
	installsAfterFirst := append([]string(nil), pm.installs...)
	migrationsAfterFirst := append([]string(nil), pm.migrations...)

	second, err := engine.Consolidate(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, installsAfterFirst, pm.installs[len(installsAfterFirst):])
	assert.Equal(t, migrationsAfterFirst, pm.migrations[len(migrationsAfterFirst):])
	assert.Equal(t, len(first.Results), len(second.Results))
	assert.NotEqual(t, first.ID, second.ID)
}

func TestConsolidateRegenDecision(t *testing.T) {
	t.Run("RegenAfterMutation", func(t *testing.T) {
		base := t.TempDir()
		makePlugin(t, base, "manifested", true, true)

		engine, pm := newTestEngine(t, base)
		report, err := engine.Consolidate(context.Background(), Options{})
		require.NoError(t, err)

		assert.True(t, report.RegenRan)
		assert.Equal(t, 1, pm.regenCalls)
	})

	t.Run("RegenAfterPartialMigration", func(t *testing.T) {
		// A migration that failed on some units still moved the packages
		// before them; the store changed, so the index must be rebuilt even
		// though the plugin's result is a failure.
		base := t.TempDir()
		tree := makePlugin(t, base, "partial", true, false)

		engine, pm := newTestEngine(t, base)
		pm.failMigrate[filepath.Join(tree, "vendor")] = true

		report, err := engine.Consolidate(context.Background(), Options{})
		require.NoError(t, err)

		require.Len(t, report.Failures(), 1)
		assert.Equal(t, 1, report.Failures()[0].Packages)
		assert.True(t, report.Mutated(), "partially-migrated store counts as mutated")
		assert.True(t, report.RegenRan)
		assert.Equal(t, 1, pm.regenCalls)
	})

	t.Run("NoRegenWithoutMutation", func(t *testing.T) {
		base := t.TempDir()
		makePlugin(t, base, "bare", false, false)

		engine, pm := newTestEngine(t, base)
		report, err := engine.Consolidate(context.Background(), Options{})
		require.NoError(t, err)

		assert.False(t, report.RegenRan)
		assert.Equal(t, 0, pm.regenCalls)
	})

	t.Run("SkipRegenHonored", func(t *testing.T) {
		base := t.TempDir()
		makePlugin(t, base, "manifested", true, true)

		engine, pm := newTestEngine(t, base)
		report, err := engine.Consolidate(context.Background(), Options{SkipRegen: true})
		require.NoError(t, err)

		assert.False(t, report.RegenRan)
		assert.Equal(t, 0, pm.regenCalls)
	})
}

func TestConsolidateEmptyInstallation(t *testing.T) {
	engine, pm := newTestEngine(t, t.TempDir())

	report, err := engine.Consolidate(context.Background(), Options{})
	require.NoError(t, err, "an empty installation is a valid state")
	assert.Empty(t, report.Results)
	assert.Equal(t, 0, pm.regenCalls)
}

func TestStoreLock(t *testing.T) {
	t.Run("ConcurrentPassRejected", func(t *testing.T) {
		base := t.TempDir()
		engine, _ := newTestEngine(t, base)

		// Simulate a live holder: our own PID is definitely alive.
		hostname, err := os.Hostname()
		require.NoError(t, err)
		lock := storeLock{Holder: "vendorsync", PID: os.Getpid(), Hostname: hostname, StartedAt: time.Now()}
		data, err := json.Marshal(lock)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(config.Default(base).LockPath(), data, 0644))

		_, err = engine.Consolidate(context.Background(), Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already running")
	})

	t.Run("StaleLockOverwritten", func(t *testing.T) {
		base := t.TempDir()
		engine, _ := newTestEngine(t, base)

		hostname, err := os.Hostname()
		require.NoError(t, err)
		// PID 1 is init; Signal(0) from an unprivileged test process fails
		// with ESRCH only for dead PIDs, so use an implausibly high one.
		lock := storeLock{Holder: "vendorsync", PID: 1 << 30, Hostname: hostname, StartedAt: time.Now().Add(-time.Hour)}
		data, err := json.Marshal(lock)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(config.Default(base).LockPath(), data, 0644))

		_, err = engine.Consolidate(context.Background(), Options{})
		require.NoError(t, err, "stale lock should be overwritten")
	})

	t.Run("LockReleasedAfterPass", func(t *testing.T) {
		base := t.TempDir()
		engine, _ := newTestEngine(t, base)

		_, err := engine.Consolidate(context.Background(), Options{})
		require.NoError(t, err)

		_, err = os.Stat(config.Default(base).LockPath())
		assert.True(t, os.IsNotExist(err), "lock file should be removed after the pass")
	})
}

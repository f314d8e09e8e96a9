package consolidate

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vendorsync/vendorsync/internal/manifest"
	"github.com/vendorsync/vendorsync/internal/plugin"
)

// Occurrence is one copy of a package found in some plugin's vendor tree.
type Occurrence struct {
	PluginRoot string
	Version    string
}

// Duplicate is a package carried by more than one plugin. Newest is the
// occurrence with the highest version, the copy consolidation would
// effectively keep.
type Duplicate struct {
	Name        string
	Occurrences []Occurrence
	Newest      Occurrence
}

// scanConcurrency bounds the parallel vendor-tree reads. The scan is
// read-only, so it does not violate the single-mutator rule on the store.
const scanConcurrency = 4

// DuplicateReport scans every plugin's vendor tree and reports packages
// present in more than one of them - the duplication consolidation exists to
// eliminate. Trees are scanned concurrently; unreadable trees are skipped.
func (e *Engine) DuplicateReport(ctx context.Context) ([]Duplicate, error) {
	roots, err := plugin.ListRoots(e.cfg.ScanBaseDir)
	if err != nil || len(roots) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	found := make(map[string][]Occurrence)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)

	for _, root := range roots {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			desc := plugin.NewDescriptor(root)
			if !desc.HasDependencyTree() {
				return nil
			}
			for name, version := range treePackages(desc.DependencyTreePath()) {
				mu.Lock()
				found[name] = append(found[name], Occurrence{PluginRoot: root, Version: version})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var dups []Duplicate
	for name, occs := range found {
		if len(occs) < 2 {
			continue
		}
		sort.Slice(occs, func(i, j int) bool { return occs[i].PluginRoot < occs[j].PluginRoot })
		newest := occs[0]
		for _, o := range occs[1:] {
			if manifest.CompareVersions(o.Version, newest.Version) > 0 {
				newest = o
			}
		}
		dups = append(dups, Duplicate{Name: name, Occurrences: occs, Newest: newest})
	}
	sort.Slice(dups, func(i, j int) bool { return dups[i].Name < dups[j].Name })

	return dups, nil
}

// treePackages maps package name to version for every resolved package in a
// vendor tree, covering both flat and namespace-grouped layouts.
func treePackages(treePath string) map[string]string {
	pkgs := make(map[string]string)

	entries, err := os.ReadDir(treePath)
	if err != nil {
		return pkgs
	}

	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") || name == "composer" || name == "bin" {
			continue
		}
		dir := filepath.Join(treePath, name)

		if ref, err := manifest.ReadPackageRef(filepath.Join(dir, "composer.json")); err == nil {
			pkgs[ref.Name] = ref.Version
			continue
		}

		children, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, child := range children {
			if !child.IsDir() {
				continue
			}
			pkgDir := filepath.Join(dir, child.Name())
			if ref, err := manifest.ReadPackageRef(filepath.Join(pkgDir, "composer.json")); err == nil {
				pkgs[ref.Name] = ref.Version
			}
		}
	}

	return pkgs
}

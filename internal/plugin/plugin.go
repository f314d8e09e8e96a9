// Package plugin discovers plugin units under an installation root and
// answers path-derived questions about their dependency trees.
package plugin

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Descriptor represents one discovered plugin unit. It is ephemeral: built
// once per scan pass, discarded at the end. Every predicate stats the
// filesystem fresh; the filesystem is the source of truth and may change
// between calls (acceptable race, not guarded).
type Descriptor struct {
	Root string
}

// NewDescriptor wraps an absolute plugin root directory.
func NewDescriptor(root string) Descriptor {
	return Descriptor{Root: root}
}

// DependencyTreePath is the plugin's own vendor directory.
func (d Descriptor) DependencyTreePath() string {
	return filepath.Join(d.Root, "vendor")
}

// ManifestPath is the manifest inside the plugin's vendor directory.
func (d Descriptor) ManifestPath() string {
	return filepath.Join(d.DependencyTreePath(), "composer.json")
}

// HasDependencyTree reports whether the plugin carries its own vendor tree.
func (d Descriptor) HasDependencyTree() bool {
	info, err := os.Stat(d.DependencyTreePath())
	return err == nil && info.IsDir()
}

// HasManifest reports whether the vendor tree carries an explicit manifest.
// The manifest lives inside the tree, so HasManifest implies HasDependencyTree.
func (d Descriptor) HasManifest() bool {
	info, err := os.Stat(d.ManifestPath())
	return err == nil && info.Mode().IsRegular()
}

// ListRoots returns the absolute paths of candidate plugin directories one
// level below baseDir, sorted by path so that reprocessing the same tree is
// reproducible. A missing or unreadable base directory is a valid empty
// installation, not an error. Dot-directories are skipped.
func ListRoots(baseDir string) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, nil
	}

	var roots []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(baseDir, entry.Name()))
		if err != nil {
			continue
		}
		roots = append(roots, abs)
	}
	sort.Strings(roots)

	return roots, nil
}

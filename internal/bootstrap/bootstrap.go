// Package bootstrap decides, at process start, whether a plugin should load
// the shared dependency store or fall back to its own vendor tree.
//
// It runs before the very autoloader it selects, so it is deliberately
// dependency-free: primitive filesystem checks and encoding/json only, with
// no imports from the rest of this module.
package bootstrap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Store identifies which dependency store the resolver selected.
type Store string

const (
	// StoreShared is the consolidated store at the installation root.
	StoreShared Store = "shared"
	// StoreLocal is the plugin's own previously-resolved vendor tree.
	StoreLocal Store = "local"
)

// IndexFileName is the composer-generated autoloader inside a store.
const IndexFileName = "autoload.php"

// Resolution is the outcome of a successful boot-time decision. Warnings
// explain a fallback to the local store; they are operator information, not
// failures.
type Resolution struct {
	Store     Store
	IndexPath string
	Warnings  []string
}

// PreconditionError reports a missing boot-time input. Which file is missing
// is part of the message: fatal boot errors must name the failed
// precondition, never a generic failure.
type PreconditionError struct {
	What string
	Path string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("boot precondition failed: %s not found at %s", e.What, e.Path)
}

// ErrLockfileMalformed marks a lockfile that exists but does not parse as
// JSON. Distinct from a missing lockfile; both are fatal but the user fixes
// them differently.
var ErrLockfileMalformed = errors.New("lockfile is not valid JSON")

// ErrNoUsableIndex marks the terminal failure: the chosen store has no index
// file on disk, so nothing can be loaded.
var ErrNoUsableIndex = errors.New("no valid autoload index found")

// lockfile mirrors the composer.lock subset the resolver needs. Kept here
// rather than imported so this package stays dependency-free.
type lockfile struct {
	Packages []struct {
		Name string `json:"name"`
	} `json:"packages"`
}

// Resolve runs the boot-time decision for one plugin.
//
//  1. composer.lock, composer.json and vendor/ must all exist (fatal).
//  2. composer.lock must parse as JSON (fatal).
//  3. Shared store missing its index file → local, with warning.
//  4. Any locked package missing under the shared store → local, with warning.
//  5. The chosen store's index file must exist on disk (fatal).
//
// A partially-consolidated shared store is never selected silently: steps 3
// and 4 degrade deterministically to the plugin's own tree.
func Resolve(pluginRoot, sharedStore string) (*Resolution, error) {
	lockPath := filepath.Join(pluginRoot, "composer.lock")
	manifestPath := filepath.Join(pluginRoot, "composer.json")
	localStore := filepath.Join(pluginRoot, "vendor")

	// Step 1: all boot inputs present.
	if !fileExists(lockPath) {
		return nil, &PreconditionError{What: "lockfile (composer.lock)", Path: lockPath}
	}
	if !fileExists(manifestPath) {
		return nil, &PreconditionError{What: "manifest (composer.json)", Path: manifestPath}
	}
	if !dirExists(localStore) {
		return nil, &PreconditionError{What: "local dependency tree (vendor/)", Path: localStore}
	}

	// Step 2: lockfile parses as structured data.
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read lockfile %s: %w", lockPath, err)
	}
	var lock lockfile
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLockfileMalformed, lockPath, err)
	}

	res := &Resolution{Store: StoreShared}

	// Step 3: shared index present.
	sharedIndex := filepath.Join(sharedStore, IndexFileName)
	if !fileExists(sharedIndex) {
		res.Store = StoreLocal
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("shared store has no index file at %s; using local dependency tree", sharedIndex))
	}

	// Step 4: every locked package consolidated. One missing package means
	// the shared store cannot satisfy this plugin, regardless of what else
	// it holds.
	if res.Store == StoreShared {
		for _, pkg := range lock.Packages {
			if pkg.Name == "" {
				continue
			}
			if !dirExists(filepath.Join(sharedStore, filepath.FromSlash(pkg.Name))) {
				res.Store = StoreLocal
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("package %s missing from shared store; using local dependency tree", pkg.Name))
				break
			}
		}
	}

	// Step 5: the chosen index must exist.
	switch res.Store {
	case StoreShared:
		res.IndexPath = sharedIndex
	case StoreLocal:
		res.IndexPath = filepath.Join(localStore, IndexFileName)
	}
	if !fileExists(res.IndexPath) {
		return nil, fmt.Errorf("%w: %s store index missing at %s", ErrNoUsableIndex, res.Store, res.IndexPath)
	}

	return res, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

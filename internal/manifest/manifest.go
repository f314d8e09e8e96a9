// Package manifest reads composer manifests and lockfiles. It performs no
// version resolution of its own; versions are opaque strings handed to the
// composer CLI, which owns their semantics.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// PackageRef identifies one resolved package. Constructed transiently while
// reading a manifest; only its effect on disk persists.
type PackageRef struct {
	Name    string
	Version string
}

// String renders the ref in composer's name:version argument form. A ref
// without a version renders as the bare name, letting composer pick.
func (r PackageRef) String() string {
	if r.Version == "" {
		return r.Name
	}
	return r.Name + ":" + r.Version
}

// Valid reports whether the ref names a real namespace/package pair.
func (r PackageRef) Valid() bool {
	return r.Name != "" && strings.Count(r.Name, "/") == 1
}

// composerJSON is the subset of composer.json this system reads.
type composerJSON struct {
	Name    string            `json:"name"`
	Version string            `json:"version"`
	Require map[string]string `json:"require"`
}

// ParseManifest reads a composer.json and returns the package refs from its
// require map, sorted by name. Platform requirements (php, ext-*, lib-*) have
// no namespace separator and are skipped; they are constraints on the
// runtime, not installable packages.
func ParseManifest(path string) ([]PackageRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var m composerJSON
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	refs := make([]PackageRef, 0, len(m.Require))
	for name, version := range m.Require {
		ref := PackageRef{Name: name, Version: version}
		if !ref.Valid() {
			continue
		}
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })

	return refs, nil
}

// ReadPackageRef reads the identity of a single resolved package from the
// composer.json inside its directory. Resolved package trees frequently omit
// the version field (composer records versions elsewhere); the returned ref
// then carries an empty version.
func ReadPackageRef(manifestPath string) (PackageRef, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return PackageRef{}, fmt.Errorf("failed to read package manifest %s: %w", manifestPath, err)
	}

	var m composerJSON
	if err := json.Unmarshal(data, &m); err != nil {
		return PackageRef{}, fmt.Errorf("failed to parse package manifest %s: %w", manifestPath, err)
	}

	ref := PackageRef{Name: m.Name, Version: m.Version}
	if !ref.Valid() {
		return PackageRef{}, fmt.Errorf("package manifest %s has no usable name (got %q)", manifestPath, m.Name)
	}
	return ref, nil
}

// CompareVersions orders two composer version strings. Versions that parse
// as semver compare semantically; anything else falls back to a lexical
// comparison, which is stable even when meaningless.
func CompareVersions(a, b string) int {
	ca, cb := canonicalSemver(a), canonicalSemver(b)
	if ca != "" && cb != "" {
		return semver.Compare(ca, cb)
	}
	return strings.Compare(a, b)
}

func canonicalSemver(v string) string {
	v = strings.TrimPrefix(v, "v")
	if !semver.IsValid("v" + v) {
		return ""
	}
	return "v" + v
}

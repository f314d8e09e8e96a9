package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Sentinel errors distinguishing the two fatal lockfile conditions at boot.
// A missing artifact and a malformed one fail differently to the user, so
// they must stay distinguishable with errors.Is.
var (
	ErrArtifactMissing   = errors.New("lockfile artifact missing")
	ErrArtifactMalformed = errors.New("lockfile artifact malformed")
)

// LockedPackage is one pinned entry from a composer.lock packages list.
type LockedPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Lockfile is the subset of composer.lock this system trusts: the list of
// exact resolved packages. Everything else in the file is composer's
// business.
type Lockfile struct {
	Packages []LockedPackage `json:"packages"`
}

// LoadLockfile reads and validates a composer.lock. The file must exist and
// parse as a JSON object; the caller decides what its contents mean.
func LoadLockfile(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, path)
		}
		return nil, fmt.Errorf("failed to read lockfile %s: %w", path, err)
	}

	var lock Lockfile
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactMalformed, path, err)
	}

	return &lock, nil
}

// PackageNames returns the locked package names in file order.
func (l *Lockfile) PackageNames() []string {
	names := make([]string, 0, len(l.Packages))
	for _, p := range l.Packages {
		names = append(names, p.Name)
	}
	return names
}

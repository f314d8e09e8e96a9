package consolidate

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"
)

// storeLock is the lock file format claiming exclusive mutation rights over
// the shared dependency store. The store tolerates only one writer at a
// time; the lock makes that explicit so overlapping passes fail fast instead
// of interleaving composer runs.
type storeLock struct {
	Holder    string    `json:"holder"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
}

// acquireStoreLock creates the advisory lock file beside the shared store.
// The file is created with O_EXCL so two racing passes cannot both win the
// create. A live holder is an error; a stale lock (dead process on this
// host, or an unreadable file) is removed and the create retried once.
// Returns the lock path for cleanup on pass completion.
func acquireStoreLock(lockPath string) (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}

	lock := storeLock{
		Holder:    "vendorsync",
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal lock: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			if _, werr := f.Write(data); werr != nil {
				f.Close()
				os.Remove(lockPath)
				return "", fmt.Errorf("failed to write store lock: %w", werr)
			}
			if cerr := f.Close(); cerr != nil {
				os.Remove(lockPath)
				return "", fmt.Errorf("failed to write store lock: %w", cerr)
			}
			return lockPath, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("failed to create store lock: %w", err)
		}

		existing, readErr := os.ReadFile(lockPath)
		if readErr == nil {
			var held storeLock
			if json.Unmarshal(existing, &held) == nil && isProcessAlive(held.PID, held.Hostname) {
				return "", fmt.Errorf("another consolidation pass is already running (PID %d on %s, started %s)",
					held.PID, held.Hostname, held.StartedAt.Format(time.RFC3339))
			}
		}
		// Stale or unreadable lock. Remove it and retry the exclusive create.
		if rmErr := os.Remove(lockPath); rmErr != nil && !os.IsNotExist(rmErr) {
			return "", fmt.Errorf("failed to remove stale store lock: %w", rmErr)
		}
	}

	return "", fmt.Errorf("failed to create store lock: lost the race at %s twice", lockPath)
}

// releaseStoreLock removes the lock file. Safe to call with an empty path or
// after the file is already gone.
func releaseStoreLock(lockPath string) error {
	if lockPath == "" {
		return nil
	}
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove store lock: %w", err)
	}
	return nil
}

// isProcessAlive checks whether the lock holder still exists. Remote holders
// cannot be checked and are assumed alive (fail-safe).
func isProcessAlive(pid int, hostname string) bool {
	currentHost, err := os.Hostname()
	if err != nil {
		return true
	}
	if !strings.EqualFold(hostname, currentHost) {
		return true
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if err == syscall.EPERM {
		// Process exists but belongs to someone else.
		return true
	}
	return false
}

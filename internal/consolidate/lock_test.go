package consolidate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireStoreLock(t *testing.T) {
	t.Run("SecondAcquireWhileHeldFails", func(t *testing.T) {
		lockPath := filepath.Join(t.TempDir(), ".vendorsync.lock")

		held, err := acquireStoreLock(lockPath)
		require.NoError(t, err)
		defer releaseStoreLock(held)

		_, err = acquireStoreLock(lockPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already running")
	})

	t.Run("CorruptLockFileRecovered", func(t *testing.T) {
		lockPath := filepath.Join(t.TempDir(), ".vendorsync.lock")
		require.NoError(t, os.WriteFile(lockPath, []byte("not json"), 0644))

		held, err := acquireStoreLock(lockPath)
		require.NoError(t, err, "a lock file that cannot be parsed has no live holder")

		data, err := os.ReadFile(held)
		require.NoError(t, err)
		var lock storeLock
		require.NoError(t, json.Unmarshal(data, &lock))
		assert.Equal(t, os.Getpid(), lock.PID)
	})

	t.Run("LockFileRecordsHolder", func(t *testing.T) {
		lockPath := filepath.Join(t.TempDir(), ".vendorsync.lock")

		held, err := acquireStoreLock(lockPath)
		require.NoError(t, err)

		data, err := os.ReadFile(held)
		require.NoError(t, err)
		var lock storeLock
		require.NoError(t, json.Unmarshal(data, &lock))
		assert.Equal(t, "vendorsync", lock.Holder)
		assert.Equal(t, os.Getpid(), lock.PID)
		assert.False(t, lock.StartedAt.IsZero())
	})

	t.Run("ReleaseRemovesFile", func(t *testing.T) {
		lockPath := filepath.Join(t.TempDir(), ".vendorsync.lock")

		held, err := acquireStoreLock(lockPath)
		require.NoError(t, err)
		require.NoError(t, releaseStoreLock(held))

		_, err = os.Stat(lockPath)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("ReleaseWithEmptyPathIsNoop", func(t *testing.T) {
		assert.NoError(t, releaseStoreLock(""))
	})
}

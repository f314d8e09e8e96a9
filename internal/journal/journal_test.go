package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendorsync/vendorsync/internal/consolidate"
)

func TestJournalRoundTrip(t *testing.T) {
	ctx := context.Background()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	started := time.Now().Add(-2 * time.Second)
	report := &consolidate.PassReport{
		ID:         "pass-1",
		StartedAt:  started,
		FinishedAt: time.Now(),
		Results: []consolidate.PluginResult{
			{Root: "/srv/app/alpha", Action: consolidate.ActionInstalled},
			{Root: "/srv/app/beta", Action: consolidate.ActionMigrated, Packages: 4},
			{Root: "/srv/app/gamma", Action: consolidate.ActionFailed, Err: errors.New("exit 2")},
		},
		RegenRan: true,
	}
	require.NoError(t, j.RecordPass(ctx, report))

	passes, err := j.RecentPasses(ctx, 10)
	require.NoError(t, err)
	require.Len(t, passes, 1)

	p := passes[0]
	assert.Equal(t, "pass-1", p.ID)
	assert.Equal(t, 3, p.PluginsTotal)
	assert.Equal(t, 1, p.PluginsFailed)
	assert.True(t, p.RegenRan)
	assert.Empty(t, p.RegenError)
}

func TestRecentPassesOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"old", "mid", "new"} {
		report := &consolidate.PassReport{
			ID:         id,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
		}
		require.NoError(t, j.RecordPass(ctx, report))
	}

	passes, err := j.RecentPasses(ctx, 2)
	require.NoError(t, err)
	require.Len(t, passes, 2)
	assert.Equal(t, "new", passes[0].ID)
	assert.Equal(t, "mid", passes[1].ID)
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Close())
}

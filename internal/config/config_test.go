package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default("/srv/app")

	assert.Equal(t, "/srv/app", cfg.InstallRoot)
	assert.Equal(t, "/srv/app", cfg.ScanBaseDir)
	assert.Equal(t, filepath.Join("/srv/app", "vendor"), cfg.SharedStoreDir())
	assert.Equal(t, filepath.Join("/srv/app", "vendor", "autoload.php"), cfg.SharedIndexPath())
	assert.Equal(t, DefaultCommandTimeout, cfg.CommandTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Run("MissingFileUsesDefaults", func(t *testing.T) {
		root := t.TempDir()
		cfg, err := Load(filepath.Join(root, ".vendorsync.yaml"), root)
		require.NoError(t, err)
		assert.Equal(t, root, cfg.InstallRoot)
		assert.Equal(t, "composer", cfg.ComposerPath)
	})

	t.Run("FileOverridesDefaults", func(t *testing.T) {
		root := t.TempDir()
		scanDir := filepath.Join(root, "plugins")
		path := filepath.Join(root, ".vendorsync.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
scan_base_dir: `+scanDir+`
composer_path: /usr/local/bin/composer2
command_timeout: 5m
`), 0644))

		cfg, err := Load(path, root)
		require.NoError(t, err)
		assert.Equal(t, scanDir, cfg.ScanBaseDir)
		assert.Equal(t, "/usr/local/bin/composer2", cfg.ComposerPath)
		assert.Equal(t, 5*time.Minute, cfg.CommandTimeout)
	})

	t.Run("EnvWinsOverFile", func(t *testing.T) {
		root := t.TempDir()
		path := filepath.Join(root, ".vendorsync.yaml")
		require.NoError(t, os.WriteFile(path, []byte("composer_path: /from/file\n"), 0644))
		t.Setenv("VENDORSYNC_COMPOSER_PATH", "/from/env")

		cfg, err := Load(path, root)
		require.NoError(t, err)
		assert.Equal(t, "/from/env", cfg.ComposerPath)
	})

	t.Run("MalformedYAML", func(t *testing.T) {
		root := t.TempDir()
		path := filepath.Join(root, ".vendorsync.yaml")
		require.NoError(t, os.WriteFile(path, []byte("scan_base_dir: [broken\n"), 0644))

		_, err := Load(path, root)
		assert.Error(t, err)
	})

	t.Run("BadTimeout", func(t *testing.T) {
		root := t.TempDir()
		path := filepath.Join(root, ".vendorsync.yaml")
		require.NoError(t, os.WriteFile(path, []byte("command_timeout: soon\n"), 0644))

		_, err := Load(path, root)
		assert.Error(t, err)
	})

	t.Run("NoRootAnywhere", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "none.yaml"), "")
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	cfg := Default("/srv/app")

	cfg.CommandTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = Default("relative/path")
	assert.Error(t, cfg.Validate())
}

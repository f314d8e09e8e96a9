// Package config holds the explicit configuration passed into every
// vendorsync component. There are no process-wide singletons: the CLI
// builds one Config and hands it to each constructor.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultCommandTimeout bounds each composer invocation. An external tool
// hang would otherwise hang a consolidation pass indefinitely.
const DefaultCommandTimeout = 120 * time.Second

// ConfigFile represents the structure of .vendorsync.yaml.
type ConfigFile struct {
	// InstallRoot is the root of the multi-plugin installation. The shared
	// dependency store lives at <install_root>/vendor.
	InstallRoot string `yaml:"install_root"`

	// ScanBaseDir is the directory whose immediate subdirectories are
	// treated as plugin units. Defaults to InstallRoot.
	ScanBaseDir string `yaml:"scan_base_dir"`

	// ComposerPath overrides PATH lookup of the composer binary.
	ComposerPath string `yaml:"composer_path"`

	// CommandTimeout is a duration string like "120s" or "5m".
	CommandTimeout string `yaml:"command_timeout"`

	// JournalPath is the sqlite pass journal. Defaults to
	// <install_root>/.vendorsync/journal.db.
	JournalPath string `yaml:"journal_path"`
}

// Config is the resolved runtime configuration.
type Config struct {
	InstallRoot    string
	ScanBaseDir    string
	ComposerPath   string
	CommandTimeout time.Duration
	JournalPath    string
}

// Default returns a Config rooted at the given installation directory.
func Default(installRoot string) *Config {
	cfg := &Config{
		InstallRoot:    installRoot,
		ScanBaseDir:    installRoot,
		ComposerPath:   "composer",
		CommandTimeout: DefaultCommandTimeout,
	}
	cfg.JournalPath = filepath.Join(installRoot, ".vendorsync", "journal.db")
	return cfg
}

// Load reads .vendorsync.yaml from path and resolves it against defaults.
// A missing file is not an error; the defaults for installRoot are used.
// Environment variables VENDORSYNC_INSTALL_ROOT and VENDORSYNC_COMPOSER_PATH
// take precedence over both (test isolation, same pattern as explicit flags).
func Load(path, installRoot string) (*Config, error) {
	var file ConfigFile

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// No config file: defaults only.
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if file.InstallRoot != "" {
		installRoot = file.InstallRoot
	}
	if env := os.Getenv("VENDORSYNC_INSTALL_ROOT"); env != "" {
		installRoot = env
	}
	if installRoot == "" {
		return nil, fmt.Errorf("no install root configured (set install_root in %s or pass --install-root)", path)
	}

	abs, err := filepath.Abs(installRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve install root: %w", err)
	}

	cfg := Default(abs)

	if file.ScanBaseDir != "" {
		cfg.ScanBaseDir = file.ScanBaseDir
	}
	if file.ComposerPath != "" {
		cfg.ComposerPath = file.ComposerPath
	}
	if env := os.Getenv("VENDORSYNC_COMPOSER_PATH"); env != "" {
		cfg.ComposerPath = env
	}
	if file.JournalPath != "" {
		cfg.JournalPath = file.JournalPath
	}
	if file.CommandTimeout != "" {
		d, err := time.ParseDuration(file.CommandTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid command_timeout %q: %w", file.CommandTimeout, err)
		}
		cfg.CommandTimeout = d
	}

	return cfg, nil
}

// SharedStoreDir is the consolidated vendor directory.
func (c *Config) SharedStoreDir() string {
	return filepath.Join(c.InstallRoot, "vendor")
}

// SharedIndexPath is the composer-generated autoloader inside the shared store.
func (c *Config) SharedIndexPath() string {
	return filepath.Join(c.SharedStoreDir(), "autoload.php")
}

// LockPath is the advisory lock file guarding the shared store.
func (c *Config) LockPath() string {
	return filepath.Join(c.InstallRoot, ".vendorsync.lock")
}

// Validate checks that the configuration is internally usable. It does not
// require the install root to exist yet; `vendorsync init` creates it.
func (c *Config) Validate() error {
	if c.InstallRoot == "" {
		return fmt.Errorf("install root is required")
	}
	if !filepath.IsAbs(c.InstallRoot) {
		return fmt.Errorf("install root must be absolute, got %q", c.InstallRoot)
	}
	if c.ScanBaseDir == "" {
		return fmt.Errorf("scan base dir is required")
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("command timeout must be positive, got %s", c.CommandTimeout)
	}
	return nil
}

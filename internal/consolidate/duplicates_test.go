package consolidate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePackage(t *testing.T, pluginRoot, name, version string) {
	t.Helper()
	dir := filepath.Join(pluginRoot, "vendor", filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(dir, 0755))
	content := `{"name": "` + name + `", "version": "` + version + `"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "composer.json"), []byte(content), 0644))
}

func TestDuplicateReport(t *testing.T) {
	base := t.TempDir()

	alpha := makePlugin(t, base, "alpha", true, false)
	beta := makePlugin(t, base, "beta", true, false)
	gamma := makePlugin(t, base, "gamma", true, false)

	writePackage(t, alpha, "monolog/monolog", "2.3.0")
	writePackage(t, beta, "monolog/monolog", "2.9.1")
	writePackage(t, gamma, "monolog/monolog", "1.27.0")
	writePackage(t, alpha, "psr/log", "1.1.4")
	writePackage(t, beta, "guzzlehttp/guzzle", "7.5.0")

	engine, _ := newTestEngine(t, base)
	dups, err := engine.DuplicateReport(context.Background())
	require.NoError(t, err)

	// Only monolog is carried by more than one plugin.
	require.Len(t, dups, 1)
	d := dups[0]
	assert.Equal(t, "monolog/monolog", d.Name)
	assert.Len(t, d.Occurrences, 3)
	assert.Equal(t, beta, d.Newest.PluginRoot)
	assert.Equal(t, "2.9.1", d.Newest.Version)
}

func TestDuplicateReportEmptyBase(t *testing.T) {
	engine, _ := newTestEngine(t, filepath.Join(t.TempDir(), "missing"))
	dups, err := engine.DuplicateReport(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dups)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtwin/dtwin/twin"
)

func TestLoad_MissingPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_NonexistentFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dtwin.toml")
	content := `
auto_start_watchers = false
latency_matrix_path = "/etc/dtwin/latency-matrix.yaml"
http_bind_addr = ":9090"

[cvar]
alpha = 0.99
risk_weight = 0.8
samples = 32
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.AutoStartWatchers)
	assert.Equal(t, "/etc/dtwin/latency-matrix.yaml", cfg.LatencyMatrixPath)
	assert.Equal(t, ":9090", cfg.HTTPBindAddr)
	assert.Equal(t, 0.99, cfg.CVaR.Alpha)
	assert.Equal(t, 32, cfg.CVaR.Samples)
}

func TestLoad_MalformedTOMLWrapsErrConfigError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid toml"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, twin.ErrConfigError)
}

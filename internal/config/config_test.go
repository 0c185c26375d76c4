package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/xfsirecover/internal/config"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "xfs-irecover")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0o644))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Nil(t, cfg.Defaults.Debugger)
	assert.Nil(t, cfg.Defaults.SizeCutoff)
	assert.Nil(t, cfg.Defaults.Journal)
}

func TestLoad_FullConfig(t *testing.T) {
	writeConfig(t, `
[defaults]
debugger = "/usr/sbin/xfs_db"
size_cutoff = "2G"
truncate_threshold = "64K"
min_size = "1K"
bwlimit = "50M"
timeout = "30s"
journal = false
`)

	cfg, err := config.Load()
	require.NoError(t, err)

	d := cfg.Defaults
	require.NotNil(t, d.Debugger)
	assert.Equal(t, "/usr/sbin/xfs_db", *d.Debugger)
	require.NotNil(t, d.SizeCutoff)
	assert.Equal(t, "2G", *d.SizeCutoff)
	require.NotNil(t, d.TruncateThreshold)
	assert.Equal(t, "64K", *d.TruncateThreshold)
	require.NotNil(t, d.MinSize)
	assert.Equal(t, "1K", *d.MinSize)
	require.NotNil(t, d.BWLimit)
	assert.Equal(t, "50M", *d.BWLimit)
	require.NotNil(t, d.Journal)
	assert.False(t, *d.Journal)

	timeout, ok, err := d.TimeoutDuration()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, timeout)
}

func TestLoad_PartialConfig(t *testing.T) {
	writeConfig(t, `
[defaults]
size_cutoff = "512M"
`)

	cfg, err := config.Load()
	require.NoError(t, err)

	require.NotNil(t, cfg.Defaults.SizeCutoff)
	assert.Equal(t, "512M", *cfg.Defaults.SizeCutoff)

	// Unset fields should remain nil.
	assert.Nil(t, cfg.Defaults.Debugger)
	assert.Nil(t, cfg.Defaults.BWLimit)
	_, ok, err := cfg.Defaults.TimeoutDuration()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoad_InvalidTOML(t *testing.T) {
	writeConfig(t, "invalid [[[")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_UnknownKey(t *testing.T) {
	writeConfig(t, `
[defaults]
size_cuttoff = "1G"
`)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defaults.size_cuttoff")
}

func TestTimeoutDuration_Invalid(t *testing.T) {
	bad := "soon"
	_, _, err := config.DefaultsConfig{Timeout: &bad}.TimeoutDuration()
	assert.Error(t, err)

	neg := "-5s"
	_, _, err = config.DefaultsConfig{Timeout: &neg}.TimeoutDuration()
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/xfs-irecover/config.toml", config.Path())
}

func TestPath_HomeFallback(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/operator")
	assert.Equal(t, "/home/operator/.config/xfs-irecover/config.toml", config.Path())
}

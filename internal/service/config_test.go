package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDirEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GVFS_CONFIG_DIR", dir)

	assert.Equal(t, dir, ConfigDir())
	assert.Equal(t, filepath.Join(dir, "registry.yaml"), RegistryPath())
	assert.Equal(t, filepath.Join(dir, "settings.yaml"), SettingsPath())
	assert.Equal(t, filepath.Join(dir, "service.lock"), LockPath())
	assert.Equal(t, filepath.Join(dir, "service.log"), LogPath())
}

func TestLogPathEnvOverride(t *testing.T) {
	t.Setenv("GVFS_SERVICE_LOG", "/tmp/custom.log")
	assert.Equal(t, "/tmp/custom.log", LogPath())
}

func TestLoadSettingsDefaults(t *testing.T) {
	t.Setenv("GVFS_CONFIG_DIR", t.TempDir())

	settings, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "gvfs-mount", settings.MountCommand)
	assert.Zero(t, settings.ProjectionBusyTimeout)
	assert.Zero(t, settings.CLIBusyTimeout)
}

func TestLoadSettingsFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GVFS_CONFIG_DIR", dir)

	contents := "projection_busy_timeout: 5000\ncli_busy_timeout: 2000\nmount_command: /usr/local/bin/gvfs-mount\nmount_args: [\"--verbose\"]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.yaml"), []byte(contents), 0600))

	settings, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, 5000, settings.ProjectionBusyTimeout)
	assert.Equal(t, 2000, settings.CLIBusyTimeout)
	assert.Equal(t, "/usr/local/bin/gvfs-mount", settings.MountCommand)
	assert.Equal(t, []string{"--verbose"}, settings.MountArgs)
}

func TestLoadSettingsMalformed(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GVFS_CONFIG_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.yaml"), []byte("{bad"), 0600))

	_, err := LoadSettings()
	assert.Error(t, err)
}

func TestEnsureConfigDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "gvfs")
	t.Setenv("GVFS_CONFIG_DIR", dir)

	require.NoError(t, EnsureConfigDir())
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

// Copyright 2024 GVFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package service

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// getConfigDir returns the config directory path.
// Uses GVFS_CONFIG_DIR env var if set, otherwise defaults to ~/.gvfs.
// This is computed dynamically to support test isolation.
func getConfigDir() string {
	if dir := os.Getenv("GVFS_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gvfs")
}

// ConfigDir returns the configuration directory path
func ConfigDir() string {
	return getConfigDir()
}

// RegistryPath returns the repo registry file path
func RegistryPath() string {
	return filepath.Join(getConfigDir(), "registry.yaml")
}

// SettingsPath returns the global settings file path
func SettingsPath() string {
	return filepath.Join(getConfigDir(), "settings.yaml")
}

// LockPath returns the service instance lock file path
func LockPath() string {
	return filepath.Join(getConfigDir(), "service.lock")
}

// LogPath returns the service log file path.
// Uses GVFS_SERVICE_LOG env var if set, otherwise config_dir/service.log.
func LogPath() string {
	if envPath := os.Getenv("GVFS_SERVICE_LOG"); envPath != "" {
		return envPath
	}
	return filepath.Join(getConfigDir(), "service.log")
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(getConfigDir(), 0700)
}

// Settings holds the global settings file contents. Zero timeout values
// mean "use env var or default".
type Settings struct {
	ProjectionBusyTimeout int `yaml:"projection_busy_timeout"`
	CLIBusyTimeout        int `yaml:"cli_busy_timeout"`

	// MountCommand is the projection executable spawned per mount.
	MountCommand string   `yaml:"mount_command"`
	MountArgs    []string `yaml:"mount_args"`
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() *Settings {
	return &Settings{
		MountCommand: "gvfs-mount",
	}
}

// LoadSettings reads the global settings file. A missing file yields the
// defaults.
func LoadSettings() (*Settings, error) {
	data, err := os.ReadFile(SettingsPath())
	if os.IsNotExist(err) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	if settings.MountCommand == "" {
		settings.MountCommand = DefaultSettings().MountCommand
	}
	return settings, nil
}

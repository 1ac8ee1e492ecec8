package config

import (
	"os"
	"path/filepath"
)

// UserConfigPath returns the path to the user-level config file under the
// platform config directory (XDG_CONFIG_HOME is respected on Linux):
// ~/.config/symlog/config.yml
func UserConfigPath() (string, error) {
	dir, err := UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yml"), nil
}

// UserConfigDir returns the user-level config directory.
func UserConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "symlog"), nil
}

// ProjectConfigPath returns .symlog/config.yml relative to the current directory.
func ProjectConfigPath() string {
	return filepath.Join(ProjectConfigDir(), "config.yml")
}

// ProjectConfigDir returns the project-level config directory.
func ProjectConfigDir() string {
	return ".symlog"
}

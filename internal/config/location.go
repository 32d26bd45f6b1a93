package config

import (
	"os"
	"path/filepath"
)

// ConfigEnvVar overrides the configuration file path.
const ConfigEnvVar = "MENDAX_CONFIG"

// GetConfigPath returns the configuration file path using kubectl-style behavior.
// It first checks the MENDAX_CONFIG environment variable, then falls back
// to the default location (~/.mendax/config).
func GetConfigPath() (string, error) {
	if configPath := os.Getenv(ConfigEnvVar); configPath != "" {
		return configPath, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".mendax", "config"), nil
}

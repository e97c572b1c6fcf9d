package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigFileName is the config file looked up in the working directory.
const ConfigFileName = "fm.toml"

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - FM_CONFIG_PATH: config file location (default: ./fm.toml)
//   - FM_HOME: base directory for the journal, backups and output (default: the working directory)
//
// The working directory is the default so that the undo journal and backups
// sit next to the files a user is classifying.
func GetDefaults() (map[string]string, error) {
	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	configPath := os.Getenv("FM_CONFIG_PATH")
	if configPath == "" {
		configPath = filepath.Join(baseDir, ConfigFileName)
		if os.Getenv("FM_HOME") != "" {
			cwd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("cannot determine working directory: %w", err)
			}
			configPath = filepath.Join(cwd, ConfigFileName)
		}
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getBaseDir returns FM_HOME when set, otherwise the working directory.
func getBaseDir() (string, error) {
	if path := os.Getenv("FM_HOME"); path != "" {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("cannot determine working directory: %w", err)
	}
	return cwd, nil
}

package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// GetGlobalConfigDir returns the path to the global configuration directory (~/.taskforge).
// It's a variable to allow overriding in tests.
var GetGlobalConfigDir = func() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DataDirName), nil
}

// GetDataDir returns the directory holding the task database and report files.
// Resolution order (first match wins):
// 1. Explicit config via "data.dir" (Viper/env/flag)
// 2. Local project directory: .taskforge (if exists)
// 3. XDG_DATA_HOME/taskforge (if XDG_DATA_HOME is set)
// 4. Global fallback: ~/.taskforge
func GetDataDir() string {
	if path := viper.GetString("data.dir"); path != "" {
		return path
	}

	if info, err := os.Stat(DataDirName); err == nil && info.IsDir() {
		return DataDirName
	}

	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "taskforge")
	}

	dir, err := GetGlobalConfigDir()
	if err != nil {
		return DataDirName
	}
	return dir
}

// GetPromptsDir returns the directory searched for prompt template overrides.
func GetPromptsDir() string {
	if path := viper.GetString("prompts.dir"); path != "" {
		return path
	}
	return filepath.Join(GetDataDir(), "prompts")
}

// GetReportsDir returns the directory of file-backed complexity reports.
func GetReportsDir() string {
	if path := viper.GetString("reports.dir"); path != "" {
		return path
	}
	return filepath.Join(GetDataDir(), "reports")
}

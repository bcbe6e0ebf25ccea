package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// LogDirectory returns the directory for application logs.
//
// Locations:
//   - Windows: %LOCALAPPDATA%\preservica-upload\logs
//   - Unix: ~/.config/preservica-upload/logs
func LogDirectory() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "preservica-upload-logs")
			}
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, "preservica-upload", "logs")
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "preservica-upload-logs")
		}
		return filepath.Join(homeDir, ".config", "preservica-upload", "logs")
	}
	return filepath.Join(configDir, "preservica-upload", "logs")
}

// EnsureLogDirectory creates the log directory if it doesn't exist.
// Uses 0700 permissions to restrict log access to owner only.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}

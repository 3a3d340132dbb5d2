package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.pkms-search/logs/).
// Falls back to the temp directory if home is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".pkms-search", "logs")
	}
	return filepath.Join(home, ".pkms-search", "logs")
}

// DefaultLogPath returns the default engine log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "search.log")
}

// Package paths provides cross-platform path utilities for weaktag.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultDataDir returns the platform-specific default data directory.
// Returns ~/.weaktag on Unix-like systems and %USERPROFILE%\.weaktag on
// Windows. Falls back to "./weaktag-data" if the home directory cannot
// be determined.
func DefaultDataDir() string {
	home := userHomeDir()
	if home == "" {
		return filepath.FromSlash("./weaktag-data")
	}
	return filepath.Join(home, ".weaktag")
}

// userHomeDir returns the user's home directory in a cross-platform manner.
// On Unix: $HOME
// On Windows: %USERPROFILE% (preferred) or %HOMEDRIVE%%HOMEPATH%
// Note: On Windows, we check USERPROFILE first because $HOME from Git Bash/MSYS2
// may contain Unix-style paths (e.g., /c/Users/...) that don't work with Windows APIs.
func userHomeDir() string {
	if runtime.GOOS == "windows" {
		if home := os.Getenv("USERPROFILE"); home != "" {
			return home
		}
		if drive, path := os.Getenv("HOMEDRIVE"), os.Getenv("HOMEPATH"); drive != "" && path != "" {
			return filepath.Join(drive, path)
		}
	}

	// Unix: use $HOME
	if home := os.Getenv("HOME"); home != "" {
		return home
	}

	home, _ := os.UserHomeDir()
	return home
}

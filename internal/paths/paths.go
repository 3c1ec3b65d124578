// Package paths resolves cdconv's per-user state directory and checks input paths.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// HomeEnvVar overrides the state directory.
	HomeEnvVar = "CDCONV_HOME"
	// DefaultHome is the state directory name under the user's home.
	DefaultHome = ".cdconv"
	// HistoryFile is the run ledger database name.
	HistoryFile = "history.db"
)

// GetHome returns the state directory: $CDCONV_HOME, else ~/.cdconv.
func GetHome() (string, error) {
	if env := os.Getenv(HomeEnvVar); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, DefaultHome), nil
}

// EnsureHome creates the state directory if needed and returns it.
func EnsureHome() (string, error) {
	dir, err := GetHome()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return dir, nil
}

// DefaultHistoryPath is the ledger location inside the state directory.
func DefaultHistoryPath() (string, error) {
	dir, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, HistoryFile), nil
}

// ExpandHome replaces a leading ~/ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// CheckReadableFile reports an error unless path names a regular file that can be
// opened for reading. A non-empty ext is also required as the file's suffix.
func CheckReadableFile(path, ext string) error {
	if path == "" {
		return fmt.Errorf("no file given")
	}
	if ext != "" && !strings.HasSuffix(strings.ToLower(path), ext) {
		return fmt.Errorf("%s: expected a %s file", path, ext)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: not a regular file", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

// Package paths resolves the directories the application reads from and
// writes to. Components receive a Provider instead of consulting the
// environment themselves.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user data directory.
const AppName = "cncbits"

// Provider supplies the application's working directories.
type Provider interface {
	// DataDir holds the coordinate store (database or CSV files).
	DataDir() (string, error)
	// OutputDir receives generated G-code programs.
	OutputDir() (string, error)
}

// Static is a Provider with fixed directories.
type Static struct {
	Data   string
	Output string
}

func (s Static) DataDir() (string, error) {
	if s.Data == "" {
		return "", fmt.Errorf("data directory not configured")
	}
	return s.Data, nil
}

func (s Static) OutputDir() (string, error) {
	if s.Output == "" {
		return "", fmt.Errorf("output directory not configured")
	}
	return s.Output, nil
}

// OS resolves directories from the operating system conventions, with
// optional overrides. Empty overrides fall back to the platform default.
type OS struct {
	DataOverride   string
	OutputOverride string
}

// DataDir returns the app-local data directory:
// %LOCALAPPDATA%\cncbits on Windows, ~/Library/Application Support/cncbits on
// macOS and $XDG_DATA_HOME/cncbits (default ~/.local/share/cncbits) elsewhere.
func (p OS) DataDir() (string, error) {
	if p.DataOverride != "" {
		return os.ExpandEnv(p.DataOverride), nil
	}
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, AppName), nil
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", AppName), nil
	default:
		if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
			return filepath.Join(dir, AppName), nil
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", AppName), nil
}

// OutputDir returns the user's Downloads directory unless overridden.
func (p OS) OutputDir() (string, error) {
	if p.OutputOverride != "" {
		return os.ExpandEnv(p.OutputOverride), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, "Downloads"), nil
}

// EnsureDir resolves dir through fn and creates it if missing.
func EnsureDir(fn func() (string, error)) (string, error) {
	dir, err := fn()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	return dir, nil
}

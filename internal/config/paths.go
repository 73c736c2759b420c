package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// resolvePaths anchors relative store, ledger and log paths to baseDir, the
// directory of the config file they were read from.
func (c *Config) resolvePaths(baseDir string) {
	if baseDir == "" || baseDir == "." {
		return
	}
	c.Store.Path = anchor(baseDir, c.Store.Path)
	c.Ledger.Path = anchor(baseDir, c.Ledger.Path)
	c.Logging.FilePath = anchor(baseDir, c.Logging.FilePath)
}

func anchor(baseDir, path string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// Directories returns the parent directories the configured files live in.
func (c *Config) Directories() []string {
	seen := map[string]bool{}
	var dirs []string
	add := func(path string) {
		if path == "" || path == ":memory:" {
			return
		}
		dir := filepath.Dir(path)
		if dir == "." || seen[dir] {
			return
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	add(c.Store.Path)
	if c.Ledger.Enabled {
		add(c.Ledger.Path)
	}
	if c.Logging.Output != "console" {
		add(c.Logging.FilePath)
	}
	return dirs
}

// EnsureDirectories creates all required directories if they don't exist
func (c *Config) EnsureDirectories() error {
	for _, dir := range c.Directories() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

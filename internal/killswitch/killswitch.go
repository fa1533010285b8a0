// Package killswitch stores the polling on/off flag as the presence of a file.
// A present file means polling is disabled.
package killswitch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// FileSwitch implements the killswitch on top of a sentinel file
type FileSwitch struct {
	path string
}

// New creates a killswitch backed by the file at path
func New(path string) *FileSwitch {
	return &FileSwitch{path: path}
}

// Path returns the sentinel file location
func (s *FileSwitch) Path() string {
	return s.path
}

// Disabled reports whether the sentinel file exists
func (s *FileSwitch) Disabled() (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat killswitch file: %w", err)
}

// Disable creates the sentinel file
func (s *FileSwitch) Disable() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create killswitch directory: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create killswitch file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close killswitch file: %w", err)
	}

	slog.Info("Killswitch engaged", "path", s.path)
	return nil
}

// Enable removes the sentinel file; a missing file is not an error
func (s *FileSwitch) Enable() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove killswitch file: %w", err)
	}

	slog.Info("Killswitch released", "path", s.path)
	return nil
}

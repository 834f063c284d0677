// Package statefile persists application state as JSON files with atomic replacement.
package statefile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads the JSON file at path into target. A missing file leaves target
// untouched and returns os.ErrNotExist so callers can start from an empty state.
func Load(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return err
		}
		return fmt.Errorf("statefile: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("statefile: parse %s: %w", path, err)
	}
	return nil
}

// Save atomically writes value as indented JSON: a temp file in the same
// directory is synced and then renamed over path, so readers never observe
// a partial file.
func Save(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("statefile: encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("statefile: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".jera-tmp-*")
	if err != nil {
		return fmt.Errorf("statefile: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("statefile: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("statefile: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("statefile: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("statefile: rename: %w", err)
	}
	success = true
	return nil
}

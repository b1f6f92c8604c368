// internal/util/util.go
package util

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// WriteFile writes data to a file with 0o644 permissions.
func WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

// EnsureParentDir creates the directory that will hold path.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// RemoveIfExists deletes path, treating a missing file as success.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ReplaceFile creates the parent directory, removes any previous file at path and writes data.
func ReplaceFile(path string, data []byte) error {
	if err := EnsureParentDir(path); err != nil {
		return err
	}
	if err := RemoveIfExists(path); err != nil {
		return err
	}
	return WriteFile(path, data)
}

// TruncateRunes truncates a string to a maximum number of runes,
// appending an ellipsis if truncated.
func TruncateRunes(text string, maxRunes int) string {
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes]) + "…"
}

// BoolToInt converts a boolean to an integer (1 for true, 0 for false).
func BoolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

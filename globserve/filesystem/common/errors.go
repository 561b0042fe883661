package common

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Common error types used across filesystem packages
var (
	ErrPathEmpty    = errors.New("path cannot be empty")
	ErrPathTooLong  = errors.New("path too long (max 4096 characters)")
	ErrPathInvalid  = errors.New("path contains invalid characters")
	ErrBaseNotExist = errors.New("base directory does not exist")
	ErrNotDirectory = errors.New("path is not a directory")
)

// ValidatePath rejects paths that can never name a file on disk.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrPathEmpty
	}
	return ValidateRequestPath(path)
}

// ValidateRequestPath is ValidatePath for untrusted request paths, where empty is allowed.
func ValidateRequestPath(path string) error {
	if strings.Contains(path, "\x00") {
		return ErrPathInvalid
	}
	if len(path) > 4096 {
		return ErrPathTooLong
	}
	return nil
}

// ValidateDirectoryReadable checks that path exists, is a directory and can be listed.
func ValidateDirectoryReadable(path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrBaseNotExist, path)
		}
		return fmt.Errorf("failed to access directory %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open directory %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.ReadDir(1); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read directory %s: %w", path, err)
	}
	return nil
}

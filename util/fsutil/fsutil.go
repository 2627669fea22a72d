// Package fsutil contains filesystem helpers.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates the directory at path, and any parents, if it does not
// already exist. An existing non-directory at path is an error.
func EnsureDir(path string) error {
	s, err := os.Stat(path)
	switch {
	case err == nil && !s.IsDir():
		return fmt.Errorf("%s exists and is not a directory", path)
	case err == nil:
		return nil
	case os.IsNotExist(err):
		return os.MkdirAll(path, 0755)
	default:
		return err
	}
}

// EnsurePath creates the parent directories of the file at path.
func EnsurePath(path string) error {
	return EnsureDir(filepath.Dir(path))
}

// WriteFile writes data to a temporary file next to path and renames it
// into place, so readers never see a partial file.
func WriteFile(path string, data []byte, mode os.FileMode) error {
	if err := EnsurePath(path); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

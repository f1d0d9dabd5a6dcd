// Package fileutil centralizes filesystem operations so that permissions
// and path expansion stay consistent across the indexer.
package fileutil

import (
	"os"
	"os/user"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	// DirPermissions is the mode used for every directory the indexer creates.
	DirPermissions = 0700
	// FilePermissions is the mode used for every file the indexer writes.
	FilePermissions = 0600
)

// ExpandPath replaces a leading tilde with the user's home directory,
// expands embedded environment variables and cleans the result.
func ExpandPath(p string) (string, error) {
	if strings.HasPrefix(p, "~/") || strings.HasPrefix(p, "~\\") {
		if home := HomeDir(); home != "" {
			p = home + p[1:]
		}
	}
	return filepath.Abs(path.Clean(os.ExpandEnv(p)))
}

// HomeDir returns the current user's home directory, or "" if it cannot be
// determined.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// MkdirAll expands dirPath and creates it (and any missing parents) with
// DirPermissions, refusing to silently reuse a directory that already
// exists with any permissions other than DirPermissions.
func MkdirAll(dirPath string) error {
	expanded, err := ExpandPath(dirPath)
	if err != nil {
		return errors.Wrap(err, "could not expand directory path")
	}
	exists, err := HasDir(expanded)
	if err != nil {
		return err
	}
	if exists {
		info, err := os.Stat(expanded)
		if err != nil {
			return err
		}
		if info.Mode().Perm() != DirPermissions {
			return errors.Errorf("dir %s already exists without the expected %#o permissions", expanded, DirPermissions)
		}
		return nil
	}
	return os.MkdirAll(expanded, DirPermissions)
}

// HasDir reports whether a directory exists at the given path.
func HasDir(dirPath string) (bool, error) {
	fullPath, err := ExpandPath(dirPath)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(fullPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// FileExists returns true if a regular file (not a directory) exists at
// the specified path.
func FileExists(filename string) bool {
	filePath, err := ExpandPath(filename)
	if err != nil {
		return false
	}
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	return info != nil && !info.IsDir()
}

// ClearDir recursively removes the contents of dirPath without removing
// dirPath itself. Used by the --reset startup flag (§6.4).
func ClearDir(dirPath string) error {
	expanded, err := ExpandPath(dirPath)
	if err != nil {
		return err
	}
	exists, err := HasDir(expanded)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	entries, err := os.ReadDir(expanded)
	if err != nil {
		return errors.Wrapf(err, "could not read directory %s", expanded)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(expanded, entry.Name())); err != nil {
			return errors.Wrapf(err, "could not remove %s", entry.Name())
		}
	}
	return nil
}

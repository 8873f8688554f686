package ident

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExistingDir wraps a canonicalized, absolute directory path. Construction
// creates missing path components and rejects paths that resolve to a
// non-directory.
type ExistingDir struct {
	path string
}

// NewExistingDir canonicalizes dir to an absolute path, creating missing
// components. When checkPermissions is true, it additionally rejects
// directories that are group/world-writable (mode & 0o022 != 0).
func NewExistingDir(dir string, checkPermissions bool) (*ExistingDir, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve absolute path for %q: %v", errFilesystem, dir, err)
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(abs, 0o755); mkErr != nil {
			return nil, fmt.Errorf("%w: create directory %q: %v", errFilesystem, abs, mkErr)
		}
		info, err = os.Stat(abs)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: stat %q: %v", errFilesystem, abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %q is not a directory", errFilesystem, abs)
	}
	if checkPermissions {
		if info.Mode().Perm()&0o022 != 0 {
			return nil, fmt.Errorf("%w: %q is group/world-writable (mode %o)", errFilesystem, abs, info.Mode().Perm())
		}
	}
	return &ExistingDir{path: abs}, nil
}

func (d *ExistingDir) String() string { return d.path }

// Remove deletes the directory. Not-found is treated as success (idempotent).
func (d *ExistingDir) Remove() error {
	if err := os.RemoveAll(d.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove %q: %v", errFilesystem, d.path, err)
	}
	return nil
}

// Reset removes the directory and then recreates it. Concurrent removal
// by another process between the two steps is tolerated.
func (d *ExistingDir) Reset() error {
	if err := d.Remove(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return fmt.Errorf("%w: recreate %q: %v", errFilesystem, d.path, err)
	}
	return nil
}

// FindFirst performs a recursive depth-first search under the directory and
// returns the first path for which match returns true.
func (d *ExistingDir) FindFirst(match func(path string, info os.FileInfo) bool) (string, bool, error) {
	var found string
	var ok bool
	err := filepath.Walk(d.path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ok {
			return filepath.SkipDir
		}
		if match(path, info) {
			found = path
			ok = true
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: walk %q: %v", errFilesystem, d.path, err)
	}
	return found, ok, nil
}

// ExistingFile wraps an absolute path that resolves to a regular file.
// Symlinks are permitted only when they resolve to a regular file;
// directories (symlinked or not) are rejected.
type ExistingFile struct {
	path string
}

// NewExistingFile validates that path exists, is absolute, and is (or
// resolves via symlink to) a regular file.
func NewExistingFile(path string) (*ExistingFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve absolute path for %q: %v", errFilesystem, path, err)
	}
	info, err := os.Stat(abs) // Stat follows symlinks.
	if err != nil {
		return nil, fmt.Errorf("%w: stat %q: %v", errFilesystem, abs, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %q is a directory, expected a file", errFilesystem, abs)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %q is not a regular file", errFilesystem, abs)
	}
	return &ExistingFile{path: abs}, nil
}

func (f *ExistingFile) String() string { return f.path }

// TypedFile wraps an ExistingFile whose extension (case-insensitive)
// matches one of a configured set.
type TypedFile struct {
	*ExistingFile
	ext string
}

// NewTypedFile validates path exists and that its extension matches one of
// allowedExts (each given with or without a leading dot; compared case-
// insensitively).
func NewTypedFile(path string, allowedExts []string) (*TypedFile, error) {
	f, err := NewExistingFile(path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range allowedExts {
		a := strings.ToLower(allowed)
		if !strings.HasPrefix(a, ".") {
			a = "." + a
		}
		if ext == a {
			return &TypedFile{ExistingFile: f, ext: ext}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q has extension %q, want one of %v", errFilesystem, path, ext, allowedExts)
}

// Ext returns the matched, lower-cased extension including its leading dot.
func (t *TypedFile) Ext() string { return t.ext }

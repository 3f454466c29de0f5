package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Root provides read helpers that resolve paths relative to a fixed
// directory and refuse anything that escapes it, symlinks included.
type Root struct {
	abs string // absolute root with symlinks resolved
}

// NewRoot locks all future reads to the given directory. The directory
// must exist; its path is resolved to an absolute, symlink-free form.
func NewRoot(dir string) (*Root, error) {
	if dir == "" {
		return nil, errors.New("empty root")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%q is not a directory", dir)
	}
	return &Root{abs: abs}, nil
}

// Dir returns the absolute root directory.
func (r *Root) Dir() string { return r.abs }

// ReadFile reads a file relative to the root. Traversal and symlinks that
// resolve outside the root are rejected; a missing file surfaces as
// fs.ErrNotExist via the underlying call.
func (r *Root) ReadFile(rel string) ([]byte, error) {
	p, err := r.resolve(rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%q is a directory", rel)
	}
	return os.ReadFile(p)
}

// Stat returns metadata for a path under the root.
func (r *Root) Stat(rel string) (os.FileInfo, error) {
	p, err := r.resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.Stat(p)
}

func (r *Root) resolve(rel string) (string, error) {
	if r == nil {
		return "", errors.New("root not configured")
	}
	if rel == "" {
		return "", errors.New("empty path")
	}
	clean := filepath.Clean(rel)
	if filepath.IsAbs(clean) {
		return "", errors.New("absolute paths not allowed")
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.New("path traversal not allowed")
	}
	joined := filepath.Join(r.abs, clean)
	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		// Missing files come through here as fs.ErrNotExist.
		return "", err
	}
	if !hasPathPrefix(resolved, r.abs) {
		return "", fmt.Errorf("%q resolves outside the root", rel)
	}
	return resolved, nil
}

func hasPathPrefix(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if path == root {
		return true
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(path, root)
}

// Package upload stores received audio files in a flat directory under their
// original base names.
package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidFilename is returned by [Dir.Save] when the client-supplied name
// has no usable base component.
var ErrInvalidFilename = errors.New("upload: invalid filename")

// Dir is a directory that holds uploaded audio and the charts rendered for it.
// Files with the same base name overwrite each other; the last write wins.
type Dir struct {
	root string
}

// New returns a Dir rooted at root, creating the directory if needed.
func New(root string) (*Dir, error) {
	if root == "" {
		return nil, errors.New("upload: empty directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("upload: create dir: %w", err)
	}
	return &Dir{root: root}, nil
}

// Root returns the directory path.
func (d *Dir) Root() string { return d.root }

// SanitizeName reduces a client-supplied file name to its base component.
// Directory parts from either path separator are stripped.
func SanitizeName(name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	base := filepath.Base(filepath.FromSlash(name))
	switch base {
	case "", ".", "..", string(filepath.Separator):
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return base, nil
}

// Save copies r into the directory under the base of name and returns the
// stored path. The directory is recreated if it was removed after [New]. A
// partially written file is removed on copy failure.
func (d *Dir) Save(name string, r io.Reader) (string, error) {
	base, err := SanitizeName(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return "", fmt.Errorf("upload: create dir: %w", err)
	}

	path := filepath.Join(d.root, base)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("upload: create %s: %w", base, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("upload: write %s: %w", base, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("upload: close %s: %w", base, err)
	}
	return path, nil
}

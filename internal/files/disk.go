// Package files stores uploaded image blobs as flat files under one directory.
package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	dirPermissions  = 0o755
	filePermissions = 0o644
)

var ErrInvalidName = errors.New("invalid blob name")

// DiskStore keeps blobs in Dir. Names are single path elements.
type DiskStore struct {
	dir string
}

// NewDiskStore creates dir if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

func (d *DiskStore) Dir() string {
	return d.dir
}

func (d *DiskStore) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidName
	}
	return filepath.Join(d.dir, name), nil
}

// Write stores data under name. The blob becomes visible only once fully
// written.
func (d *DiskStore) Write(name string, data []byte) error {
	target, err := d.path(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(d.dir, ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), filePermissions); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

func (d *DiskStore) Exists(name string) (bool, error) {
	target, err := d.path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(target)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Delete removes the blob. A missing blob is not an error.
func (d *DiskStore) Delete(name string) error {
	target, err := d.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

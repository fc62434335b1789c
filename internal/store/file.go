package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// File keeps each document as <dir>/<name>.json.
type File struct {
	dir string
}

// NewFile creates dir if needed and returns a File backend rooted there.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(name string) string {
	return filepath.Join(f.dir, name+".json")
}

// Get implements Backend.
func (f *File) Get(_ context.Context, name string) ([]byte, error) {
	body, err := os.ReadFile(f.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return body, err
}

// Put implements Backend. The body is written to a temp file in the same
// directory and renamed over the old document, so readers never observe a
// half-written file.
func (f *File) Put(_ context.Context, name string, body []byte) error {
	tmp, err := os.CreateTemp(f.dir, name+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path(name))
}

// Quarantine implements Quarantiner.
func (f *File) Quarantine(_ context.Context, name string) error {
	suffix := ".corrupt-" + strconv.FormatInt(time.Now().Unix(), 10)
	return os.Rename(f.path(name), f.path(name)+suffix)
}

// Close implements Backend.
func (f *File) Close() error { return nil }

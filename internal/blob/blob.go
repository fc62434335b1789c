// Package blob stores binary payloads (avatars, attachments) outside the
// chat documents and hands back a reference clients can fetch.
package blob

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotDataURI is returned by DecodeDataURI for anything that is not a
// base64 data URI.
var ErrNotDataURI = errors.New("not a base64 data uri")

// Store accepts a binary payload and returns a retrievable reference.
type Store interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
}

// Dir writes blobs as files under a directory and returns references below
// a URL prefix that serves that directory.
type Dir struct {
	root   string
	prefix string
}

// NewDir creates root if needed.
func NewDir(root, prefix string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &Dir{root: root, prefix: strings.TrimSuffix(prefix, "/")}, nil
}

// Root returns the directory blobs are written to.
func (d *Dir) Root() string { return d.root }

// Put implements Store.
func (d *Dir) Put(_ context.Context, data []byte, contentType string) (string, error) {
	name := uuid.NewString()
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		name += exts[0]
	}
	if err := os.WriteFile(filepath.Join(d.root, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return d.prefix + "/" + name, nil
}

// IsDataURI reports whether s looks like a data URI.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// DecodeDataURI splits "data:<type>;base64,<payload>" into bytes and type.
func DecodeDataURI(s string) ([]byte, string, error) {
	if !IsDataURI(s) {
		return nil, "", ErrNotDataURI
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, "", ErrNotDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data uri: %w", err)
	}
	return data, strings.TrimSuffix(meta, ";base64"), nil
}

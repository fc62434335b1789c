package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeDataURI(t *testing.T) {
	data, ct, err := DecodeDataURI("data:image/png;base64,aGVsbG8=")
	require.NoError(t, err)
	require.Equal(t, "image/png", ct)
	require.Equal(t, []byte("hello"), data)

	_, _, err = DecodeDataURI("👤")
	require.ErrorIs(t, err, ErrNotDataURI)

	_, _, err = DecodeDataURI("data:text/plain,hello")
	require.ErrorIs(t, err, ErrNotDataURI)
}

func TestDirPut(t *testing.T) {
	root := t.TempDir()
	d, err := NewDir(root, "/blobs/")
	require.NoError(t, err)

	ref, err := d.Put(context.Background(), []byte("hello"), "image/png")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(ref, "/blobs/"))
	require.True(t, strings.HasSuffix(ref, ".png"))

	body, err := os.ReadFile(filepath.Join(root, strings.TrimPrefix(ref, "/blobs/")))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), body)
}

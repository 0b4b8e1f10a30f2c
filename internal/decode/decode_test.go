// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decode

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenInput(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "rhea.tsv")
	require.NoError(t, os.WriteFile(plain, []byte("plain"), 0o644))
	compressed := filepath.Join(dir, "rhea.tsv.gz")
	writeGzip(t, compressed, []byte("compressed"))

	for path, want := range map[string]string{plain: "plain", compressed: "compressed"} {
		rc, err := openInput(path)
		require.NoError(t, err, path)
		data, err := io.ReadAll(rc)
		require.NoError(t, err, path)
		require.NoError(t, rc.Close())
		assert.Equal(t, want, string(data))
	}

	_, err := openInput(filepath.Join(dir, "missing.tsv.gz"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

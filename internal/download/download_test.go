// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/httputil"
)

func TestDownload_WritesFile(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ncsw-data-test", r.Header.Get("User-Agent"))
		w.Write([]byte("payload"))
	}))
	defer ts.Close()

	dir := filepath.Join(t.TempDir(), "raw")
	d := NewHTTP(ts.Client(), "ncsw-data-test", nil)

	require.NoError(t, d.Download(context.Background(), ts.URL+"/a.zip", "a.zip", dir))

	data, err := os.ReadFile(filepath.Join(dir, "a.zip"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDownload_NotFoundLeavesNoFile(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	dir := t.TempDir()
	d := NewHTTP(ts.Client(), "", nil)

	err := d.Download(context.Background(), ts.URL, "missing.zip", dir)
	require.Error(t, err)

	var se *httputil.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResolveURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"download_url": "https://example.org/real.zip", "size": 12}`))
	}))
	defer ts.Close()

	d := NewHTTP(ts.Client(), "", nil)

	got, err := d.ResolveURL(context.Background(), ts.URL, "download_url")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/real.zip", got)

	_, err = d.ResolveURL(context.Background(), ts.URL, "nope")
	assert.Error(t, err)

	_, err = d.ResolveURL(context.Background(), ts.URL, "size")
	assert.Error(t, err)
}

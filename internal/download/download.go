// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download fetches raw dataset artifacts into a run's scratch
// directory.
package download

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/httputil"
)

// Downloader stores the artifact at url as dir/name.
type Downloader interface {
	Download(ctx context.Context, url, name, dir string) error
}

// URLResolver turns an indirection document URL into the real artifact URL.
// Some hosts hand out a JSON document whose field holds a short-lived link.
type URLResolver interface {
	ResolveURL(ctx context.Context, url, field string) (string, error)
}

// HTTP downloads over plain HTTP(S). It implements Downloader and
// URLResolver.
type HTTP struct {
	Client    *http.Client
	UserAgent string
	Log       *zap.Logger
}

// NewHTTP returns an HTTP downloader. A nil logger is replaced by a no-op one.
func NewHTTP(client *http.Client, userAgent string, log *zap.Logger) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTP{Client: client, UserAgent: userAgent, Log: log}
}

// Download streams url to a temporary file in dir and renames it to name
// once the body has been read completely. A partial file never appears
// under the final name.
func (d *HTTP) Download(ctx context.Context, url, name, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	destPath := filepath.Join(dir, name)

	d.Log.Info("downloading", zap.String("url", url), zap.String("file", name))

	resp, err := httputil.Get(ctx, d.Client, url, d.UserAgent)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", name, err)
	}
	defer resp.Body.Close()

	tmpFile, err := os.CreateTemp(dir, ".download-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	d.Log.Debug("downloaded", zap.String("file", name), zap.Int64("bytes", n))
	return nil
}

// ResolveURL fetches the JSON document at url and returns its string field.
func (d *HTTP) ResolveURL(ctx context.Context, url, field string) (string, error) {
	body, err := httputil.ReadAll(ctx, d.Client, url, d.UserAgent)
	if err != nil {
		return "", err
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("parsing JSON from %s: %w", url, err)
	}
	v, ok := doc[field].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("field %q missing in JSON from %s", field, url)
	}
	return v, nil
}

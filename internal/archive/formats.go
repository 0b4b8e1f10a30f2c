// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"archive/tar"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

type zipWalker struct{}

func (zipWalker) walk(archivePath string, fn func(entry) error) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := fn(entry{name: f.Name, dir: f.FileInfo().IsDir(), open: f.Open}); err != nil {
			return err
		}
	}
	return nil
}

// gzipWalker treats a bare .gz file as an archive of one member named after
// the file without its extension.
type gzipWalker struct{}

func (gzipWalker) walk(archivePath string, fn func(entry) error) error {
	name := strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath))
	return fn(entry{
		name: name,
		open: func() (io.ReadCloser, error) {
			f, err := os.Open(archivePath)
			if err != nil {
				return nil, err
			}
			zr, err := gzip.NewReader(f)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("opening gzip: %w", err)
			}
			return &stackedCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil
		},
	})
}

type tarWalker struct {
	compression Format
}

func (t tarWalker) walk(archivePath string, fn func(entry) error) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	switch t.compression {
	case FormatGzip:
		zr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("opening gzip: %w", err)
		}
		defer zr.Close()
		r = zr
	case "bz2":
		r = bzip2.NewReader(f)
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}
		switch hdr.Typeflag {
		case tar.TypeReg, tar.TypeDir:
		default:
			continue
		}
		e := entry{
			name: hdr.Name,
			dir:  hdr.Typeflag == tar.TypeDir,
			open: func() (io.ReadCloser, error) { return io.NopCloser(tr), nil },
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}

type sevenZipWalker struct{}

func (sevenZipWalker) walk(archivePath string, fn func(entry) error) error {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening 7z: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := fn(entry{name: f.Name, dir: f.FileInfo().IsDir(), open: f.Open}); err != nil {
			return err
		}
	}
	return nil
}

// stackedCloser closes every closer in order.
type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

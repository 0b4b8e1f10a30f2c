// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive unpacks the container formats dataset publishers ship:
// zip, gzip, tar (plain, gzip or bzip2 compressed) and 7z.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrMemberNotFound is returned when the requested member is absent.
var ErrMemberNotFound = errors.New("archive member not found")

// ErrUnsupportedFormat is returned for paths whose extension names no known
// container format.
var ErrUnsupportedFormat = errors.New("unsupported archive format")

// Format identifies a container format.
type Format string

const (
	FormatZip      Format = "zip"
	FormatGzip     Format = "gz"
	FormatTar      Format = "tar"
	FormatTarGz    Format = "tar.gz"
	FormatTarBz2   Format = "tar.bz2"
	FormatSevenZip Format = "7z"
)

// entry is one member seen while walking an archive. open is only valid
// during the walk callback.
type entry struct {
	name string
	dir  bool
	open func() (io.ReadCloser, error)
}

type walker interface {
	walk(archivePath string, fn func(entry) error) error
}

var walkers = map[Format]walker{
	FormatZip:      zipWalker{},
	FormatGzip:     gzipWalker{},
	FormatTar:      tarWalker{},
	FormatTarGz:    tarWalker{compression: FormatGzip},
	FormatTarBz2:   tarWalker{compression: "bz2"},
	FormatSevenZip: sevenZipWalker{},
}

// errStop ends a walk early without reporting an error.
var errStop = errors.New("stop walk")

// Detect returns the format implied by the file name.
func Detect(archivePath string) (Format, error) {
	name := strings.ToLower(filepath.Base(archivePath))
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return FormatTarGz, nil
	case strings.HasSuffix(name, ".tar.bz2"), strings.HasSuffix(name, ".tbz2"):
		return FormatTarBz2, nil
	case strings.HasSuffix(name, ".tar"):
		return FormatTar, nil
	case strings.HasSuffix(name, ".zip"):
		return FormatZip, nil
	case strings.HasSuffix(name, ".7z"):
		return FormatSevenZip, nil
	case strings.HasSuffix(name, ".gz"):
		return FormatGzip, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(archivePath))
}

// ExtractMember writes the named member of archivePath to destDir, keeping
// the member's relative path, and returns the written file's path.
func ExtractMember(archivePath, member, destDir string) (string, error) {
	w, err := walkerFor(archivePath)
	if err != nil {
		return "", err
	}
	want := cleanName(member)

	var written string
	err = w.walk(archivePath, func(e entry) error {
		if e.dir || cleanName(e.name) != want {
			return nil
		}
		p, err := writeEntry(e, destDir)
		if err != nil {
			return err
		}
		written = p
		return errStop
	})
	if err != nil && !errors.Is(err, errStop) {
		return "", fmt.Errorf("extracting %s from %s: %w", member, filepath.Base(archivePath), err)
	}
	if written == "" {
		return "", fmt.Errorf("%w: %s in %s", ErrMemberNotFound, member, filepath.Base(archivePath))
	}
	return written, nil
}

// ExtractAll writes every regular member of archivePath below destDir and
// returns the written paths in archive order.
func ExtractAll(archivePath, destDir string) ([]string, error) {
	w, err := walkerFor(archivePath)
	if err != nil {
		return nil, err
	}

	var written []string
	err = w.walk(archivePath, func(e entry) error {
		if e.dir {
			return nil
		}
		p, err := writeEntry(e, destDir)
		if err != nil {
			return err
		}
		written = append(written, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", filepath.Base(archivePath), err)
	}
	return written, nil
}

// OpenMember streams the named member without writing it to disk. The
// caller must close the returned reader.
func OpenMember(archivePath, member string) (io.ReadCloser, error) {
	w, err := walkerFor(archivePath)
	if err != nil {
		return nil, err
	}
	want := cleanName(member)

	pr, pw := io.Pipe()
	found := make(chan bool, 1)
	go func() {
		matched := false
		err := w.walk(archivePath, func(e entry) error {
			if e.dir || cleanName(e.name) != want {
				return nil
			}
			matched = true
			found <- true
			rc, err := e.open()
			if err != nil {
				return err
			}
			defer rc.Close()
			if _, err := io.Copy(pw, rc); err != nil {
				return err
			}
			return errStop
		})
		if errors.Is(err, errStop) {
			err = nil
		}
		if !matched {
			if err == nil {
				err = fmt.Errorf("%w: %s in %s", ErrMemberNotFound, member, filepath.Base(archivePath))
			}
			found <- false
		}
		pw.CloseWithError(err)
	}()

	if !<-found {
		// The walk has finished; surface its error.
		_, err := pr.Read(make([]byte, 1))
		pr.Close()
		return nil, err
	}
	return pr, nil
}

func walkerFor(archivePath string) (walker, error) {
	f, err := Detect(archivePath)
	if err != nil {
		return nil, err
	}
	return walkers[f], nil
}

func cleanName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

// writeEntry copies e below destDir. Names that would escape destDir are
// rejected.
func writeEntry(e entry, destDir string) (string, error) {
	rel := cleanName(e.name)
	if rel == "" || rel == "." {
		return "", fmt.Errorf("invalid member name %q", e.name)
	}
	dest := filepath.Join(destDir, filepath.FromSlash(rel))
	if !strings.HasPrefix(dest, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("member %q escapes destination", e.name)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}

	rc, err := e.open()
	if err != nil {
		return "", fmt.Errorf("opening member %s: %w", e.name, err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", dest, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return "", fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", dest, err)
	}
	return dest, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package table normalizes decoded records into one timestamped CSV table
// with provenance columns.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/pkg/types"
)

// Provenance column names, appended after the native columns.
const (
	ColFileName   = "file_name"
	ColDataSource = "data_source"
	ColVersion    = "version"
)

// TimestampLayout formats the leading timestamp of output file names.
const TimestampLayout = "20060102150405"

// maxNameAttempts bounds how far the timestamp may advance to find a free
// file name.
const maxNameAttempts = 3600

var provenanceColumns = []string{ColFileName, ColDataSource, ColVersion}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// SchemaError reports a row whose columns differ from the first row under
// strict alignment.
type SchemaError struct {
	File string
	Row  int
	Want []string
	Got  []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("row %d from %s has columns %v, want %v", e.Row, e.File, e.Got, e.Want)
}

// Provenance identifies the run a table belongs to.
type Provenance struct {
	Source  string
	Version string
}

// Normalizer writes tables into Dir.
type Normalizer struct {
	Dir string

	// Declared lists the native columns known before extraction. Under union
	// alignment they come first, in this order.
	Declared []string

	// Mode is the alignment mode; empty means union.
	Mode types.SchemaMode

	// Now returns the current time; nil means time.Now.
	Now func() time.Time

	// Root, when set, makes file_name the slash-separated path of each
	// row's file relative to it. Rows outside Root keep their base name.
	Root string

	Log *zap.Logger
}

// Write aligns rows, adds provenance columns, and writes the table to a new
// file named <timestamp>_<source>_<version>.csv. It never overwrites an
// existing file.
func (n *Normalizer) Write(rows []types.Record, p Provenance) (string, error) {
	if p.Source == "" || p.Version == "" {
		return "", errors.New("provenance needs a source and a version")
	}
	cols, err := Columns(rows, n.Declared, n.Mode)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(n.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	f, path, err := n.create(p)
	if err != nil {
		return "", err
	}

	header := append(slices.Clone(cols), provenanceColumns...)
	if err := n.writeRows(f, header, len(cols), rows, p); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing table: %w", err)
	}

	n.logger().Info("table written",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
		zap.Int("columns", len(header)))
	return path, nil
}

func (n *Normalizer) writeRows(out io.Writer, header []string, ncols int, rows []types.Record, p Provenance) error {
	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	index := make(map[string]int, ncols)
	for i, c := range header[:ncols] {
		index[c] = i
	}
	cells := make([]string, len(header))
	for i, r := range rows {
		if r.File == "" {
			return fmt.Errorf("row %d has no source file name", i+1)
		}
		clear(cells)
		for _, fld := range r.Fields {
			j, ok := index[fld.Name]
			if !ok || fld.Null {
				continue
			}
			cells[j] = lineBreaks.Replace(fld.Value)
		}
		cells[ncols] = n.fileName(r.File)
		cells[ncols+1] = p.Source
		cells[ncols+2] = p.Version
		if err := w.Write(cells); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}
	return nil
}

func (n *Normalizer) fileName(file string) string {
	if n.Root != "" && filepath.IsAbs(file) == filepath.IsAbs(n.Root) {
		rel, err := filepath.Rel(n.Root, file)
		if err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.Base(file)
}

// create opens a fresh output file, advancing the timestamp one second at a
// time while the name is taken.
func (n *Normalizer) create(p Provenance) (*os.File, string, error) {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	ts := now()
	for range maxNameAttempts {
		name := fmt.Sprintf("%s_%s_%s.csv", ts.Format(TimestampLayout), p.Source, p.Version)
		path := filepath.Join(n.Dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("creating %s: %w", name, err)
		}
		ts = ts.Add(time.Second)
	}
	return nil, "", fmt.Errorf("no free output name for %s %s", p.Source, p.Version)
}

func (n *Normalizer) logger() *zap.Logger {
	if n.Log == nil {
		return zap.NewNop()
	}
	return n.Log
}

// Columns decides the native column set of a table. Provenance columns are
// not included; native columns that share their names are dropped.
//
// Union alignment puts declared columns first, then every other column in
// order of first appearance, visiting source files sorted by name. Strict
// alignment requires every row to carry exactly the first row's columns.
func Columns(rows []types.Record, declared []string, mode types.SchemaMode) ([]string, error) {
	switch mode {
	case types.SchemaStrict:
		return strictColumns(rows, declared)
	case "", types.SchemaUnion:
		return unionColumns(rows, declared), nil
	}
	return nil, fmt.Errorf("unknown schema mode %q", mode)
}

func unionColumns(rows []types.Record, declared []string) []string {
	seen := map[string]bool{}
	for _, c := range provenanceColumns {
		seen[c] = true
	}
	var cols []string
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	for _, c := range declared {
		add(c)
	}

	byFile := map[string][]string{}
	var files []string
	fileSeen := map[string]map[string]bool{}
	for _, r := range rows {
		fs, ok := fileSeen[r.File]
		if !ok {
			fs = map[string]bool{}
			fileSeen[r.File] = fs
			files = append(files, r.File)
		}
		for _, f := range r.Fields {
			if !fs[f.Name] {
				fs[f.Name] = true
				byFile[r.File] = append(byFile[r.File], f.Name)
			}
		}
	}
	slices.Sort(files)
	for _, file := range files {
		for _, c := range byFile[file] {
			add(c)
		}
	}
	return cols
}

func strictColumns(rows []types.Record, declared []string) ([]string, error) {
	if len(rows) == 0 {
		return withoutProvenance(declared), nil
	}
	want := rows[0].Columns()
	for i, r := range rows[1:] {
		if got := r.Columns(); !slices.Equal(got, want) {
			return nil, &SchemaError{File: r.File, Row: i + 2, Want: want, Got: got}
		}
	}
	return withoutProvenance(want), nil
}

func withoutProvenance(cols []string) []string {
	return slices.DeleteFunc(slices.Clone(cols), func(c string) bool {
		return slices.Contains(provenanceColumns, c)
	})
}

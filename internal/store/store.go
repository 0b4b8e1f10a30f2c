// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store loads formatted tables into a SQLite archive database.
// Each imported row keeps the source, version and raw file it came from.
package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/table"
)

// DefaultChunkSize is the number of rows committed per transaction.
const DefaultChunkSize = 10000

// valueColumns are tried in order when no value column is named.
var valueColumns = []string{"reaction_smiles", "smiles", "reaction_smarts", "smarts", "compound_pattern_smarts"}

// Store manages the archive database.
type Store struct {
	db *sql.DB

	// ChunkSize bounds the rows written per transaction.
	ChunkSize int

	// Now returns the import time; nil means time.Now.
	Now func() time.Time
}

// Open opens or creates the archive database at path and creates the
// schema if it does not exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, ChunkSize: DefaultChunkSize}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS archive_imports (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			path TEXT NOT NULL,
			value_column TEXT NOT NULL,
			rows_read INTEGER NOT NULL,
			rows_inserted INTEGER NOT NULL,
			imported_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS archive_records (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			import_id TEXT NOT NULL REFERENCES archive_imports(id),
			category TEXT NOT NULL,
			source TEXT NOT NULL,
			version TEXT NOT NULL,
			file_name TEXT NOT NULL,
			value TEXT NOT NULL,
			UNIQUE (category, source, version, file_name, value)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_archive_records_source ON archive_records(source, version)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Import describes one loaded table.
type Import struct {
	ID       string
	Category string
	Path     string
	Column   string
	Read     int
	Inserted int
}

// Skipped returns the rows that were empty or already archived.
func (i Import) Skipped() int {
	return i.Read - i.Inserted
}

// Import loads the table at path under category. The value column is
// column, or the first of valueColumns present in the header. Rows with
// an empty value are skipped and a value already archived for the same
// source file is not stored twice.
func (s *Store) Import(ctx context.Context, path, category, column string) (Import, error) {
	if category == "" {
		return Import{}, errors.New("import needs a category")
	}
	f, err := os.Open(path)
	if err != nil {
		return Import{}, fmt.Errorf("opening table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true
	header, err := r.Read()
	if err != nil {
		return Import{}, fmt.Errorf("reading header of %s: %w", filepath.Base(path), err)
	}
	header = slices.Clone(header)

	idx, err := columnIndex(header, column, table.ColFileName, table.ColDataSource, table.ColVersion)
	if err != nil {
		return Import{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	imp := Import{ID: uuid.NewString(), Category: category, Path: path, Column: header[idx.value]}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO archive_imports (id, category, path, value_column, rows_read, rows_inserted, imported_at)
		 VALUES (?, ?, ?, ?, 0, 0, ?)`,
		imp.ID, category, path, imp.Column, s.now().UTC().Format(time.RFC3339),
	); err != nil {
		return Import{}, fmt.Errorf("recording import: %w", err)
	}

	chunk := s.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	var (
		tx   *sql.Tx
		stmt *sql.Stmt
		n    int
	)
	rollback := func() {
		if tx != nil {
			tx.Rollback()
		}
	}
	commit := func() error {
		if tx == nil {
			return nil
		}
		stmt.Close()
		err := tx.Commit()
		tx, stmt, n = nil, nil, 0
		return err
	}

	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			rollback()
			return imp, fmt.Errorf("reading %s line %d: %w", filepath.Base(path), line, err)
		}
		imp.Read++
		value := field(row, idx.value)
		if value == "" {
			continue
		}

		if tx == nil {
			if err := ctx.Err(); err != nil {
				return imp, err
			}
			if tx, err = s.db.BeginTx(ctx, nil); err != nil {
				return imp, fmt.Errorf("beginning transaction: %w", err)
			}
			if stmt, err = tx.PrepareContext(ctx,
				`INSERT OR IGNORE INTO archive_records (import_id, category, source, version, file_name, value)
				 VALUES (?, ?, ?, ?, ?, ?)`,
			); err != nil {
				rollback()
				return imp, fmt.Errorf("preparing insert: %w", err)
			}
		}
		res, err := stmt.ExecContext(ctx, imp.ID, category, field(row, idx.source), field(row, idx.version), field(row, idx.file), value)
		if err != nil {
			rollback()
			return imp, fmt.Errorf("inserting line %d: %w", line, err)
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			imp.Inserted++
		}
		if n++; n >= chunk {
			if err := commit(); err != nil {
				return imp, fmt.Errorf("committing rows: %w", err)
			}
		}
	}
	if err := commit(); err != nil {
		return imp, fmt.Errorf("committing rows: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE archive_imports SET rows_read = ?, rows_inserted = ? WHERE id = ?`,
		imp.Read, imp.Inserted, imp.ID,
	); err != nil {
		return imp, fmt.Errorf("updating import: %w", err)
	}
	return imp, nil
}

type indexes struct {
	value, file, source, version int
}

func columnIndex(header []string, column, file, source, version string) (indexes, error) {
	find := func(name string) (int, error) {
		if i := slices.Index(header, name); i >= 0 {
			return i, nil
		}
		return -1, fmt.Errorf("table has no %s column", name)
	}
	var idx indexes
	var err error
	if idx.file, err = find(file); err != nil {
		return idx, err
	}
	if idx.source, err = find(source); err != nil {
		return idx, err
	}
	if idx.version, err = find(version); err != nil {
		return idx, err
	}
	if column != "" {
		idx.value, err = find(column)
		return idx, err
	}
	for _, c := range valueColumns {
		if i := slices.Index(header, c); i >= 0 {
			idx.value = i
			return idx, nil
		}
	}
	return idx, fmt.Errorf("table has none of the value columns %v", valueColumns)
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SourceCount is the number of archived values of one source version.
type SourceCount struct {
	Category string `yaml:"category" json:"category"`
	Source   string `yaml:"source" json:"source"`
	Version  string `yaml:"version" json:"version"`
	Files    int    `yaml:"files" json:"files"`
	Values   int    `yaml:"values" json:"values"`
}

// Summary counts archived values per category, source and version.
func (s *Store) Summary(ctx context.Context) ([]SourceCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, source, version, COUNT(DISTINCT file_name), COUNT(*)
		 FROM archive_records
		 GROUP BY category, source, version
		 ORDER BY category, source, version`)
	if err != nil {
		return nil, fmt.Errorf("querying summary: %w", err)
	}
	defer rows.Close()

	var counts []SourceCount
	for rows.Next() {
		var c SourceCount
		if err := rows.Scan(&c.Category, &c.Source, &c.Version, &c.Files, &c.Values); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// ExportYAML writes the archive summary to path.
func (s *Store) ExportYAML(ctx context.Context, path string) error {
	counts, err := s.Summary(ctx)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(struct {
		Sources []SourceCount `yaml:"sources"`
	}{counts})
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Family names the raw format of a dataset version and so the decoder that
// reads it.
type Family string

const (
	FamilySchemaMessage Family = "schema_message"
	FamilyMarkupTree    Family = "markup_tree"
	FamilyBlockText     Family = "block_text"
	FamilyDelimitedText Family = "delimited_text"
	FamilyPatternList   Family = "pattern_list"
)

// Valid reports whether f is one of the known families.
func (f Family) Valid() bool {
	switch f {
	case FamilySchemaMessage, FamilyMarkupTree, FamilyBlockText, FamilyDelimitedText, FamilyPatternList:
		return true
	default:
		return false
	}
}

// DatasetVersion is one named, independently retrievable snapshot of a data
// source. Catalogs build these at query time; they are never persisted.
type DatasetVersion struct {
	// ID is the version identifier (e.g. "v_release_131").
	ID string `json:"id" yaml:"id"`

	// Provenance is the citation or DOI URL of the version.
	Provenance string `json:"provenance" yaml:"provenance"`

	// Family is the raw format family bound to this version. Empty until the
	// registry variant for the version is known.
	Family Family `json:"family,omitempty" yaml:"family,omitempty"`
}

// FileRole tells whether a scratch file was downloaded or unpacked.
type FileRole string

const (
	RoleRaw       FileRole = "raw"
	RoleExtracted FileRole = "extracted"
)

// SourceFile is a local artifact owned by one pipeline run.
type SourceFile struct {
	Path string   `json:"path" yaml:"path"`
	Role FileRole `json:"role" yaml:"role"`
}

// Field is one named cell of a record. Null marks an absent value, which is
// written as an empty cell.
type Field struct {
	Name  string
	Value string
	Null  bool
}

// Record is one decoded unit before normalization. Fields keep the order the
// decoder produced them in; File names the input the record came from.
type Record struct {
	File   string
	Fields []Field
}

// Columns returns the field names of r in order.
func (r Record) Columns() []string {
	cols := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		cols[i] = f.Name
	}
	return cols
}

// Get returns the value of the named field. The boolean is false when the
// field is missing or null.
func (r Record) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			if f.Null {
				return "", false
			}
			return f.Value, true
		}
	}
	return "", false
}

// Str builds a non-null field.
func Str(name, value string) Field {
	return Field{Name: name, Value: value}
}

// Null builds a null field.
func Null(name string) Field {
	return Field{Name: name, Null: true}
}

// Opt builds a field that is null when value is empty.
func Opt(name, value string) Field {
	if value == "" {
		return Null(name)
	}
	return Str(name, value)
}

// ExtractionReport summarizes one extraction run.
type ExtractionReport struct {
	// FilesAttempted is the number of input files handed to the decoder.
	FilesAttempted int `json:"files_attempted" yaml:"files_attempted"`

	// FilesEmpty counts files that yielded no records.
	FilesEmpty int `json:"files_empty" yaml:"files_empty"`

	// Records is the total number of records produced.
	Records int `json:"records" yaml:"records"`
}

// HasEmptyFiles reports whether any input produced no records.
func (r ExtractionReport) HasEmptyFiles() bool {
	return r.FilesEmpty > 0
}

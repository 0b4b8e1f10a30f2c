// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry loads the table of data sources: for every source its
// version catalog and, per group of versions, the downloads, archive steps
// and decoder settings that turn a version into records.
//
// The default table is embedded in the binary. A file with the same layout
// can replace it, so adding a source is an edit to YAML, not to code.
package registry

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"slices"
	"strings"
	"text/template"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/catalog"
	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/decode"
	"github.com/neo-chem-synth-wave/ncsw-data-sub001/pkg/types"
)

//go:embed registry.yaml
var embedded []byte

var (
	// ErrUnknownSource reports a category or source missing from the registry.
	ErrUnknownSource = errors.New("unknown data source")

	// ErrAmbiguousSource reports a source name shared by several categories
	// when no category was given.
	ErrAmbiguousSource = errors.New("data source name is in several categories")
)

// Catalog kinds.
const (
	KindStatic       = "static"
	KindReleaseRange = "release_range"
	KindListing      = "listing"
)

// DefaultExtractDest is where archive steps unpack when no dest is given.
const DefaultExtractDest = "extracted"

// Registry maps category to source name to source.
type Registry struct {
	Categories map[string]map[string]*Source `yaml:"categories"`
}

// Source describes one data source.
type Source struct {
	Name     string `yaml:"-"`
	Category string `yaml:"-"`

	Description string           `yaml:"description"`
	Schema      types.SchemaMode `yaml:"schema"`
	Catalog     CatalogSpec      `yaml:"catalog"`
	Variants    []Variant        `yaml:"variants"`

	pattern    *regexp.Regexp
	provenance *template.Template
}

// CatalogSpec selects and parameterizes a version catalog.
type CatalogSpec struct {
	Kind string `yaml:"kind"`

	// Versions maps version to provenance URL for static catalogs.
	Versions map[string]string `yaml:"versions"`

	// IndexURL, Pattern and Provenance drive dynamic catalogs. Pattern has
	// exactly one capture group. Provenance is a template over .Release.
	IndexURL   string `yaml:"index_url"`
	Pattern    string `yaml:"pattern"`
	Provenance string `yaml:"provenance"`

	// Floor is the first release of a release_range catalog.
	Floor int `yaml:"floor"`

	// Prefix is prepended to every capture of a listing catalog.
	Prefix string `yaml:"prefix"`
}

// Variant describes how a group of versions is processed.
type Variant struct {
	// Versions lists the versions the variant serves. Prefix matches every
	// version that starts with it. With neither, the variant matches all.
	Versions []string `yaml:"versions"`
	Prefix   string   `yaml:"prefix"`

	Downloads []DownloadSpec `yaml:"downloads"`
	Extract   []ExtractStep  `yaml:"extract"`
	Format    FormatSpec     `yaml:"format"`
}

// DownloadSpec is one artifact to fetch into raw/.
type DownloadSpec struct {
	URL  string `yaml:"url"`
	File string `yaml:"file"`

	// ResolveJSON names a string field of the JSON document at URL that
	// holds the real download link.
	ResolveJSON string `yaml:"resolve_json"`
}

// ExtractStep unpacks an archive. Member selects a single file; without it
// the whole archive is unpacked. Paths are relative to the scratch directory.
type ExtractStep struct {
	Archive string `yaml:"archive"`
	Member  string `yaml:"member"`
	Dest    string `yaml:"dest"`
}

// FormatSpec selects the decoder and its settings.
type FormatSpec struct {
	Decoder     types.Family `yaml:"decoder"`
	Inputs      []string     `yaml:"inputs"`
	Delimiter   string       `yaml:"delimiter"`
	Header      bool         `yaml:"header"`
	SkipRows    int          `yaml:"skip_rows"`
	Columns     []string     `yaml:"columns"`
	IndexColumn bool         `yaml:"index_column"`
	DropEmpty   bool         `yaml:"drop_empty_rows"`
}

// Params are the values available to path and URL templates.
type Params struct {
	Version string
	Release string
}

// Default returns the embedded registry.
func Default() (*Registry, error) {
	return Parse(embedded)
}

// Load reads a registry file. An empty path yields the embedded registry.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("registry %s: %w", path, err)
	}
	return reg, nil
}

// Parse decodes and validates a registry document.
func Parse(data []byte) (*Registry, error) {
	var reg Registry
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&reg); err != nil {
		return nil, fmt.Errorf("parsing registry: %w", err)
	}
	if len(reg.Categories) == 0 {
		return nil, fmt.Errorf("registry has no categories")
	}

	for category, sources := range reg.Categories {
		for name, src := range sources {
			if src == nil {
				return nil, fmt.Errorf("source %s/%s is empty", category, name)
			}
			src.Name = name
			src.Category = category
			if err := src.validate(); err != nil {
				return nil, fmt.Errorf("source %s/%s: %w", category, name, err)
			}
		}
	}
	return &reg, nil
}

// CategoryNames returns the sorted category names.
func (r *Registry) CategoryNames() []string {
	return sortedKeys(r.Categories)
}

// Names returns the sorted source names of category. An empty category
// lists every distinct name.
func (r *Registry) Names(category string) ([]string, error) {
	if category == "" {
		var names []string
		for _, sources := range r.Categories {
			names = append(names, sortedKeys(sources)...)
		}
		slices.Sort(names)
		return slices.Compact(names), nil
	}
	sources, ok := r.Categories[category]
	if !ok {
		return nil, fmt.Errorf("unknown category %q", category)
	}
	return sortedKeys(sources), nil
}

// Find returns the named source. A non-empty category restricts the search;
// without one the name must belong to a single category.
func (r *Registry) Find(category, name string) (*Source, error) {
	if category != "" {
		sources, ok := r.Categories[category]
		if !ok {
			return nil, fmt.Errorf("%w: category %q", ErrUnknownSource, category)
		}
		src, ok := sources[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s/%s", ErrUnknownSource, category, name)
		}
		return src, nil
	}

	var found []*Source
	for _, c := range r.CategoryNames() {
		if src, ok := r.Categories[c][name]; ok {
			found = append(found, src)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	case 1:
		return found[0], nil
	}
	categories := make([]string, len(found))
	for i, src := range found {
		categories[i] = src.Category
	}
	return nil, fmt.Errorf("%w: %s is in %s", ErrAmbiguousSource, name, strings.Join(categories, ", "))
}

// Lookup is Find reporting only whether a single source matched.
func (r *Registry) Lookup(category, name string) (*Source, bool) {
	src, err := r.Find(category, name)
	return src, err == nil
}

func (s *Source) validate() error {
	switch s.Schema {
	case "":
		s.Schema = types.SchemaUnion
	case types.SchemaUnion, types.SchemaStrict:
	default:
		return fmt.Errorf("unknown schema mode %q", s.Schema)
	}

	c := s.Catalog
	switch c.Kind {
	case KindStatic:
		if len(c.Versions) == 0 {
			return fmt.Errorf("static catalog has no versions")
		}
	case KindReleaseRange, KindListing:
		if c.IndexURL == "" {
			return fmt.Errorf("%s catalog needs index_url", c.Kind)
		}
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return fmt.Errorf("catalog pattern: %w", err)
		}
		if re.NumSubexp() != 1 {
			return fmt.Errorf("catalog pattern %q must have one capture group", c.Pattern)
		}
		s.pattern = re
		if c.Kind == KindListing && c.Prefix == "" {
			return fmt.Errorf("listing catalog needs prefix")
		}
		if c.Kind == KindReleaseRange && c.Floor < 0 {
			return fmt.Errorf("release floor %d is negative", c.Floor)
		}
		tmpl, err := parseTemplate("provenance", c.Provenance)
		if err != nil {
			return err
		}
		s.provenance = tmpl
	default:
		return fmt.Errorf("unknown catalog kind %q", c.Kind)
	}

	if len(s.Variants) == 0 {
		return fmt.Errorf("no variants")
	}
	for i, v := range s.Variants {
		if err := v.validate(); err != nil {
			return fmt.Errorf("variant %d: %w", i, err)
		}
	}
	for version := range c.Versions {
		if _, ok := s.Variant(version); !ok {
			return fmt.Errorf("version %s has no variant", version)
		}
	}
	return nil
}

func (v Variant) validate() error {
	if !v.Format.Decoder.Valid() {
		return fmt.Errorf("unknown decoder %q", v.Format.Decoder)
	}
	if len(v.Format.Inputs) == 0 {
		return fmt.Errorf("format has no inputs")
	}
	if len(v.Downloads) == 0 {
		return fmt.Errorf("no downloads")
	}
	var texts []string
	for _, d := range v.Downloads {
		if d.URL == "" || d.File == "" {
			return fmt.Errorf("download needs url and file")
		}
		texts = append(texts, d.URL, d.File)
	}
	for _, e := range v.Extract {
		if e.Archive == "" {
			return fmt.Errorf("extract step needs archive")
		}
		texts = append(texts, e.Archive, e.Member, e.Dest)
	}
	texts = append(texts, v.Format.Inputs...)
	for _, text := range texts {
		if _, err := parseTemplate("path", text); err != nil {
			return err
		}
	}
	if _, err := v.Format.NewDecoder(nil); err != nil {
		return err
	}
	return nil
}

// Variant returns the first variant that serves version.
func (s *Source) Variant(version string) (*Variant, bool) {
	for i := range s.Variants {
		if s.Variants[i].matches(version) {
			return &s.Variants[i], true
		}
	}
	return nil, false
}

func (v *Variant) matches(version string) bool {
	if len(v.Versions) == 0 && v.Prefix == "" {
		return true
	}
	if slices.Contains(v.Versions, version) {
		return true
	}
	return v.Prefix != "" && strings.HasPrefix(version, v.Prefix)
}

// Release strips the catalog prefix from version.
func (s *Source) Release(version string) string {
	switch s.Catalog.Kind {
	case KindReleaseRange:
		return strings.TrimPrefix(version, catalog.ReleasePrefix)
	case KindListing:
		return strings.TrimPrefix(version, s.Catalog.Prefix)
	}
	return version
}

// Params returns the template values of version.
func (s *Source) Params(version string) Params {
	return Params{Version: version, Release: s.Release(version)}
}

// NewCatalog builds the version catalog of the source. Dynamic catalogs
// query IndexURL with client on every Resolve.
func (s *Source) NewCatalog(client *http.Client, userAgent string) catalog.Catalog {
	switch s.Catalog.Kind {
	case KindReleaseRange:
		return catalog.ReleaseRange{
			Source:     s.Name,
			IndexURL:   s.Catalog.IndexURL,
			Pattern:    s.pattern,
			Floor:      s.Catalog.Floor,
			Provenance: s.provenanceFunc(catalog.ReleasePrefix),
			Family:     s.family(catalog.ReleasePrefix),
			Client:     client,
			UserAgent:  userAgent,
		}
	case KindListing:
		return catalog.Listing{
			Source:     s.Name,
			IndexURL:   s.Catalog.IndexURL,
			Pattern:    s.pattern,
			Prefix:     s.Catalog.Prefix,
			Provenance: s.provenanceFunc(s.Catalog.Prefix),
			Family:     s.family(s.Catalog.Prefix),
			Client:     client,
			UserAgent:  userAgent,
		}
	}
	versions := make(map[string]types.DatasetVersion, len(s.Catalog.Versions))
	for id, prov := range s.Catalog.Versions {
		versions[id] = types.DatasetVersion{ID: id, Provenance: prov, Family: s.family(id)}
	}
	return catalog.Static{Versions: versions}
}

func (s *Source) family(version string) types.Family {
	if v, ok := s.Variant(version); ok {
		return v.Format.Decoder
	}
	return ""
}

func (s *Source) provenanceFunc(prefix string) catalog.ProvenanceFunc {
	tmpl := s.provenance
	return func(release string) string {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, Params{Version: prefix + release, Release: release}); err != nil {
			return ""
		}
		return buf.String()
	}
}

// Render expands a path or URL template.
func Render(text string, p Params) (string, error) {
	tmpl, err := parseTemplate("path", text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("rendering %q: %w", text, err)
	}
	return buf.String(), nil
}

func parseTemplate(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", text, err)
	}
	return tmpl, nil
}

// NewDecoder builds the record decoder of the format.
func (f FormatSpec) NewDecoder(log *zap.Logger) (decode.Decoder, error) {
	switch f.Decoder {
	case types.FamilySchemaMessage:
		return decode.ORDMessage{Log: log}, nil
	case types.FamilyMarkupTree:
		return decode.CML{Log: log}, nil
	case types.FamilyBlockText:
		return decode.RXNBlock{Log: log}, nil
	case types.FamilyDelimitedText:
		switch f.Delimiter {
		case "", ",", "\t", "|", decode.DelimiterWhitespace:
		default:
			return nil, fmt.Errorf("unsupported delimiter %q", f.Delimiter)
		}
		if f.SkipRows < 0 {
			return nil, fmt.Errorf("skip_rows %d is negative", f.SkipRows)
		}
		return decode.Delimited{
			Delimiter:     f.Delimiter,
			Header:        f.Header,
			SkipRows:      f.SkipRows,
			Columns:       f.Columns,
			IndexColumn:   f.IndexColumn,
			DropEmptyRows: f.DropEmpty,
		}, nil
	case types.FamilyPatternList:
		return decode.PatternList{Log: log}, nil
	}
	return nil, fmt.Errorf("unknown decoder %q", f.Decoder)
}

// Declared returns the columns known before any file is read.
func (f FormatSpec) Declared() []string {
	switch f.Decoder {
	case types.FamilySchemaMessage:
		return []string{decode.ColDatasetID, decode.ColReactionID, decode.ColReactionSMILES}
	case types.FamilyMarkupTree:
		return []string{decode.ColYear, decode.ColDocumentID, decode.ColParagraphID, decode.ColParagraphText, decode.ColReactionSMILES}
	case types.FamilyBlockText:
		return []string{decode.ColReactionSMILES}
	case types.FamilyPatternList:
		return []string{decode.ColPatternName, decode.ColPatternSMARTS}
	}
	return slices.Clone(f.Columns)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives one data source version from its catalog entry to
// a formatted table: resolve, download, extract, format. Each stage runs
// once and only after the previous one succeeded.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/archive"
	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/catalog"
	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/download"
	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/extract"
	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/registry"
	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/table"
	"github.com/neo-chem-synth-wave/ncsw-data-sub001/pkg/types"
)

const (
	rawDir       = "raw"
	extractedDir = "extracted"
)

var (
	// ErrUnsupportedSource reports a source name missing from the registry.
	ErrUnsupportedSource = errors.New("unsupported data source")

	// ErrUnsupportedVersion reports a version the source's catalog does not
	// list or no registry variant serves.
	ErrUnsupportedVersion = errors.New("unsupported data source version")

	// ErrStageOrder reports a stage called before its predecessor succeeded
	// or called twice.
	ErrStageOrder = errors.New("pipeline stage called out of order")
)

// Stage names a pipeline step.
type Stage string

const (
	StageResolve  Stage = "resolve"
	StageDownload Stage = "download"
	StageExtract  Stage = "extract"
	StageFormat   Stage = "format"
)

// StageError wraps the failure of a collaborator during a stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// State is the last stage a pipeline completed.
type State int

const (
	StateNew State = iota
	StateResolved
	StateDownloaded
	StateExtracted
	StateFormatted
)

var stateNames = [...]string{"new", "resolved", "downloaded", "extracted", "formatted"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Result summarizes a finished run.
type Result struct {
	RunID   string
	Source  string
	Version types.DatasetVersion
	Output  string
	Scratch string
	Report  types.ExtractionReport
}

// SourcePipeline processes one version of one source. A value is single
// use: create a new one for every run.
type SourcePipeline struct {
	Registry *registry.Registry

	// Category restricts source lookup; empty searches every category.
	Category string

	Config types.PipelineConfig

	// Client is used for catalog queries. Nil means http.DefaultClient.
	Client *http.Client

	// Downloader fetches artifacts. Resolver follows resolve_json
	// indirections; when nil, a Downloader that also implements
	// URLResolver is used.
	Downloader download.Downloader
	Resolver   download.URLResolver

	// Now returns the current time; nil means time.Now.
	Now func() time.Time

	// Out receives one status line per step. Nil discards them.
	Out io.Writer

	Log *zap.Logger

	state   State
	src     *registry.Source
	variant *registry.Variant
	version types.DatasetVersion
	params  registry.Params
	runID   string
	scratch string
	inputs  []string
	files   []types.SourceFile
	result  Result
}

// New returns a pipeline over reg that downloads over HTTP.
func New(reg *registry.Registry, cfg types.PipelineConfig, log *zap.Logger) *SourcePipeline {
	if log == nil {
		log = zap.NewNop()
	}
	client := &http.Client{Timeout: cfg.Timeout}
	return &SourcePipeline{
		Registry:   reg,
		Config:     cfg,
		Client:     client,
		Downloader: download.NewHTTP(client, cfg.UserAgent, log),
		Log:        log,
	}
}

// State returns the last completed stage.
func (p *SourcePipeline) State() State { return p.state }

// ScratchDir returns the run's scratch directory, set once resolved.
func (p *SourcePipeline) ScratchDir() string { return p.scratch }

// Inputs returns the files selected for decoding, set once extracted.
func (p *SourcePipeline) Inputs() []string { return slices.Clone(p.inputs) }

// Files returns the downloaded and unpacked files of the run so far.
func (p *SourcePipeline) Files() []types.SourceFile { return slices.Clone(p.files) }

// Resolve looks the source and version up. Unknown names are rejected
// before any I/O; dynamic catalogs are then queried once. Nothing is
// written to disk.
func (p *SourcePipeline) Resolve(ctx context.Context, name, version string) error {
	if p.state != StateNew {
		return fmt.Errorf("%w: resolve after %s", ErrStageOrder, p.state)
	}
	src, err := p.Registry.Find(p.Category, name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedSource, err)
	}
	if !versionShapeOK(src, version) {
		return fmt.Errorf("%w: %s has no version %q", ErrUnsupportedVersion, name, version)
	}
	variant, ok := src.Variant(version)
	if !ok {
		return fmt.Errorf("%w: %s has no variant for %q", ErrUnsupportedVersion, name, version)
	}

	p.logger().Info("resolving versions", zap.String("source", name), zap.String("catalog", src.Catalog.Kind))
	versions, err := src.NewCatalog(p.Client, p.Config.UserAgent).Resolve(ctx)
	if err != nil {
		return &StageError{Stage: StageResolve, Err: err}
	}
	dv, ok := versions[version]
	if !ok {
		return fmt.Errorf("%w: %s has no version %q", ErrUnsupportedVersion, name, version)
	}

	p.src = src
	p.variant = variant
	p.version = dv
	p.params = src.Params(version)
	p.runID = uuid.NewString()
	p.scratch = filepath.Join(p.scratchRoot(), fmt.Sprintf("%s_%s_scratch", p.now().Format(table.TimestampLayout), p.runID))
	p.result = Result{RunID: p.runID, Source: name, Version: dv, Scratch: p.scratch}
	p.state = StateResolved
	return nil
}

// versionShapeOK rejects versions a dynamic catalog can never list.
func versionShapeOK(src *registry.Source, version string) bool {
	switch src.Catalog.Kind {
	case registry.KindStatic:
		_, ok := src.Catalog.Versions[version]
		return ok
	case registry.KindReleaseRange:
		rel, ok := strings.CutPrefix(version, catalog.ReleasePrefix)
		return ok && rel != "" && strings.Trim(rel, "0123456789") == ""
	case registry.KindListing:
		rel, ok := strings.CutPrefix(version, src.Catalog.Prefix)
		return ok && rel != ""
	}
	return false
}

// Download fetches every artifact of the version into raw/.
func (p *SourcePipeline) Download(ctx context.Context) error {
	if p.state != StateResolved {
		return fmt.Errorf("%w: download after %s", ErrStageOrder, p.state)
	}
	raw := filepath.Join(p.scratch, rawDir)
	for _, dir := range []string{raw, filepath.Join(p.scratch, extractedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &StageError{Stage: StageDownload, Err: fmt.Errorf("creating directory %s: %w", dir, err)}
		}
	}

	for _, d := range p.variant.Downloads {
		url, err := registry.Render(d.URL, p.params)
		if err != nil {
			return &StageError{Stage: StageDownload, Err: err}
		}
		name, err := registry.Render(d.File, p.params)
		if err != nil {
			return &StageError{Stage: StageDownload, Err: err}
		}
		if d.ResolveJSON != "" {
			url, err = p.resolveURL(ctx, url, d.ResolveJSON)
			if err != nil {
				return &StageError{Stage: StageDownload, Err: err}
			}
		}
		p.printf("downloading: %s\n", name)
		if err := p.Downloader.Download(ctx, url, name, raw); err != nil {
			return &StageError{Stage: StageDownload, Err: fmt.Errorf("downloading %s: %w", name, err)}
		}
		p.files = append(p.files, types.SourceFile{Path: filepath.Join(raw, name), Role: types.RoleRaw})
	}
	p.state = StateDownloaded
	return nil
}

func (p *SourcePipeline) resolveURL(ctx context.Context, url, field string) (string, error) {
	r := p.Resolver
	if r == nil {
		var ok bool
		if r, ok = p.Downloader.(download.URLResolver); !ok {
			return "", fmt.Errorf("no resolver for %s", url)
		}
	}
	return r.ResolveURL(ctx, url, field)
}

// Extract runs the archive steps and selects the decoder inputs. A version
// whose inputs match no file fails here.
func (p *SourcePipeline) Extract() error {
	if p.state != StateDownloaded {
		return fmt.Errorf("%w: extract after %s", ErrStageOrder, p.state)
	}
	for _, step := range p.variant.Extract {
		if err := p.extractStep(step); err != nil {
			return &StageError{Stage: StageExtract, Err: err}
		}
	}

	inputs, err := p.matchInputs()
	if err != nil {
		return &StageError{Stage: StageExtract, Err: err}
	}
	p.inputs = inputs
	p.state = StateExtracted
	return nil
}

func (p *SourcePipeline) extractStep(step registry.ExtractStep) error {
	archivePath, err := p.scratchPath(step.Archive)
	if err != nil {
		return err
	}
	dest := step.Dest
	if dest == "" {
		dest = registry.DefaultExtractDest
	}
	destDir, err := p.scratchPath(dest)
	if err != nil {
		return err
	}

	if step.Member == "" {
		p.printf("extracting: %s\n", filepath.Base(archivePath))
		files, err := archive.ExtractAll(archivePath, destDir)
		if err != nil {
			return err
		}
		for _, f := range files {
			p.files = append(p.files, types.SourceFile{Path: f, Role: types.RoleExtracted})
		}
		p.logger().Info("archive extracted", zap.String("archive", filepath.Base(archivePath)), zap.Int("files", len(files)))
		return nil
	}

	member, err := registry.Render(step.Member, p.params)
	if err != nil {
		return err
	}
	p.printf("extracting: %s from %s\n", member, filepath.Base(archivePath))
	path, err := archive.ExtractMember(archivePath, member, destDir)
	if err != nil {
		return err
	}
	p.files = append(p.files, types.SourceFile{Path: path, Role: types.RoleExtracted})
	return nil
}

// matchInputs expands the input globs inside the scratch directory. The
// result is sorted and free of duplicates.
func (p *SourcePipeline) matchInputs() ([]string, error) {
	fsys := os.DirFS(p.scratch)
	var inputs []string
	for _, pattern := range p.variant.Format.Inputs {
		rendered, err := registry.Render(pattern, p.params)
		if err != nil {
			return nil, err
		}
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(rendered), doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("matching %q: %w", rendered, err)
		}
		for _, m := range matches {
			inputs = append(inputs, filepath.Join(p.scratch, filepath.FromSlash(m)))
		}
	}
	slices.Sort(inputs)
	inputs = slices.Compact(inputs)
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no input files match %v", p.variant.Format.Inputs)
	}
	return inputs, nil
}

// scratchPath renders a scratch-relative template and keeps the result
// inside the scratch directory.
func (p *SourcePipeline) scratchPath(tmpl string) (string, error) {
	rel, err := registry.Render(tmpl, p.params)
	if err != nil {
		return "", err
	}
	full := filepath.Join(p.scratch, filepath.FromSlash(rel))
	if full != p.scratch && !strings.HasPrefix(full, p.scratch+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q leaves the scratch directory", rel)
	}
	return full, nil
}

// Format decodes the inputs in parallel and writes the table into the
// output directory.
func (p *SourcePipeline) Format(ctx context.Context) error {
	if p.state != StateExtracted {
		return fmt.Errorf("%w: format after %s", ErrStageOrder, p.state)
	}
	dec, err := p.variant.Format.NewDecoder(p.logger())
	if err != nil {
		return &StageError{Stage: StageFormat, Err: err}
	}

	ex := extract.New(p.Config.Workers, p.logger())
	ex.Progress = func(done, total int) {
		p.logger().Debug("file decoded", zap.Int("done", done), zap.Int("total", total))
	}
	p.printf("decoding: %d files\n", len(p.inputs))
	records, report, err := ex.Extract(ctx, p.inputs, dec)
	if err != nil {
		return &StageError{Stage: StageFormat, Err: err}
	}

	n := &table.Normalizer{
		Dir:      p.Config.OutputDir,
		Declared: p.variant.Format.Declared(),
		Mode:     p.src.Schema,
		Now:      p.Now,
		Root:     commonDir(p.inputs),
		Log:      p.logger(),
	}
	out, err := n.Write(records, table.Provenance{Source: p.src.Name, Version: p.version.ID})
	if err != nil {
		return &StageError{Stage: StageFormat, Err: err}
	}

	p.result.Output = out
	p.result.Report = report
	p.state = StateFormatted
	return nil
}

// Run resolves, downloads, extracts and formats one version. The scratch
// directory is removed after success unless KeepScratch is set, and kept
// after a failure for inspection.
func (p *SourcePipeline) Run(ctx context.Context, name, version string) (Result, error) {
	start := p.now()
	if err := p.Resolve(ctx, name, version); err != nil {
		return Result{}, err
	}
	log := p.logger().With(zap.String("run_id", p.runID), zap.String("source", name), zap.String("version", version))

	steps := []struct {
		stage Stage
		fn    func() error
	}{
		{StageDownload, func() error { return p.Download(ctx) }},
		{StageExtract, p.Extract},
		{StageFormat, func() error { return p.Format(ctx) }},
	}
	for _, s := range steps {
		log.Info("stage started", zap.String("stage", string(s.stage)))
		if err := s.fn(); err != nil {
			log.Error("stage failed", zap.String("stage", string(s.stage)), zap.String("scratch", p.scratch), zap.Error(err))
			return p.result, err
		}
		log.Info("stage finished", zap.String("stage", string(s.stage)))
	}

	if !p.Config.KeepScratch {
		if err := os.RemoveAll(p.scratch); err != nil {
			return p.result, fmt.Errorf("removing scratch directory: %w", err)
		}
	}

	r := p.result.Report
	log.Info("run finished",
		zap.String("output", p.result.Output),
		zap.Int("files", r.FilesAttempted),
		zap.Int("empty_files", r.FilesEmpty),
		zap.Int("records", r.Records),
		zap.Duration("elapsed", p.now().Sub(start)))
	return p.result, nil
}

func (p *SourcePipeline) scratchRoot() string {
	if p.Config.ScratchDir != "" {
		return p.Config.ScratchDir
	}
	return p.Config.OutputDir
}

func (p *SourcePipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *SourcePipeline) printf(format string, args ...any) {
	if p.Out != nil {
		fmt.Fprintf(p.Out, format, args...)
	}
}

func (p *SourcePipeline) logger() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}

// commonDir returns the deepest directory containing every path.
func commonDir(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	dir := filepath.Dir(paths[0])
	for _, p := range paths[1:] {
		for !within(dir, p) {
			parent := filepath.Dir(dir)
			if parent == dir {
				return dir
			}
			dir = parent
		}
	}
	return dir
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

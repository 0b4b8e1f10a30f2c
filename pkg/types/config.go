package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout. Zero means no timeout, which suits
	// multi-gigabyte archive downloads.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "ncsw-data/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// LogConfig selects the level and encoding of the structured logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level"`

	// Format is json or console.
	Format string `json:"format" yaml:"format"`
}

// SchemaMode decides how rows with different native columns are aligned
// into one output table.
type SchemaMode string

const (
	// SchemaUnion unions the columns of all rows and leaves absent cells empty.
	SchemaUnion SchemaMode = "union"
	// SchemaStrict requires every row to carry the columns of the first row.
	SchemaStrict SchemaMode = "strict"
)

// PipelineConfig holds settings for one download, extract, and format run.
type PipelineConfig struct {
	HTTPConfig `yaml:",inline"`

	// OutputDir receives the formatted table.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// ScratchDir is the parent of the per-run scratch directory. Empty means
	// OutputDir.
	ScratchDir string `json:"scratch_dir" yaml:"scratch_dir"`

	// Workers is the number of concurrent decoders (default 1).
	Workers int `json:"workers" yaml:"workers"`

	// KeepScratch leaves the scratch directory in place after a successful run.
	KeepScratch bool `json:"keep_scratch" yaml:"keep_scratch"`
}

// ArchiveConfig holds settings for the SQLite archive store.
type ArchiveConfig struct {
	// DBPath is the SQLite database file.
	DBPath string `json:"db" yaml:"db"`
}

// Config groups every configuration section read by the CLI.
type Config struct {
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`
	Log      LogConfig      `json:"log" yaml:"log"`
	Archive  ArchiveConfig  `json:"archive" yaml:"archive"`

	// RegistryPath overrides the embedded source registry.
	RegistryPath string `json:"registry" yaml:"registry"`
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the ncsw-data CLI.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/logging"
	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/registry"
	"github.com/neo-chem-synth-wave/ncsw-data-sub001/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const (
	defaultUserAgent = "ncsw-data/0.1"
	defaultWorkers   = 1
)

// log is the process logger, built once flags and config are read.
var log = zap.NewNop()

// rootCmd is the base command for the ncsw-data CLI.
var rootCmd = &cobra.Command{
	Use:   "ncsw-data",
	Short: "Download and normalize versioned chemistry datasets",
	Long: `ncsw-data retrieves compound, reaction and reaction pattern datasets from
their publishers, unpacks them, and writes one timestamped CSV table per
dataset version.

Use names and versions to explore the registry, run to build a table, and
archive to load a table into a SQLite archive database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}
		l, err := logging.New(loadConfig().Log)
		if err != nil {
			return err
		}
		log = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./ncsw-data.yaml or ~/.config/ncsw-data/ncsw-data.yaml)")
	pf.String("registry", "", "source registry file (default: built-in registry)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "console", "log format: console or json")

	_ = viper.BindPFlag("registry", pf.Lookup("registry"))
	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", pf.Lookup("log-format"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("ncsw-data")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "ncsw-data"))
		}
	}

	viper.SetEnvPrefix("NCSW_DATA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("workers", defaultWorkers)
	viper.SetDefault("http.user_agent", defaultUserAgent)
	viper.SetDefault("output_dir", ".")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig assembles the typed configuration from flags, environment and
// config file, in that order of precedence.
func loadConfig() types.Config {
	return types.Config{
		Pipeline: types.PipelineConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("http.timeout"),
				UserAgent: viper.GetString("http.user_agent"),
			},
			OutputDir:   viper.GetString("output_dir"),
			ScratchDir:  viper.GetString("scratch_dir"),
			Workers:     viper.GetInt("workers"),
			KeepScratch: viper.GetBool("keep_scratch"),
		},
		Log: types.LogConfig{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
		},
		Archive: types.ArchiveConfig{
			DBPath: viper.GetString("archive.db"),
		},
		RegistryPath: viper.GetString("registry"),
	}
}

func loadRegistry(cfg types.Config) (*registry.Registry, error) {
	return registry.Load(cfg.RegistryPath)
}

// catalogTimeout bounds version queries when no HTTP timeout is configured.
const catalogTimeout = 60 * time.Second

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

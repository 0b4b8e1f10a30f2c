// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Download, extract and format one data source version",
	Long: `Run resolves a data source version, downloads its artifacts into a scratch
directory, unpacks them, decodes the raw files in parallel, and writes one
timestamped CSV table into the output directory.

The scratch directory is removed after a successful run and kept after a
failure.`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.String("category", "", "data source category (needed when the name is in several)")
	f.String("name", "", "data source name (required)")
	f.String("version", "", "data source version (required)")
	f.String("output-dir", ".", "directory for the output table")
	f.String("scratch-dir", "", "parent of the scratch directory (default: output directory)")
	f.Int("workers", defaultWorkers, "number of files decoded concurrently")
	f.Bool("keep-scratch", false, "keep the scratch directory after a successful run")
	f.Duration("timeout", 0, "HTTP request timeout (default: none)")
	_ = runCmd.MarkFlagRequired("name")
	_ = runCmd.MarkFlagRequired("version")

	_ = viper.BindPFlag("output_dir", f.Lookup("output-dir"))
	_ = viper.BindPFlag("scratch_dir", f.Lookup("scratch-dir"))
	_ = viper.BindPFlag("workers", f.Lookup("workers"))
	_ = viper.BindPFlag("keep_scratch", f.Lookup("keep-scratch"))
	_ = viper.BindPFlag("http.timeout", f.Lookup("timeout"))

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	category, _ := cmd.Flags().GetString("category")
	name, _ := cmd.Flags().GetString("name")
	ver, _ := cmd.Flags().GetString("version")

	cfg := loadConfig()
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	p := pipeline.New(reg, cfg.Pipeline, log)
	p.Category = category
	p.Out = os.Stdout

	res, err := p.Run(cmd.Context(), name, ver)
	if err != nil {
		if p.State() >= pipeline.StateResolved {
			fmt.Fprintf(os.Stderr, "scratch directory kept: %s\n", p.ScratchDir())
		}
		return err
	}
	printRunSummary(os.Stdout, res)
	log.Debug("run summary printed", zap.String("run_id", res.RunID))
	return nil
}

func printRunSummary(w io.Writer, res pipeline.Result) {
	r := res.Report
	fmt.Fprintf(w, "\nwrote: %s\n", res.Output)
	fmt.Fprintf(w, "files: %d, empty: %d, records: %d\n", r.FilesAttempted, r.FilesEmpty, r.Records)
	if r.HasEmptyFiles() {
		fmt.Fprintf(w, "warning: %d file(s) produced no records\n", r.FilesEmpty)
	}
}

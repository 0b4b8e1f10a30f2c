// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/store"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Load a formatted table into the SQLite archive",
	Long: `Archive inserts the values of one column of a table written by run into a
SQLite archive database, together with the source, version and raw file
name of every row. Values already archived for the same file are skipped.`,
	RunE: runArchive,
}

func init() {
	f := archiveCmd.Flags()
	f.String("db", "archive.db", "SQLite archive database file")
	f.String("input", "", "table written by run (required)")
	f.String("category", "", "data source category of the table (required)")
	f.String("column", "", "value column (default: first known SMILES or SMARTS column)")
	f.String("export", "", "write a YAML summary of the archive to this file")
	_ = archiveCmd.MarkFlagRequired("input")
	_ = archiveCmd.MarkFlagRequired("category")

	_ = viper.BindPFlag("archive.db", f.Lookup("db"))

	rootCmd.AddCommand(archiveCmd)
}

func runArchive(cmd *cobra.Command, args []string) error {
	input, _ := cmd.Flags().GetString("input")
	category, _ := cmd.Flags().GetString("category")
	column, _ := cmd.Flags().GetString("column")
	export, _ := cmd.Flags().GetString("export")

	cfg := loadConfig()
	s, err := store.Open(cfg.Archive.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	imp, err := s.Import(cmd.Context(), input, category, column)
	if err != nil {
		return err
	}
	log.Info("table archived",
		zap.String("import_id", imp.ID),
		zap.String("column", imp.Column),
		zap.Int("read", imp.Read),
		zap.Int("inserted", imp.Inserted))
	fmt.Printf("archived: %s (%d inserted, %d skipped)\n", input, imp.Inserted, imp.Skipped())

	if export != "" {
		if err := s.ExportYAML(cmd.Context(), export); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "summary: %s\n", export)
	}
	return nil
}

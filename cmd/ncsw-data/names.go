// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/registry"
)

var namesCmd = &cobra.Command{
	Use:   "names",
	Short: "List the supported data sources",
	Long: `Names lists the data sources in the registry, grouped by category. With
--category only that category is listed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		reg, err := loadRegistry(loadConfig())
		if err != nil {
			return err
		}
		return printNames(os.Stdout, reg, category)
	},
}

func init() {
	namesCmd.Flags().String("category", "", "data source category: compound, compound_pattern, reaction, reaction_pattern, reaction_rule")

	rootCmd.AddCommand(namesCmd)
}

func printNames(w io.Writer, reg *registry.Registry, category string) error {
	categories := reg.CategoryNames()
	if category != "" {
		categories = []string{category}
	}
	for _, c := range categories {
		names, err := reg.Names(c)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s:\n", c)
		for _, name := range names {
			src, _ := reg.Lookup(c, name)
			fmt.Fprintf(w, "  %-16s %s\n", name, src.Description)
		}
	}
	return nil
}

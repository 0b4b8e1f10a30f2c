// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/pipeline"
	"github.com/neo-chem-synth-wave/ncsw-data-sub001/pkg/types"
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List the versions of a data source",
	Long: `Versions resolves the version catalog of a data source. Sources with a
dynamic catalog are queried over the network on every call.`,
	RunE: runVersions,
}

func init() {
	versionsCmd.Flags().String("category", "", "data source category (needed when the name is in several)")
	versionsCmd.Flags().String("name", "", "data source name (required)")
	versionsCmd.Flags().Bool("json", false, "output versions as JSON")
	_ = versionsCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(versionsCmd)
}

func runVersions(cmd *cobra.Command, args []string) error {
	category, _ := cmd.Flags().GetString("category")
	name, _ := cmd.Flags().GetString("name")
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg := loadConfig()
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	src, err := reg.Find(category, name)
	if err != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrUnsupportedSource, err)
	}

	timeout := cfg.Pipeline.Timeout
	if timeout == 0 {
		timeout = catalogTimeout
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	versions, err := src.NewCatalog(&http.Client{Timeout: timeout}, cfg.Pipeline.UserAgent).Resolve(ctx)
	if err != nil {
		return err
	}
	return printVersions(os.Stdout, versions, asJSON)
}

func printVersions(w io.Writer, versions map[string]types.DatasetVersion, asJSON bool) error {
	ids := make([]string, 0, len(versions))
	for id := range versions {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	if asJSON {
		list := make([]types.DatasetVersion, 0, len(ids))
		for _, id := range ids {
			list = append(list, versions[id])
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	for _, id := range ids {
		v := versions[id]
		fmt.Fprintf(w, "%-52s %-15s %s\n", v.ID, v.Family, v.Provenance)
	}
	return nil
}

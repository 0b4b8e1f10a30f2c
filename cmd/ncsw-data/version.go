package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of ncsw-data",
	Run: func(cmd *cobra.Command, args []string) {
		info, _ := debug.ReadBuildInfo()
		printVersion(os.Stdout, info)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// printVersion writes the release version, then the Go toolchain and VCS
// revision when the binary carries build information.
func printVersion(w io.Writer, info *debug.BuildInfo) {
	fmt.Fprintf(w, "ncsw-data %s\n", version)
	if info == nil {
		return
	}
	fmt.Fprintf(w, "  go       %s\n", info.GoVersion)
	settings := map[string]string{}
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	if rev := settings["vcs.revision"]; rev != "" {
		if settings["vcs.modified"] == "true" {
			rev += " (modified)"
		}
		fmt.Fprintf(w, "  revision %s\n", rev)
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"encoding/json"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/pipeline"
	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/registry"
	"github.com/neo-chem-synth-wave/ncsw-data-sub001/pkg/types"
)

func TestPrintNames(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printNames(&buf, reg, "compound"))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "compound:\n"))
	assert.Contains(t, out, "chembl")
	assert.Contains(t, out, "zinc")
	assert.NotContains(t, out, "uspto")

	buf.Reset()
	require.NoError(t, printNames(&buf, reg, ""))
	assert.Contains(t, buf.String(), "reaction_pattern:\n  miscellaneous")
	assert.Contains(t, buf.String(), "reaction_rule:\n  miscellaneous")
	assert.Contains(t, buf.String(), "compound_pattern:\n  rdkit")

	assert.Error(t, printNames(&buf, reg, "polymer"))
}

func TestPrintVersions(t *testing.T) {
	versions := map[string]types.DatasetVersion{
		"v_release_27": {ID: "v_release_27", Provenance: "https://doi.org/10.6019/CHEMBL.database.27", Family: types.FamilyDelimitedText},
		"v_release_25": {ID: "v_release_25", Provenance: "https://doi.org/10.6019/CHEMBL.database.25", Family: types.FamilyDelimitedText},
	}

	var buf bytes.Buffer
	require.NoError(t, printVersions(&buf, versions, false))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "v_release_25"))

	buf.Reset()
	require.NoError(t, printVersions(&buf, versions, true))
	var list []types.DatasetVersion
	require.NoError(t, json.Unmarshal(buf.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "v_release_27", list[1].ID)
}

func TestPrintRunSummary(t *testing.T) {
	var buf bytes.Buffer
	printRunSummary(&buf, pipeline.Result{
		Output: "out/20240501123045_uspto_v_1.csv",
		Report: types.ExtractionReport{FilesAttempted: 4, FilesEmpty: 1, Records: 6},
	})
	assert.Contains(t, buf.String(), "wrote: out/20240501123045_uspto_v_1.csv")
	assert.Contains(t, buf.String(), "files: 4, empty: 1, records: 6")
	assert.Contains(t, buf.String(), "warning: 1 file(s)")
}

func TestPrintVersion(t *testing.T) {
	var buf bytes.Buffer
	printVersion(&buf, nil)
	assert.Equal(t, "ncsw-data "+version+"\n", buf.String())

	buf.Reset()
	printVersion(&buf, &debug.BuildInfo{
		GoVersion: "go1.25.6",
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0a1b2c3"},
			{Key: "vcs.modified", Value: "true"},
		},
	})
	assert.Contains(t, buf.String(), "go       go1.25.6\n")
	assert.Contains(t, buf.String(), "revision 0a1b2c3 (modified)\n")
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/httputil"
	"github.com/neo-chem-synth-wave/ncsw-data-sub001/pkg/types"
)

const rheaIndex = "https://ftp.expasy.org/databases/rhea/rhea-release.properties"

func activate(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
}

func rhea() ReleaseRange {
	return ReleaseRange{
		Source:     "rhea",
		IndexURL:   rheaIndex,
		Pattern:    regexp.MustCompile(`rhea\.release\.number=(\d+)`),
		Floor:      126,
		Provenance: func(string) string { return "https://doi.org/10.1021/acs.jcim.0c00675" },
		Family:     types.FamilyDelimitedText,
	}
}

func TestStatic_Deterministic(t *testing.T) {
	s := Static{Versions: map[string]types.DatasetVersion{
		"v_main":          {ID: "v_main", Provenance: "https://doi.org/10.1021/jacs.1c09820"},
		"v_release_0_1_0": {ID: "v_release_0_1_0", Provenance: "https://doi.org/10.1021/jacs.1c09820"},
	}}

	first, err := s.Resolve(context.Background())
	require.NoError(t, err)
	second, err := s.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Callers cannot mutate the literal map.
	delete(first, "v_main")
	third, err := s.Resolve(context.Background())
	require.NoError(t, err)
	assert.Len(t, third, 2)
}

func TestReleaseRange_Resolve(t *testing.T) {
	activate(t)
	httpmock.RegisterResponder("GET", rheaIndex,
		httpmock.NewStringResponder(http.StatusOK, "rhea.release.number=131\nrhea.release.date=2024-05-01\n"))

	versions, err := rhea().Resolve(context.Background())
	require.NoError(t, err)
	assert.Len(t, versions, 6)

	idPattern := regexp.MustCompile(`^v_release_\d+$`)
	for id, v := range versions {
		assert.Regexp(t, idPattern, id)
		assert.Equal(t, id, v.ID)
		n, err := strconv.Atoi(strings.TrimPrefix(id, ReleasePrefix))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 126)
		assert.LessOrEqual(t, n, 131)
		assert.Equal(t, "https://doi.org/10.1021/acs.jcim.0c00675", v.Provenance)
	}
	assert.Contains(t, versions, "v_release_126")
	assert.Contains(t, versions, "v_release_131")
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestReleaseRange_NoCaching(t *testing.T) {
	activate(t)
	httpmock.RegisterResponder("GET", rheaIndex,
		httpmock.NewStringResponder(http.StatusOK, "rhea.release.number=126\n"))

	c := rhea()
	_, err := c.Resolve(context.Background())
	require.NoError(t, err)
	_, err = c.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestReleaseRange_Errors(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		wantHTTP  bool
	}{
		{"below floor", httpmock.NewStringResponder(http.StatusOK, "rhea.release.number=100"), false},
		{"no match", httpmock.NewStringResponder(http.StatusOK, "nothing here"), false},
		{"server error", httpmock.NewStringResponder(http.StatusBadGateway, ""), true},
		{"transport", httpmock.NewErrorResponder(errors.New("connection reset")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			activate(t)
			httpmock.RegisterResponder("GET", rheaIndex, tt.responder)

			versions, err := rhea().Resolve(context.Background())
			assert.Nil(t, versions)

			var re *ResolutionError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, "rhea", re.Source)

			var se *httputil.StatusError
			assert.Equal(t, tt.wantHTTP, errors.As(err, &se))
		})
	}
}

func TestListing_Resolve(t *testing.T) {
	activate(t)
	const listing = `<html><body>
<a href="Enamine_bb.smi.gz">Enamine_bb.smi.gz</a>
<a href="MolPort_bb.smi.gz">MolPort_bb.smi.gz</a>
<a href="README.txt">README.txt</a>
</body></html>`
	httpmock.RegisterResponder("GET", "https://files.docking.org/bb/current",
		httpmock.NewStringResponder(http.StatusOK, listing))

	l := Listing{
		Source:   "zinc",
		IndexURL: "https://files.docking.org/bb/current",
		Pattern:  regexp.MustCompile(`href="([^\.]+)\.smi\.gz"`),
		Prefix:   "v_building_blocks_",
	}
	versions, err := l.Resolve(context.Background())
	require.NoError(t, err)
	assert.Len(t, versions, 2)
	assert.Contains(t, versions, "v_building_blocks_Enamine_bb")
	assert.Contains(t, versions, "v_building_blocks_MolPort_bb")
}

func TestListing_Empty(t *testing.T) {
	activate(t)
	httpmock.RegisterResponder("GET", "https://files.docking.org/bb/current",
		httpmock.NewStringResponder(http.StatusOK, "<html></html>"))

	l := Listing{
		Source:   "zinc",
		IndexURL: "https://files.docking.org/bb/current",
		Pattern:  regexp.MustCompile(`href="([^\.]+)\.smi\.gz"`),
	}
	_, err := l.Resolve(context.Background())
	var re *ResolutionError
	assert.ErrorAs(t, err, &re)
}

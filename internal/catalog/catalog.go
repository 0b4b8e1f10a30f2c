// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog answers which versions of a data source exist and where
// their artifacts come from. Dynamic catalogs query the publisher on every
// call; nothing is cached.
package catalog

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"regexp"
	"strconv"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/httputil"
	"github.com/neo-chem-synth-wave/ncsw-data-sub001/pkg/types"
)

// ReleasePrefix is the identifier prefix of release-numbered versions.
const ReleasePrefix = "v_release_"

// Catalog lists the versions of one data source.
type Catalog interface {
	Resolve(ctx context.Context) (map[string]types.DatasetVersion, error)
}

// ProvenanceFunc returns the citation URL of a version given its release
// string (the identifier without the catalog prefix).
type ProvenanceFunc func(release string) string

// ResolutionError reports that a catalog could not be built. No partial
// catalog accompanies it.
type ResolutionError struct {
	Source string
	URL    string
	Reason string
	Err    error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("resolving versions of %s", e.Source)
	if e.URL != "" {
		msg += " from " + e.URL
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Static is a literal version map.
type Static struct {
	Versions map[string]types.DatasetVersion
}

// Resolve returns a copy of the literal map.
func (s Static) Resolve(_ context.Context) (map[string]types.DatasetVersion, error) {
	return maps.Clone(s.Versions), nil
}

// ReleaseRange derives versions v_release_<n> for every n between Floor and
// the latest release number published in a metadata document.
type ReleaseRange struct {
	Source     string
	IndexURL   string
	Pattern    *regexp.Regexp // one capture group holding the latest number
	Floor      int
	Provenance ProvenanceFunc
	Family     types.Family

	Client    *http.Client
	UserAgent string
}

// Resolve fetches the index document and enumerates [Floor, latest].
func (r ReleaseRange) Resolve(ctx context.Context) (map[string]types.DatasetVersion, error) {
	body, err := fetch(ctx, r.Client, r.IndexURL, r.UserAgent)
	if err != nil {
		return nil, &ResolutionError{Source: r.Source, URL: r.IndexURL, Reason: "fetching index", Err: err}
	}

	m := r.Pattern.FindSubmatch(body)
	if m == nil || len(m) < 2 {
		return nil, &ResolutionError{Source: r.Source, URL: r.IndexURL, Reason: "no release number found"}
	}
	latest, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return nil, &ResolutionError{Source: r.Source, URL: r.IndexURL, Reason: fmt.Sprintf("release number %q is not an integer", m[1]), Err: err}
	}
	if latest < r.Floor {
		return nil, &ResolutionError{Source: r.Source, URL: r.IndexURL, Reason: fmt.Sprintf("latest release %d is below floor %d", latest, r.Floor)}
	}

	versions := make(map[string]types.DatasetVersion, latest-r.Floor+1)
	for n := r.Floor; n <= latest; n++ {
		rel := strconv.Itoa(n)
		id := ReleasePrefix + rel
		versions[id] = types.DatasetVersion{ID: id, Provenance: provenance(r.Provenance, rel), Family: r.Family}
	}
	return versions, nil
}

// Listing turns every match of Pattern in a directory listing into a
// version Prefix+<capture>.
type Listing struct {
	Source     string
	IndexURL   string
	Pattern    *regexp.Regexp
	Prefix     string
	Provenance ProvenanceFunc
	Family     types.Family

	Client    *http.Client
	UserAgent string
}

// Resolve fetches the listing and collects every capture.
func (l Listing) Resolve(ctx context.Context) (map[string]types.DatasetVersion, error) {
	body, err := fetch(ctx, l.Client, l.IndexURL, l.UserAgent)
	if err != nil {
		return nil, &ResolutionError{Source: l.Source, URL: l.IndexURL, Reason: "fetching listing", Err: err}
	}

	matches := l.Pattern.FindAllSubmatch(body, -1)
	if len(matches) == 0 {
		return nil, &ResolutionError{Source: l.Source, URL: l.IndexURL, Reason: "listing has no entries"}
	}

	versions := make(map[string]types.DatasetVersion, len(matches))
	for _, m := range matches {
		if len(m) < 2 || len(m[1]) == 0 {
			continue
		}
		rel := string(m[1])
		id := l.Prefix + rel
		versions[id] = types.DatasetVersion{ID: id, Provenance: provenance(l.Provenance, rel), Family: l.Family}
	}
	return versions, nil
}

func fetch(ctx context.Context, client *http.Client, url, userAgent string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	return httputil.ReadAll(ctx, client, url, userAgent)
}

func provenance(fn ProvenanceFunc, release string) string {
	if fn == nil {
		return ""
	}
	return fn(release)
}

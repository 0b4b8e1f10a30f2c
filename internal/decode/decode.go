// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package decode turns one raw dataset file into records. Each decoder
// handles one raw format family. Decoders are stateless and safe for
// concurrent use.
//
// Apart from Delimited, decoders isolate faults: a file or record that
// cannot be read is logged at debug level and yields no records instead of
// an error.
package decode

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/archive"
	"github.com/neo-chem-synth-wave/ncsw-data-sub001/pkg/types"
)

// Decoder reads the file at path into records.
type Decoder interface {
	Decode(ctx context.Context, path string) ([]types.Record, error)
}

// Column names shared by the reaction decoders.
const (
	ColDatasetID      = "dataset_id"
	ColReactionID     = "reaction_id"
	ColReactionSMILES = "reaction_smiles"
	ColYear           = "year"
	ColDocumentID     = "document_id"
	ColParagraphID    = "paragraph_id"
	ColParagraphText  = "paragraph_text"
)

// openInput opens path. A .gz file is read as the single member of its
// gzip container.
func openInput(path string) (io.ReadCloser, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return os.Open(path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	base := filepath.Base(path)
	return archive.OpenMember(path, strings.TrimSuffix(base, filepath.Ext(base)))
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decode

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/pkg/types"
)

// CML decodes Chemical Markup Language documents such as the USPTO text
// mining exports. Each outermost reaction element becomes one record. A
// document with a syntax error anywhere yields no records.
type CML struct {
	Log *zap.Logger
}

// cmlReaction matches elements by local name so any namespace prefix is
// accepted.
type cmlReaction struct {
	Source struct {
		DocumentID    string `xml:"documentId"`
		ParagraphNum  string `xml:"paragraphNum"`
		ParagraphText string `xml:"paragraphText"`
	} `xml:"source"`
	ReactionSMILES string `xml:"reactionSmiles"`
}

// Decode implements Decoder.
func (d CML) Decode(_ context.Context, path string) ([]types.Record, error) {
	log := logger(d.Log).With(zap.String("file", filepath.Base(path)))

	rc, err := openInput(path)
	if err != nil {
		log.Debug("skipping unreadable file", zap.Error(err))
		return nil, nil
	}
	defer rc.Close()

	year := yearFromPath(path)
	base := filepath.Base(path)

	dec := xml.NewDecoder(rc)
	var records []types.Record
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Debug("dropping malformed document", zap.Error(err))
			return nil, nil
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "reaction" {
			continue
		}

		var rxn cmlReaction
		if err := dec.DecodeElement(&rxn, &start); err != nil {
			log.Debug("dropping malformed document", zap.Error(err))
			return nil, nil
		}
		records = append(records, types.Record{
			File: base,
			Fields: []types.Field{
				types.Opt(ColYear, year),
				types.Opt(ColDocumentID, strings.TrimSpace(rxn.Source.DocumentID)),
				types.Opt(ColParagraphID, strings.TrimSpace(rxn.Source.ParagraphNum)),
				types.Opt(ColParagraphText, strings.TrimSpace(rxn.Source.ParagraphText)),
				types.Opt(ColReactionSMILES, strings.TrimSpace(rxn.ReactionSMILES)),
			},
		})
	}
	return records, nil
}

// yearFromPath returns the name of the nearest ancestor directory made of
// exactly four digits.
func yearFromPath(path string) string {
	dir := filepath.Dir(path)
	for {
		name := filepath.Base(dir)
		if isYear(name) {
			return name
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

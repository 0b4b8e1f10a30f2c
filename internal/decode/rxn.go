// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decode

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/pkg/types"
)

const rxnToken = "$RXN"

// RXNBlock decodes text files holding a sequence of MDL RXN blocks, such as
// RD files. Each block that parses and yields a non-empty reaction SMILES
// becomes one record; other blocks are skipped.
type RXNBlock struct {
	Log *zap.Logger
}

// Decode implements Decoder.
func (d RXNBlock) Decode(_ context.Context, path string) ([]types.Record, error) {
	log := logger(d.Log).With(zap.String("file", filepath.Base(path)))

	rc, err := openInput(path)
	if err != nil {
		log.Debug("skipping unreadable file", zap.Error(err))
		return nil, nil
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		log.Debug("skipping unreadable file", zap.Error(err))
		return nil, nil
	}

	base := filepath.Base(path)
	chunks := strings.Split(string(data), rxnToken)
	var records []types.Record
	// The first chunk precedes the first $RXN token.
	for i, chunk := range chunks[1:] {
		smiles, err := blockSMILES(rxnToken + chunk)
		if err != nil {
			log.Debug("skipping block", zap.Int("block", i+1), zap.Error(err))
			continue
		}
		if smiles == "" {
			log.Debug("skipping empty block", zap.Int("block", i+1))
			continue
		}
		records = append(records, types.Record{
			File:   base,
			Fields: []types.Field{types.Str(ColReactionSMILES, smiles)},
		})
	}
	return records, nil
}

// blockSMILES converts one RXN block. A panic while parsing is confined to
// the block.
func blockSMILES(block string) (smiles string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	rxn, err := parseRXN(block)
	if err != nil {
		return "", err
	}
	return reactionSMILES(rxn), nil
}

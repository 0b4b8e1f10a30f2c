// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decode

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/pkg/types"
)

// Field numbers of the Open Reaction Database schema messages that the
// decoder reads. Everything else is skipped.
const (
	ordDatasetReactions = 3
	ordDatasetID        = 5

	ordReactionIdentifiers = 1
	ordReactionInputs      = 2
	ordReactionOutcomes    = 8
	ordReactionID          = 10

	ordIdentifierType  = 1
	ordIdentifierValue = 3

	ordMapKey   = 1
	ordMapValue = 2

	ordInputComponents = 1

	ordCompoundIdentifiers = 1
	ordCompoundRole        = 3

	ordOutcomeProducts = 3

	ordProductIdentifiers = 1
	ordProductRole        = 7
)

// Enum values used by the decoder.
const (
	ordReactionSMILES   = 2
	ordReactionCXSMILES = 6
	ordCompoundSMILES   = 2

	// ReactionRole.ReactionRoleType
	roleUnspecified      = 0
	roleReactant         = 1
	roleReagent          = 2
	roleSolvent          = 3
	roleCatalyst         = 4
	roleWorkup           = 5
	roleInternalStandard = 6
	roleProduct          = 8
	roleByproduct        = 9
)

// ORDMessage decodes gzip-compressed Open Reaction Database Dataset
// messages (.pb.gz). It emits one record per reaction whose SMILES is known
// or can be built from its compounds.
type ORDMessage struct {
	Log *zap.Logger
}

// Decode implements Decoder. A file whose container or wire format is
// broken yields no records.
func (d ORDMessage) Decode(_ context.Context, path string) ([]types.Record, error) {
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

	var datasetID string
	var reactions [][]byte
	err = eachField(data, func(f wireField) error {
		switch f.num {
		case ordDatasetID:
			datasetID = string(f.bytes)
		case ordDatasetReactions:
			reactions = append(reactions, f.bytes)
		}
		return nil
	})
	if err != nil {
		log.Debug("skipping malformed dataset message", zap.Error(err))
		return nil, nil
	}

	base := filepath.Base(path)
	var records []types.Record
	for i, raw := range reactions {
		rxn, err := parseORDReaction(raw)
		if err != nil {
			log.Debug("skipping malformed reaction", zap.Int("index", i), zap.Error(err))
			continue
		}
		smiles, ok := rxn.smiles()
		if !ok {
			log.Debug("skipping reaction without reaction SMILES", zap.String("reaction_id", rxn.id))
			continue
		}
		records = append(records, types.Record{
			File: base,
			Fields: []types.Field{
				types.Opt(ColDatasetID, datasetID),
				types.Opt(ColReactionID, rxn.id),
				types.Str(ColReactionSMILES, smiles),
			},
		})
	}
	return records, nil
}

type ordCompound struct {
	smiles string
	role   uint64
}

type ordReaction struct {
	id          string
	identifiers map[uint64]string
	inputs      []ordCompound
	products    []ordCompound
}

// smiles returns the stored reaction SMILES, or builds one from the input
// and product compounds. The result is not canonicalized.
func (r ordReaction) smiles() (string, bool) {
	if cx, ok := r.identifiers[ordReactionCXSMILES]; ok {
		if fields := strings.Fields(cx); len(fields) > 0 {
			return fields[0], true
		}
	}
	if s, ok := r.identifiers[ordReactionSMILES]; ok && s != "" {
		return s, true
	}

	var reactants, agents, products []string
	for _, c := range r.inputs {
		if c.smiles == "" {
			continue
		}
		switch c.role {
		case roleReagent, roleSolvent, roleCatalyst:
			agents = append(agents, c.smiles)
		case roleInternalStandard, roleWorkup:
		default:
			reactants = append(reactants, c.smiles)
		}
	}
	for _, c := range r.products {
		if c.smiles == "" {
			continue
		}
		if c.role == roleProduct || c.role == roleUnspecified {
			products = append(products, c.smiles)
		}
	}
	if len(reactants) == 0 || len(products) == 0 {
		return "", false
	}
	return joinSorted(reactants) + ">" + joinSorted(agents) + ">" + joinSorted(products), true
}

func joinSorted(s []string) string {
	s = slices.Clone(s)
	slices.Sort(s)
	return strings.Join(slices.Compact(s), ".")
}

func parseORDReaction(b []byte) (ordReaction, error) {
	rxn := ordReaction{identifiers: map[uint64]string{}}
	err := eachField(b, func(f wireField) error {
		switch f.num {
		case ordReactionID:
			rxn.id = string(f.bytes)
		case ordReactionIdentifiers:
			typ, value, err := parseIdentifier(f.bytes)
			if err != nil {
				return err
			}
			if _, seen := rxn.identifiers[typ]; !seen {
				rxn.identifiers[typ] = value
			}
		case ordReactionInputs:
			cs, err := parseInputEntry(f.bytes)
			if err != nil {
				return err
			}
			rxn.inputs = append(rxn.inputs, cs...)
		case ordReactionOutcomes:
			err := eachField(f.bytes, func(o wireField) error {
				if o.num != ordOutcomeProducts {
					return nil
				}
				c, err := parseCompound(o.bytes, ordProductIdentifiers, ordProductRole)
				if err != nil {
					return err
				}
				rxn.products = append(rxn.products, c)
				return nil
			})
			if err != nil {
				return fmt.Errorf("outcome: %w", err)
			}
		}
		return nil
	})
	return rxn, err
}

// parseInputEntry reads one map<string, ReactionInput> entry.
func parseInputEntry(b []byte) ([]ordCompound, error) {
	var out []ordCompound
	err := eachField(b, func(f wireField) error {
		if f.num != ordMapValue {
			return nil
		}
		return eachField(f.bytes, func(c wireField) error {
			if c.num != ordInputComponents {
				return nil
			}
			comp, err := parseCompound(c.bytes, ordCompoundIdentifiers, ordCompoundRole)
			if err != nil {
				return err
			}
			out = append(out, comp)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	return out, nil
}

func parseCompound(b []byte, identifiersField, roleField protowire.Number) (ordCompound, error) {
	var c ordCompound
	err := eachField(b, func(f wireField) error {
		switch f.num {
		case identifiersField:
			typ, value, err := parseIdentifier(f.bytes)
			if err != nil {
				return err
			}
			if typ == ordCompoundSMILES && c.smiles == "" {
				c.smiles = value
			}
		case roleField:
			c.role = f.varint
		}
		return nil
	})
	return c, err
}

func parseIdentifier(b []byte) (uint64, string, error) {
	var typ uint64
	var value string
	err := eachField(b, func(f wireField) error {
		switch f.num {
		case ordIdentifierType:
			typ = f.varint
		case ordIdentifierValue:
			value = string(f.bytes)
		}
		return nil
	})
	return typ, value, err
}

type wireField struct {
	num    protowire.Number
	typ    protowire.Type
	bytes  []byte
	varint uint64
}

// eachField walks the top-level fields of an encoded message. Groups and
// fixed-width values are skipped.
func eachField(b []byte, fn func(wireField) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f := wireField{num: num, typ: typ}
		switch typ {
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if typ != protowire.BytesType && typ != protowire.VarintType {
			continue
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func logger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decode

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func msg(parts ...[]byte) []byte { return bytes.Join(parts, nil) }

func bytesField(num protowire.Number, v []byte) []byte {
	b := protowire.AppendTag(nil, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func strField(num protowire.Number, s string) []byte { return bytesField(num, []byte(s)) }

func varintField(num protowire.Number, v uint64) []byte {
	b := protowire.AppendTag(nil, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func identifier(typ uint64, value string) []byte {
	return msg(varintField(ordIdentifierType, typ), strField(ordIdentifierValue, value))
}

func inputCompound(smiles string, role uint64) []byte {
	return msg(
		bytesField(ordCompoundIdentifiers, identifier(ordCompoundSMILES, smiles)),
		varintField(ordCompoundRole, role),
	)
}

func productCompound(smiles string, role uint64) []byte {
	return msg(
		bytesField(ordProductIdentifiers, identifier(ordCompoundSMILES, smiles)),
		varintField(ordProductRole, role),
	)
}

func reactionInput(key string, components ...[]byte) []byte {
	var value []byte
	for _, c := range components {
		value = append(value, bytesField(ordInputComponents, c)...)
	}
	return bytesField(ordReactionInputs, msg(strField(ordMapKey, key), bytesField(ordMapValue, value)))
}

func outcome(products ...[]byte) []byte {
	var value []byte
	for _, p := range products {
		value = append(value, bytesField(ordOutcomeProducts, p)...)
	}
	return bytesField(ordReactionOutcomes, value)
}

func writeGzip(t *testing.T, path string, data []byte) {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestORDMessage_Decode(t *testing.T) {
	reactions := [][]byte{
		// Stored reaction SMILES.
		msg(
			bytesField(ordReactionIdentifiers, identifier(ordReactionSMILES, "CC>>CCO")),
			strField(ordReactionID, "ord-1"),
		),
		// Built from compounds.
		msg(
			reactionInput("alcohol", inputCompound("CCO", roleReactant)),
			reactionInput("acid", inputCompound("CC(=O)O", roleReactant), inputCompound("CC(=O)O", roleReactant)),
			reactionInput("solvent", inputCompound("O", roleSolvent)),
			reactionInput("reagent", inputCompound("OS(=O)(=O)O", roleReagent)),
			reactionInput("catalyst", inputCompound("[Pd]", roleCatalyst)),
			reactionInput("standard", inputCompound("c1ccccc1", roleInternalStandard)),
			outcome(productCompound("CCOC(C)=O", roleProduct), productCompound("O", roleByproduct)),
			strField(ordReactionID, "ord-2"),
		),
		// No products: cannot be represented.
		msg(
			reactionInput("alcohol", inputCompound("CCO", roleReactant)),
			strField(ordReactionID, "ord-3"),
		),
		// CXSMILES keeps the first token only.
		msg(
			bytesField(ordReactionIdentifiers, identifier(ordReactionCXSMILES, "C>>O |f:0|")),
			strField(ordReactionID, "ord-4"),
		),
	}

	dataset := msg(strField(1, "test dataset"), strField(ordDatasetID, "ord_dataset-1"))
	for _, r := range reactions {
		dataset = append(dataset, bytesField(ordDatasetReactions, r)...)
	}

	path := filepath.Join(t.TempDir(), "ord_dataset-1.pb.gz")
	writeGzip(t, path, dataset)

	records, err := ORDMessage{}.Decode(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, len(reactions)-1)

	want := map[string]string{
		"ord-1": "CC>>CCO",
		"ord-2": "CC(=O)O.CCO>O.OS(=O)(=O)O.[Pd]>CCOC(C)=O",
		"ord-4": "C>>O",
	}
	for _, r := range records {
		assert.Equal(t, []string{ColDatasetID, ColReactionID, ColReactionSMILES}, r.Columns())
		assert.Equal(t, "ord_dataset-1.pb.gz", r.File)

		ds, ok := r.Get(ColDatasetID)
		assert.True(t, ok)
		assert.Equal(t, "ord_dataset-1", ds)

		id, _ := r.Get(ColReactionID)
		smiles, _ := r.Get(ColReactionSMILES)
		assert.Equal(t, want[id], smiles, id)
	}
}

func TestORDMessage_BrokenContainer(t *testing.T) {
	dir := t.TempDir()

	notGzip := filepath.Join(dir, "plain.pb.gz")
	require.NoError(t, os.WriteFile(notGzip, []byte("not compressed"), 0o644))

	truncated := filepath.Join(dir, "truncated.pb.gz")
	writeGzip(t, truncated, []byte{0x1a, 0xff})

	for _, path := range []string{notGzip, truncated, filepath.Join(dir, "missing.pb.gz")} {
		records, err := ORDMessage{}.Decode(context.Background(), path)
		assert.NoError(t, err, path)
		assert.Empty(t, records, path)
	}
}

func TestORDMessage_MalformedReactionAmongValid(t *testing.T) {
	valid := func(id string) []byte {
		return msg(
			reactionInput("alcohol", inputCompound("CCO", roleReactant)),
			outcome(productCompound("CCOC(C)=O", roleProduct)),
			strField(ordReactionID, id),
		)
	}
	// An inputs field that declares more bytes than the message holds.
	truncated := msg(strField(ordReactionID, "ord-bad"), []byte{byte(ordReactionInputs<<3 | 2), 0x20, 0x0a})

	dataset := strField(ordDatasetID, "ord_dataset-2")
	for _, r := range [][]byte{valid("ord-1"), truncated, valid("ord-3"), valid("ord-4")} {
		dataset = append(dataset, bytesField(ordDatasetReactions, r)...)
	}
	path := filepath.Join(t.TempDir(), "ord_dataset-2.pb.gz")
	writeGzip(t, path, dataset)

	records, err := ORDMessage{}.Decode(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 3)

	var ids []string
	for _, r := range records {
		id, _ := r.Get(ColReactionID)
		ids = append(ids, id)
		smiles, _ := r.Get(ColReactionSMILES)
		assert.Equal(t, "CCO>>CCOC(C)=O", smiles)
	}
	assert.Equal(t, []string{"ord-1", "ord-3", "ord-4"}, ids)
}

func TestORDReaction_Roles(t *testing.T) {
	rxn := ordReaction{
		identifiers: map[uint64]string{},
		inputs: []ordCompound{
			{smiles: "CCO", role: roleReactant},
			{smiles: "CC(=O)O", role: roleUnspecified},
			{smiles: "[Na+].[Cl-]", role: roleWorkup},
			{smiles: "CC#N", role: roleInternalStandard},
		},
		products: []ordCompound{
			{smiles: "CCOC(C)=O", role: roleProduct},
			{smiles: "O", role: roleByproduct},
		},
	}
	got, ok := rxn.smiles()
	require.True(t, ok)
	assert.Equal(t, "CC(=O)O.CCO>>CCOC(C)=O", got)

	rxn.products = []ordCompound{{smiles: "O", role: roleByproduct}}
	_, ok = rxn.smiles()
	assert.False(t, ok)
}

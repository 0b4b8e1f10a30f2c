// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decode

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/pkg/types"
)

func writeText(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func values(t *testing.T, r types.Record) map[string]string {
	t.Helper()
	out := map[string]string{}
	for _, f := range r.Fields {
		out[f.Name] = f.Value
	}
	return out
}

func TestDelimited_Decode(t *testing.T) {
	tests := []struct {
		name    string
		decoder Delimited
		file    string
		content string
		want    []map[string]string
	}{
		{
			name:    "comma with header",
			decoder: Delimited{Delimiter: ",", Header: true},
			file:    "dataSetA.csv",
			content: "rxn_Class,rxn_Smiles\n1.2.1,CC>>CCO\n6.1.5,\"C>>O\"\n",
			want: []map[string]string{
				{"rxn_Class": "1.2.1", "rxn_Smiles": "CC>>CCO"},
				{"rxn_Class": "6.1.5", "rxn_Smiles": "C>>O"},
			},
		},
		{
			name:    "tab with positional columns",
			decoder: Delimited{Delimiter: "\t", Columns: []string{"reaction_smiles", "document_id", "paragraph_id"}},
			file:    "1976_Sep2016_USPTOgrants_smiles.rsmi",
			content: "CC>>CCO\tUS03930836\t0012\textra\n",
			want: []map[string]string{
				{"reaction_smiles": "CC>>CCO", "document_id": "US03930836", "paragraph_id": "0012", "column_3": "extra"},
			},
		},
		{
			name:    "whitespace",
			decoder: Delimited{Delimiter: DelimiterWhitespace, Columns: []string{"smiles", "zinc_id"}},
			file:    "Enamine_bb.smi",
			content: "C1=CC=CC=C1   ZINC000000001\n\nCCO\tZINC000000002\n",
			want: []map[string]string{
				{"smiles": "C1=CC=CC=C1", "zinc_id": "ZINC000000001"},
				{"smiles": "CCO", "zinc_id": "ZINC000000002"},
			},
		},
		{
			name:    "skip rows then header",
			decoder: Delimited{Delimiter: ",", Header: true, SkipRows: 1},
			file:    "schwaller.csv",
			content: "# generated\nreaction_smiles,source\nCC>>CCO,patent\n",
			want: []map[string]string{
				{"reaction_smiles": "CC>>CCO", "source": "patent"},
			},
		},
		{
			name:    "index column dropped",
			decoder: Delimited{Delimiter: ",", Header: true, IndexColumn: true},
			file:    "data_processed.csv",
			content: ",reactants>reagents>production,id\n0,CC>>CCO,a\n1,C>>O,b\n",
			want: []map[string]string{
				{"reactants>reagents>production": "CC>>CCO", "id": "a"},
				{"reactants>reagents>production": "C>>O", "id": "b"},
			},
		},
		{
			name:    "no names",
			decoder: Delimited{Delimiter: ","},
			file:    "plain.csv",
			content: "a,b\n",
			want: []map[string]string{
				{"column_0": "a", "column_1": "b"},
			},
		},
		{
			name:    "header overridden by columns",
			decoder: Delimited{Delimiter: "\t", Header: true, Columns: []string{"id", "reaction_smiles"}},
			file:    "rhea-reaction-smiles.tsv",
			content: "RHEA_ID\tSMILES\n10000\tC>>O\n",
			want: []map[string]string{
				{"id": "10000", "reaction_smiles": "C>>O"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeText(t, tt.file, tt.content)

			records, err := tt.decoder.Decode(context.Background(), path)
			require.NoError(t, err)
			require.Len(t, records, len(tt.want))
			for i, r := range records {
				assert.Equal(t, tt.file, r.File)
				assert.Equal(t, tt.want[i], values(t, r))
			}
		})
	}
}

func TestDelimited_HeaderOrderKept(t *testing.T) {
	path := writeText(t, "chemreps.txt", "chembl_id\tcanonical_smiles\tstandard_inchi\nCHEMBL1\tC\tInChI=1S/CH4/h1H4\n")

	records, err := Delimited{Delimiter: "\t", Header: true}.Decode(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"chembl_id", "canonical_smiles", "standard_inchi"}, records[0].Columns())
}

func TestDelimited_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chembl_34_chemreps.txt.gz")
	writeGzip(t, path, []byte("chembl_id\tcanonical_smiles\nCHEMBL1\tC\nCHEMBL2\tCC\n"))

	records, err := Delimited{Delimiter: "\t", Header: true}.Decode(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestDelimited_Errors(t *testing.T) {
	_, err := Delimited{}.Decode(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	path := writeText(t, "a.csv", "a;b\n")
	_, err = Delimited{Delimiter: ";"}.Decode(context.Background(), path)
	assert.Error(t, err)
}

func TestDelimited_PipeWithoutHeader(t *testing.T) {
	path := writeText(t, "rxn_set.txt", "amide coupling|[C:1](=O)O.[N:2]>>[C:1](=O)[N:2]|1\nester|[C:1](=O)O.[O:2]>>[C:1](=O)[O:2]|2\n")

	d := Delimited{Delimiter: "|", Columns: []string{"reaction_name", "reaction_smarts", "reaction_label"}}
	records, err := d.Decode(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, map[string]string{
		"reaction_name":   "amide coupling",
		"reaction_smarts": "[C:1](=O)O.[N:2]>>[C:1](=O)[N:2]",
		"reaction_label":  "1",
	}, values(t, records[0]))
}

func TestDelimited_DropEmptyRows(t *testing.T) {
	content := "ID\tName\tRetro-SMARTS\n1\tamide\t[C:1]>>[C:1]\n\t\t\n2\tester\t[O:1]>>[O:1]\n"
	path := writeText(t, "RetroTransformDB-v-1-0.txt", content)

	records, err := Delimited{Delimiter: "\t", Header: true, DropEmptyRows: true}.Decode(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = Delimited{Delimiter: "\t", Header: true}.Decode(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decode

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/pkg/types"
)

// Column names of pattern list records.
const (
	ColPatternName   = "compound_pattern_name"
	ColPatternSMARTS = "compound_pattern_smarts"
)

// PatternList decodes a C initializer list of named SMARTS patterns, the
// layout of the RDKit filter catalog sources:
//
//	const FilterData_t BRENK[] = {
//	    {"2-halo_pyridine", "[Cl,Br,I]c1ccccn1", 0, ""},
//	};
//
// Every entry whose first two items are strings becomes one record. Other
// entries are skipped; a file whose list cannot be tokenized yields no
// records.
type PatternList struct {
	Log *zap.Logger
}

// Decode implements Decoder.
func (d PatternList) Decode(_ context.Context, path string) ([]types.Record, error) {
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

	text := string(data)
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "};")
	if start < 0 || end <= start {
		log.Debug("skipping file without an initializer list")
		return nil, nil
	}
	entries, err := listEntries(text[start+1 : end])
	if err != nil {
		log.Debug("skipping malformed initializer list", zap.Error(err))
		return nil, nil
	}

	base := filepath.Base(path)
	var records []types.Record
	for i, e := range entries {
		if len(e) < 2 || !e[0].quoted || !e[1].quoted || e[1].value == "" {
			log.Debug("skipping entry", zap.Int("entry", i+1))
			continue
		}
		records = append(records, types.Record{
			File: base,
			Fields: []types.Field{
				types.Str(ColPatternName, e[0].value),
				types.Str(ColPatternSMARTS, e[1].value),
			},
		})
	}
	return records, nil
}

type listItem struct {
	value  string
	quoted bool
}

// listEntries splits the body of an initializer list into its brace
// delimited entries. Adjacent string literals are joined. Comments are
// dropped, as is anything nested deeper than one level.
func listEntries(body string) ([][]listItem, error) {
	var (
		entries [][]listItem
		entry   []listItem
		cur     *listItem
		depth   int
	)
	flush := func() {
		if cur != nil {
			entry = append(entry, *cur)
			cur = nil
		}
	}

	for i := 0; i < len(body); {
		switch c := body[i]; {
		case c == '"':
			s, n, err := unquoteC(body[i:])
			if err != nil {
				return nil, err
			}
			i += n
			if depth == 1 {
				if cur == nil {
					cur = &listItem{quoted: true}
				}
				cur.value += s
			}
			continue
		case strings.HasPrefix(body[i:], "//"):
			j := strings.IndexByte(body[i:], '\n')
			if j < 0 {
				return entries, nil
			}
			i += j
			continue
		case strings.HasPrefix(body[i:], "/*"):
			j := strings.Index(body[i+2:], "*/")
			if j < 0 {
				return nil, errors.New("unterminated comment")
			}
			i += j + 4
			continue
		case c == '{':
			depth++
			if depth == 1 {
				entry, cur = nil, nil
			}
		case c == '}':
			if depth == 1 {
				flush()
				entries = append(entries, entry)
			}
			if depth > 0 {
				depth--
			}
		case c == ',':
			if depth == 1 {
				flush()
			}
		case c == ' ', c == '\t', c == '\n', c == '\r':
		default:
			if depth == 1 {
				if cur == nil {
					cur = &listItem{}
				}
				if !cur.quoted {
					cur.value += string(c)
				}
			}
		}
		i++
	}
	if depth != 0 {
		return nil, errors.New("unbalanced braces")
	}
	return entries, nil
}

// unquoteC reads the C string literal at the start of s and returns its
// value and the number of bytes consumed.
func unquoteC(s string) (string, int, error) {
	var sb strings.Builder
	for i := 1; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			return sb.String(), i + 1, nil
		case '\n':
			return "", 0, errors.New("newline in string literal")
		case '\\':
			if i+1 == len(s) {
				break
			}
			i++
			switch e := s[i]; e {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(e)
			}
		default:
			sb.WriteByte(c)
		}
	}
	return "", 0, errors.New("unterminated string literal")
}

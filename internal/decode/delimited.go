// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decode

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/pkg/types"
)

// DelimiterWhitespace splits lines on runs of spaces and tabs.
const DelimiterWhitespace = "whitespace"

// maxLineBytes bounds one whitespace-delimited line.
const maxLineBytes = 64 << 20

// Delimited decodes comma, tab, pipe or whitespace separated text. Unlike the
// other decoders it returns read errors, which the extractor treats as
// fatal.
type Delimited struct {
	// Delimiter is ",", "\t", "|" or DelimiterWhitespace. Empty means ",".
	Delimiter string

	// Header marks the first row after SkipRows as column names.
	Header bool

	// SkipRows is the number of leading lines to discard.
	SkipRows int

	// Columns names fields by position and takes precedence over the header.
	// Fields without a name are called column_<i>, counting from zero.
	Columns []string

	// IndexColumn drops the first field of every row, including the header.
	IndexColumn bool

	// DropEmptyRows skips data rows whose fields are all empty.
	DropEmptyRows bool
}

// Decode implements Decoder.
func (d Delimited) Decode(_ context.Context, path string) ([]types.Record, error) {
	rc, err := openInput(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, 1<<20)
	for i := 0; i < d.SkipRows; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, fmt.Errorf("skipping rows of %s: %w", filepath.Base(path), err)
		}
	}

	next, err := d.rowReader(br)
	if err != nil {
		return nil, err
	}

	names := d.Columns
	base := filepath.Base(path)
	var records []types.Record
	first := true
	for line := 1; ; line++ {
		row, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s row %d: %w", base, line, err)
		}
		if d.IndexColumn && len(row) > 0 {
			row = row[1:]
		}
		if first && d.Header {
			first = false
			if len(d.Columns) == 0 {
				names = row
			}
			continue
		}
		first = false
		if d.DropEmptyRows && blank(row) {
			continue
		}

		fields := make([]types.Field, len(row))
		for i, v := range row {
			fields[i] = types.Str(columnName(names, i), v)
		}
		records = append(records, types.Record{File: base, Fields: fields})
	}
	return records, nil
}

func (d Delimited) rowReader(r io.Reader) (func() ([]string, error), error) {
	switch d.Delimiter {
	case DelimiterWhitespace:
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		return func() ([]string, error) {
			for sc.Scan() {
				if fields := strings.Fields(sc.Text()); len(fields) > 0 {
					return fields, nil
				}
			}
			if err := sc.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}, nil
	case "", ",", "\t", "|":
		cr := csv.NewReader(r)
		if d.Delimiter != "" {
			cr.Comma = rune(d.Delimiter[0])
		}
		cr.LazyQuotes = true
		cr.FieldsPerRecord = -1
		return cr.Read, nil
	}
	return nil, fmt.Errorf("unsupported delimiter %q", d.Delimiter)
}

func columnName(names []string, i int) string {
	if i < len(names) && names[i] != "" {
		return names[i]
	}
	return "column_" + strconv.Itoa(i)
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

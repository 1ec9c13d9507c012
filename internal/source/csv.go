package source

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// LoadCSV reads a delimited text file into a single-sheet Table. The sheet is
// named after the file base name without extension.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open csv")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comma = sniffDelimiter(path)

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.Wrapf(ErrEmptySheet, "load %q", filepath.Base(path))
		}
		return nil, errors.Wrap(err, "read header")
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, errors.Wrap(err, "read row")
		}
		row := make([]string, len(columns))
		for i := range row {
			if i < len(rec) {
				row[i] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
	}

	base := filepath.Base(path)
	tbl := NewTable(base)
	tbl.AddSheet(&Sheet{
		Name:    strings.TrimSuffix(base, filepath.Ext(base)),
		Columns: columns,
		Rows:    rows,
	})
	return tbl, nil
}

// sniffDelimiter picks a delimiter from the file extension. Tab for .tsv,
// comma otherwise.
func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}

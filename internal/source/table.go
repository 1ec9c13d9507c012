// Package source loads tabular files into an in-memory Table model.
//
// A Table holds one or more named Sheets in file order. Cells are kept as raw
// strings; typing and parsing happen downstream.
package source

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/elliotchance/orderedmap/v2"
)

// ErrUnsupportedFormat is returned by Load for file extensions it cannot read.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrEmptySheet is returned when a sheet has no header row.
var ErrEmptySheet = errors.New("sheet has no header row")

// Table is a loaded tabular file. Sheets preserve workbook order.
type Table struct {
	Name   string
	Sheets *orderedmap.OrderedMap[string, *Sheet]
}

// NewTable creates an empty Table with the given display name.
func NewTable(name string) *Table {
	return &Table{
		Name:   name,
		Sheets: orderedmap.NewOrderedMap[string, *Sheet](),
	}
}

// AddSheet registers a sheet, preserving insertion order.
func (t *Table) AddSheet(s *Sheet) {
	t.Sheets.Set(s.Name, s)
}

// Sheet returns the named sheet, or nil if absent.
func (t *Table) Sheet(name string) *Sheet {
	s, ok := t.Sheets.Get(name)
	if !ok {
		return nil
	}
	return s
}

// SheetNames returns sheet names in workbook order.
func (t *Table) SheetNames() []string {
	names := make([]string, 0, t.Sheets.Len())
	for el := t.Sheets.Front(); el != nil; el = el.Next() {
		names = append(names, el.Key)
	}
	return names
}

// Sheet is a single grid of cells with a header row.
type Sheet struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// RowCount returns the number of data rows (header excluded).
func (s *Sheet) RowCount() int { return len(s.Rows) }

// ColumnCount returns the number of header columns.
func (s *Sheet) ColumnCount() int { return len(s.Columns) }

// ColumnIndex returns the 0-based index of the named column, or -1.
// Matching is case-insensitive.
func (s *Sheet) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// Column returns all values of the named column in row order. Rows shorter
// than the header contribute an empty string.
func (s *Sheet) Column(name string) []string {
	idx := s.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]string, len(s.Rows))
	for i, row := range s.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out
}

// Load reads a tabular file, dispatching on extension. Supported: .csv, .tsv,
// .xlsx.
func Load(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return LoadCSV(path)
	case ".xlsx":
		return LoadXLSX(path)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "load %q", filepath.Base(path))
	}
}

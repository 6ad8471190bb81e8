// Package spreadsheet reads and writes the allocation and deletion sheets
// used for bulk inventory changes. CSV and XLSX are supported.
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Format is a spreadsheet file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Column headers as they appear in templates and exports.
const (
	ColumnSerialNumber = "Serial Number"
	ColumnBCID         = "BC ID"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
	ErrMissingColumn     = errors.New("missing required column")
	ErrEmptySheet        = errors.New("spreadsheet has no header row")
	ErrUnreadableSheet   = errors.New("spreadsheet could not be read")
)

// FormatFromFilename picks the format by file extension.
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// ParseFormat parses a format name such as "csv" or "xlsx".
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// ContentType returns the MIME type for downloads.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// AllocationRow is one data row of an allocation sheet. Row is the 1-based
// row number in the sheet, counting the header.
type AllocationRow struct {
	Row          int    `json:"row"`
	SerialNumber string `json:"serial_number"`
	BCID         string `json:"bc_id"`
}

// DeletionRow is one data row of a deletion sheet.
type DeletionRow struct {
	Row          int    `json:"row"`
	SerialNumber string `json:"serial_number"`
}

// ParseAllocations reads an allocation sheet. Blank rows are skipped.
func ParseAllocations(r io.Reader, format Format) ([]AllocationRow, error) {
	table, err := readTable(r, format, ColumnSerialNumber, ColumnBCID)
	if err != nil {
		return nil, err
	}

	rows := make([]AllocationRow, 0, len(table.rows))
	for _, row := range table.rows {
		rows = append(rows, AllocationRow{
			Row:          row.number,
			SerialNumber: row.cell(table.index[ColumnSerialNumber]),
			BCID:         row.cell(table.index[ColumnBCID]),
		})
	}

	return rows, nil
}

// ParseDeletions reads a deletion sheet. Blank rows are skipped.
func ParseDeletions(r io.Reader, format Format) ([]DeletionRow, error) {
	table, err := readTable(r, format, ColumnSerialNumber)
	if err != nil {
		return nil, err
	}

	rows := make([]DeletionRow, 0, len(table.rows))
	for _, row := range table.rows {
		rows = append(rows, DeletionRow{
			Row:          row.number,
			SerialNumber: row.cell(table.index[ColumnSerialNumber]),
		})
	}

	return rows, nil
}

// sheetRow is a row with its 1-based position in the file.
type sheetRow struct {
	number int
	cells  []string
}

func (r sheetRow) cell(i int) string {
	if i < 0 || i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

type table struct {
	index map[string]int
	rows  []sheetRow
}

func readTable(r io.Reader, format Format, required ...string) (*table, error) {
	var (
		raw []sheetRow
		err error
	)
	switch format {
	case FormatCSV:
		raw, err = readCSV(r)
	case FormatXLSX:
		raw, err = readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	// The header is the first non-blank row.
	headerAt := -1
	for i, row := range raw {
		if !isBlank(row.cells) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, ErrEmptySheet
	}

	index, err := matchHeader(raw[headerAt].cells, required)
	if err != nil {
		return nil, err
	}

	t := &table{index: index}
	for i := headerAt + 1; i < len(raw); i++ {
		if isBlank(raw[i].cells) {
			continue
		}
		t.rows = append(t.rows, raw[i])
	}

	return t, nil
}

// matchHeader maps each required column to its position. The first matching
// header cell wins.
func matchHeader(header []string, required []string) (map[string]int, error) {
	positions := make(map[string]int, len(header))
	for i, cell := range header {
		key := NormalizeHeader(cell)
		if _, seen := positions[key]; !seen && key != "" {
			positions[key] = i
		}
	}

	index := make(map[string]int, len(required))
	for _, col := range required {
		pos, ok := positions[NormalizeHeader(col)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, col)
		}
		index[col] = pos
	}

	return index, nil
}

// NormalizeHeader lowercases a header and drops spaces, underscores, hyphens
// and a leading byte order mark, so "Serial_Number" matches "serial number".
func NormalizeHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '\t', '_', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

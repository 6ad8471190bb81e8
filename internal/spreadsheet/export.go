package spreadsheet

import (
	"fmt"
	"io"
	"time"

	"github.com/tagdesk/tagdesk/internal/model"
)

// Kind identifies which sheet layout a template is for.
type Kind string

const (
	KindAllocation Kind = "allocation"
	KindDeletion   Kind = "deletion"
)

// ExportHeader is the column layout of an allocation export.
var ExportHeader = []string{
	ColumnSerialNumber,
	ColumnBCID,
	"User",
	"Status",
	"Allocated At",
	"Allocated By",
}

// WriteAllocations writes allocation records in the given format.
func WriteAllocations(w io.Writer, format Format, records []model.AllocationRecord) error {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.SerialNumber,
			rec.BCID,
			rec.UserName,
			string(rec.Status),
			rec.AllocatedAt.UTC().Format(time.RFC3339),
			rec.AllocatedBy,
		})
	}

	return write(w, format, "Allocations", ExportHeader, rows)
}

// WriteTemplate writes an empty sheet with the headers for kind, plus one
// example row.
func WriteTemplate(w io.Writer, format Format, kind Kind) error {
	switch kind {
	case KindAllocation:
		return write(w, format, "Allocation",
			[]string{ColumnSerialNumber, ColumnBCID},
			[][]string{{"608268-001-0000001", "BC0001"}},
		)
	case KindDeletion:
		return write(w, format, "Deletion",
			[]string{ColumnSerialNumber},
			[][]string{{"608268-001-0000001"}},
		)
	default:
		return fmt.Errorf("unknown template kind %q", kind)
	}
}

func write(w io.Writer, format Format, sheet string, header []string, rows [][]string) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, header, rows)
	case FormatXLSX:
		return writeXLSX(w, sheet, header, rows)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

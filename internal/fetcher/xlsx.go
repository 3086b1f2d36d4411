package fetcher

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions picks the worksheet holding the events. SheetName wins over
// SheetIndex when both are set.
type XLSXOptions struct {
	SheetIndex int
	SheetName  string
}

// StreamXLSX emits the non-blank rows of one worksheet. Row.Line is the
// 1-based sheet row, so skipped blank rows leave gaps.
func StreamXLSX(ctx context.Context, path string, opts XLSXOptions) (<-chan Row, <-chan error) {
	return stream(ctx, "xlsx", func(emit func(Row) bool) error {
		book, err := xlsx.OpenFile(path)
		if err != nil {
			return eris.Wrap(err, "xlsx: open file")
		}
		sheet, err := opts.sheet(book)
		if err != nil {
			return err
		}

		for i, row := range sheet.Rows {
			if row == nil {
				continue
			}
			cells := make([]string, len(row.Cells))
			blank := true
			for j, c := range row.Cells {
				cells[j] = c.String()
				if strings.TrimSpace(cells[j]) != "" {
					blank = false
				}
			}
			if blank {
				continue
			}
			if !emit(Row{Line: i + 1, Fields: cells}) {
				return nil
			}
		}
		return nil
	})
}

func (o XLSXOptions) sheet(book *xlsx.File) (*xlsx.Sheet, error) {
	if o.SheetName != "" {
		if s, ok := book.Sheet[o.SheetName]; ok {
			return s, nil
		}
		return nil, eris.Errorf("xlsx: sheet %q not found", o.SheetName)
	}
	if o.SheetIndex < 0 || o.SheetIndex >= len(book.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (%d sheets)", o.SheetIndex, len(book.Sheets))
	}
	return book.Sheets[o.SheetIndex], nil
}

// Package fetcher downloads dataset files over HTTP and FTP and streams rows
// out of CSV, XLSX and ZIP containers.
package fetcher

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// Row is one parsed record together with the 1-based line (or sheet row) it
// started on. The header is delivered as an ordinary row.
type Row struct {
	Line   int
	Fields []string
}

type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // 0 disables comments
	LazyQuotes bool
	TrimSpace  bool
}

func (o CSVOptions) reader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(skipBOM(r))
	if o.Delimiter != 0 {
		cr.Comma = o.Delimiter
	}
	cr.Comment = o.Comment
	cr.LazyQuotes = o.LazyQuotes
	cr.FieldsPerRecord = -1 // row width is checked by the caller
	return cr
}

// skipBOM drops a leading UTF-8 byte order mark, as written by Excel exports.
func skipBOM(r io.Reader) io.Reader {
	const bom = "\ufeff"
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(bom)); err == nil && string(head) == bom {
		_, _ = br.Discard(len(bom))
	}
	return br
}

// StreamCSV parses r record by record. Line numbers refer to the line a
// record starts on, so quoted multi-line fields do not shift later rows.
// Drain the row channel, then read the error channel.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan Row, <-chan error) {
	return stream(ctx, "csv", func(emit func(Row) bool) error {
		cr := opts.reader(r)
		for {
			rec, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return eris.Wrap(err, "csv: read row")
			}
			if opts.TrimSpace {
				for i := range rec {
					rec[i] = strings.TrimSpace(rec[i])
				}
			}
			line, _ := cr.FieldPos(0)
			if !emit(Row{Line: line, Fields: rec}) {
				return nil
			}
		}
	})
}

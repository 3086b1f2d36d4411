package source

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/conflict-dash/internal/fetcher"
)

// CSVFile streams a comma-separated file from disk.
type CSVFile struct {
	path string
	opts fetcher.CSVOptions
}

// NewCSVFile returns a Source over the CSV file at path.
func NewCSVFile(path string) *CSVFile {
	return &CSVFile{path: path, opts: fetcher.CSVOptions{LazyQuotes: true}}
}

func (c *CSVFile) Name() string { return c.path }

func (c *CSVFile) Close() error { return nil }

// Stream opens the file and parses it row by row. The file is closed when
// streaming stops.
func (c *CSVFile) Stream(ctx context.Context) (<-chan fetcher.Row, <-chan error) {
	f, err := os.Open(c.path)
	if err != nil {
		return failed(eris.Wrapf(err, "source: open %s", c.path))
	}

	rows, errs := fetcher.StreamCSV(ctx, f, c.opts)
	errOut := make(chan error, 1)
	go func() {
		defer close(errOut)
		defer f.Close() //nolint:errcheck
		for err := range errs {
			errOut <- err
		}
	}()
	return rows, errOut
}

// XLSXFile streams one worksheet of a workbook.
type XLSXFile struct {
	path string
	opts fetcher.XLSXOptions
}

// NewXLSX returns a Source over a worksheet. An empty sheet name selects the
// first sheet.
func NewXLSX(path, sheet string) *XLSXFile {
	return &XLSXFile{path: path, opts: fetcher.XLSXOptions{SheetName: sheet}}
}

func (x *XLSXFile) Name() string {
	if x.opts.SheetName != "" {
		return x.path + "#" + x.opts.SheetName
	}
	return x.path
}

func (x *XLSXFile) Close() error { return nil }

func (x *XLSXFile) Stream(ctx context.Context) (<-chan fetcher.Row, <-chan error) {
	return fetcher.StreamXLSX(ctx, x.path, x.opts)
}

// failed returns closed channels carrying a single error.
func failed(err error) (<-chan fetcher.Row, <-chan error) {
	rows := make(chan fetcher.Row)
	errs := make(chan error, 1)
	errs <- err
	close(rows)
	close(errs)
	return rows, errs
}

// CSVReader streams CSV from an already open reader, such as stdin.
type CSVReader struct {
	name string
	r    io.Reader
	opts fetcher.CSVOptions
}

// NewCSVReader returns a Source over r. The reader can be streamed once.
func NewCSVReader(name string, r io.Reader) *CSVReader {
	return &CSVReader{name: name, r: r, opts: fetcher.CSVOptions{LazyQuotes: true}}
}

func (c *CSVReader) Name() string { return c.name }

func (c *CSVReader) Close() error {
	if rc, ok := c.r.(io.Closer); ok {
		return rc.Close()
	}
	return nil
}

func (c *CSVReader) Stream(ctx context.Context) (<-chan fetcher.Row, <-chan error) {
	return fetcher.StreamCSV(ctx, c.r, c.opts)
}

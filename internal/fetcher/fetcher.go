package fetcher

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
)

// Fetcher downloads a remote dataset file.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// ConditionalFetcher can skip a download when the remote copy is unchanged.
type ConditionalFetcher interface {
	Fetcher

	// DownloadIfChanged fetches the URL only if the ETag has changed.
	// Returns (body, newETag, changed, error). If not changed, body is nil and changed is false.
	DownloadIfChanged(ctx context.Context, url string, etag string) (io.ReadCloser, string, bool, error)
}

// stream runs produce on its own goroutine and exposes the rows it emits.
// emit reports false once ctx is done; produce should then return. Both
// channels are closed when produce returns, and at most one error is sent.
func stream(ctx context.Context, format string, produce func(emit func(Row) bool) error) (<-chan Row, <-chan error) {
	rows := make(chan Row, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(rows)

		stopped := false
		emit := func(r Row) bool {
			if ctx.Err() == nil {
				select {
				case rows <- r:
					return true
				case <-ctx.Done():
				}
			}
			stopped = true
			return false
		}

		err := produce(emit)
		if err == nil && stopped {
			err = eris.Wrapf(ctx.Err(), "%s: context cancelled", format)
		}
		if err != nil {
			errs <- err
		}
	}()

	return rows, errs
}

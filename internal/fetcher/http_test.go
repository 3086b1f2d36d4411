package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestFetcher(retries int) *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:  "test-agent",
		Timeout:    5 * time.Second,
		MaxRetries: retries,
		RetryBase:  time.Millisecond,
	})
}

func serve(t *testing.T, h http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv.URL
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close() //nolint:errcheck
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestHTTPFetcher_Download(t *testing.T) {
	base := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Empty(t, r.Header.Get("If-None-Match"))
		_, _ = w.Write([]byte("id,year\n1,2020\n"))
	})

	body, err := newTestFetcher(3).Download(context.Background(), base+"/ged.csv")
	require.NoError(t, err)
	assert.Equal(t, "id,year\n1,2020\n", readAll(t, body))
}

func TestHTTPFetcher_DownloadToFile(t *testing.T) {
	base := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("1,2020,Africa"))
	})
	path := filepath.Join(t.TempDir(), "ged.csv")

	n, err := newTestFetcher(3).DownloadToFile(context.Background(), base+"/ged.csv", path)
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1,2020,Africa", string(data))
}

func TestHTTPFetcher_ClientErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	base := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := newTestFetcher(3).Download(context.Background(), base+"/missing.csv")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, int32(1), hits.Load())
}

func TestHTTPFetcher_ContextCancelled(t *testing.T) {
	base := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("late"))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(3).Download(ctx, base+"/ged.csv")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPFetcher_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	base := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("third time"))
	})

	body, err := newTestFetcher(3).Download(context.Background(), base+"/ged.csv")
	require.NoError(t, err)
	assert.Equal(t, "third time", readAll(t, body))
	assert.Equal(t, int32(3), hits.Load())
}

func TestHTTPFetcher_RetriesExhausted(t *testing.T) {
	var hits atomic.Int32
	base := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := newTestFetcher(2).Download(context.Background(), base+"/ged.csv")
	require.ErrorContains(t, err, "http 502")
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPFetcher_TooManyRequestsThrottlesHost(t *testing.T) {
	var hits atomic.Int32
	base := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	u, err := url.Parse(base)
	require.NoError(t, err)

	f := NewHTTPFetcher(HTTPOptions{
		MaxRetries: 3,
		RetryBase:  time.Millisecond,
		HostRates:  map[string]rate.Limit{u.Host: 100},
	})
	body, err := f.Download(context.Background(), base+"/ged.csv")
	require.NoError(t, err)
	assert.Equal(t, "ok", readAll(t, body))

	// 100 halves twice to its floor of 25, then eases to 30.
	assert.InDelta(t, 30.0, float64(f.pacerFor(u.Host).Rate()), 0.1)
}

func TestHTTPFetcher_DownloadIfChanged(t *testing.T) {
	base := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v2"`)
		_, _ = w.Write([]byte("fresh rows"))
	})
	f := newTestFetcher(3)

	body, etag, changed, err := f.DownloadIfChanged(context.Background(), base+"/ged.csv", `"v1"`)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Nil(t, body)
	assert.Equal(t, `"v1"`, etag)

	body, etag, changed, err = f.DownloadIfChanged(context.Background(), base+"/ged.csv", `"v0"`)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, `"v2"`, etag)
	assert.Equal(t, "fresh rows", readAll(t, body))
}

func TestSyncFile_ReusesUnchangedCopy(t *testing.T) {
	var downloads atomic.Int32
	base := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		downloads.Add(1)
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("id,year\n"))
	})
	f := newTestFetcher(3)
	path := filepath.Join(t.TempDir(), "ged.csv")

	changed, err := SyncFile(context.Background(), f, base+"/ged.csv", path)
	require.NoError(t, err)
	assert.True(t, changed)
	etag, err := os.ReadFile(path + ".etag")
	require.NoError(t, err)
	assert.Equal(t, `"v1"`, string(etag))

	changed, err = SyncFile(context.Background(), f, base+"/ged.csv", path)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, int32(1), downloads.Load())
}

func TestSyncFile_StaleSidecarWithoutFile(t *testing.T) {
	base := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("If-None-Match"))
		_, _ = w.Write([]byte("fresh"))
	})
	path := filepath.Join(t.TempDir(), "ged.csv")
	require.NoError(t, os.WriteFile(path+".etag", []byte(`"stale"`), 0o644))

	changed, err := SyncFile(context.Background(), newTestFetcher(3), base+"/ged.csv", path)
	require.NoError(t, err)
	assert.True(t, changed)
	_, err = os.Stat(path + ".etag")
	assert.True(t, os.IsNotExist(err))
}

func TestHTTPFetcher_PacerPerHost(t *testing.T) {
	f := newTestFetcher(3)
	assert.InDelta(t, 5.0, float64(f.pacerFor("raw.githubusercontent.com").Rate()), 0.01)
	assert.InDelta(t, float64(defaultHostRate), float64(f.pacerFor("example.com").Rate()), 0.01)
	assert.Same(t, f.pacerFor("example.com"), f.pacerFor("example.com"))
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, "conflict-dash/1.0", f.opts.UserAgent)
	assert.Equal(t, 60*time.Second, f.opts.Timeout)
	assert.Equal(t, 3, f.opts.MaxRetries)
	assert.Equal(t, time.Second, f.opts.RetryBase)
	assert.Contains(t, f.opts.HostRates, "ucdp.uu.se")
}

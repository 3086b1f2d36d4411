package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/conflict-dash/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher. Zero fields take defaults.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// RetryBase is the wait before the first retry.
	RetryBase time.Duration
	// HostRates sets the starting requests per second for a host.
	HostRates map[string]rate.Limit
}

// defaultHostRate applies to hosts without an explicit entry.
const defaultHostRate rate.Limit = 20

// DefaultHostRates returns the starting rates for hosts that publish UCDP
// extracts.
func DefaultHostRates() map[string]rate.Limit {
	return map[string]rate.Limit{
		"raw.githubusercontent.com": 5,
		"ucdp.uu.se":                2,
	}
}

// HTTPFetcher downloads over HTTP(S), pacing each host separately and
// retrying network errors, 429s and 5xx responses.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu     sync.Mutex
	pacers map[string]*Pacer
}

var _ ConditionalFetcher = (*HTTPFetcher)(nil)

func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBase == 0 {
		opts.RetryBase = time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "conflict-dash/1.0"
	}
	rates := DefaultHostRates()
	for host, r := range opts.HostRates {
		rates[host] = r
	}
	opts.HostRates = rates

	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: &http.Transport{MaxIdleConnsPerHost: 4, IdleConnTimeout: 90 * time.Second},
		},
		opts:   opts,
		pacers: make(map[string]*Pacer),
	}
}

func (f *HTTPFetcher) pacerFor(host string) *Pacer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pacers[host]; ok {
		return p
	}
	r, ok := f.opts.HostRates[host]
	if !ok {
		r = defaultHostRate
	}
	p := NewPacer(r, max(1, int(r)))
	f.pacers[host] = p
	return p
}

// StatusError is a response status the fetcher did not accept.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string { return fmt.Sprintf("http %d from %s", e.Code, e.URL) }

// get issues a GET, sending If-None-Match when etag is set. Only 2xx and 304
// responses are returned; the rest become errors.
func (f *HTTPFetcher) get(ctx context.Context, rawURL, etag string) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "http: parse url")
	}
	pacer := f.pacerFor(u.Host)

	policy := resilience.Policy{
		Attempts: f.opts.MaxRetries,
		Base:     f.opts.RetryBase,
		Cap:      30 * time.Second,
		Jitter:   0.25,
		OnRetry: func(n int, err error) {
			zap.L().Warn("http: retrying", zap.String("url", rawURL), zap.Int("retry", n), zap.Error(err))
		},
	}
	resp, err := resilience.Retry(ctx, policy, func(ctx context.Context) (*http.Response, error) {
		if err := pacer.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "http: pacer wait")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "http: build request")
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, resilience.Transient(eris.Wrapf(err, "http: get %s", rawURL))
		}
		switch code := resp.StatusCode; {
		case code == http.StatusTooManyRequests:
			_ = resp.Body.Close()
			pacer.throttle()
			return nil, resilience.Transient(&StatusError{Code: code, URL: rawURL})
		case code >= 500:
			_ = resp.Body.Close()
			return nil, resilience.Transient(&StatusError{Code: code, URL: rawURL})
		case code != http.StatusOK && code != http.StatusNotModified:
			_ = resp.Body.Close()
			return nil, &StatusError{Code: code, URL: rawURL}
		}
		pacer.ease()
		return resp, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "http: download")
	}
	return resp, nil
}

// Download fetches rawURL and returns the body, which the caller closes.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := f.get(ctx, rawURL, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotModified {
		_ = resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, URL: rawURL}
	}
	return resp.Body, nil
}

func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck
	return writeFile(path, body)
}

// DownloadIfChanged returns changed=false and no body when the server answers
// 304 for etag.
func (f *HTTPFetcher) DownloadIfChanged(ctx context.Context, rawURL string, etag string) (io.ReadCloser, string, bool, error) {
	resp, err := f.get(ctx, rawURL, etag)
	if err != nil {
		return nil, "", false, err
	}
	if resp.StatusCode == http.StatusNotModified {
		_ = resp.Body.Close()
		return nil, etag, false, nil
	}
	return resp.Body, resp.Header.Get("ETag"), true, nil
}

// SyncFile keeps path in step with rawURL. The last ETag is stored beside
// the file in path+".etag" and is only sent while path exists. Reports
// whether a fresh copy was written.
func SyncFile(ctx context.Context, f ConditionalFetcher, rawURL, path string) (bool, error) {
	etagPath := path + ".etag"
	var etag string
	if _, err := os.Stat(path); err == nil {
		if b, err := os.ReadFile(etagPath); err == nil {
			etag = strings.TrimSpace(string(b))
		}
	}

	body, newETag, changed, err := f.DownloadIfChanged(ctx, rawURL, etag)
	if err != nil {
		return false, err
	}
	log := zap.L().With(zap.String("url", rawURL), zap.String("path", path))
	if !changed {
		log.Info("remote dataset unchanged, reusing local copy")
		return false, nil
	}
	defer body.Close() //nolint:errcheck

	n, err := writeFile(path, body)
	if err != nil {
		return false, err
	}
	if newETag == "" {
		_ = os.Remove(etagPath)
	} else if err := os.WriteFile(etagPath, []byte(newETag), 0o644); err != nil {
		return true, eris.Wrap(err, "http: save etag")
	}
	log.Info("remote dataset downloaded", zap.Int64("bytes", n))
	return true, nil
}

func writeFile(path string, r io.Reader) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrapf(err, "create %s", path)
	}
	n, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, eris.Wrapf(err, "write %s", path)
}

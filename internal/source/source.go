// Package source resolves the configured dataset location into a row stream.
package source

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/conflict-dash/internal/config"
	"github.com/sells-group/conflict-dash/internal/fetcher"
	"github.com/sells-group/conflict-dash/internal/resilience"
	"github.com/sells-group/conflict-dash/internal/store"
)

// Source yields raw tabular rows. The first row is the header.
type Source interface {
	// Name identifies the source in logs and load errors.
	Name() string
	// Stream sends rows until the source is exhausted, an error occurs or ctx
	// is cancelled. Both channels are closed when streaming stops.
	Stream(ctx context.Context) (<-chan fetcher.Row, <-chan error)
	Close() error
}

// Format identifies a reader.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatXLSX     Format = "xlsx"
	FormatZIP      Format = "zip"
	FormatSQLite   Format = "sqlite"
	FormatPostgres Format = "postgres"
)

// Detect picks the reader for a location: the scheme first, then the file
// extension, defaulting to CSV.
func Detect(location string) Format {
	lower := strings.ToLower(location)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return FormatPostgres
	case strings.HasPrefix(lower, "sqlite://"):
		return FormatSQLite
	}

	p := lower
	if u, err := url.Parse(location); err == nil && u.Scheme != "" && u.Path != "" {
		p = strings.ToLower(u.Path)
	}
	switch path.Ext(p) {
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	case ".zip":
		return FormatZIP
	case ".xlsx":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

func isRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "ftp://")
}

// Open resolves cfg.Source into a Source. Remote files are downloaded into
// cfg.TempDir first; opening is retried on transient failures.
func Open(ctx context.Context, cfg config.DatasetConfig) (Source, error) {
	log := zap.L().With(zap.String("component", "source"))

	format := Format(cfg.Format)
	if format == "" {
		format = Detect(cfg.Source)
	}
	log.Info("opening dataset source",
		zap.String("source", cfg.Source),
		zap.String("format", string(format)),
	)

	return resilience.Retry(ctx, resilience.ForSource(cfg.Source, cfg.MaxRetries), func(ctx context.Context) (Source, error) {
		return open(ctx, cfg, format)
	})
}

func open(ctx context.Context, cfg config.DatasetConfig, format Format) (Source, error) {
	if cfg.Source == "-" {
		return NewCSVReader("stdin", os.Stdin), nil
	}
	if format == FormatPostgres {
		pg, err := store.NewPostgres(ctx, cfg.Source, cfg.Table)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}

	local := strings.TrimPrefix(cfg.Source, "sqlite://")
	if isRemote(cfg.Source) {
		p, err := download(ctx, cfg)
		if err != nil {
			return nil, err
		}
		local = p
	}

	if _, err := os.Stat(local); err != nil {
		return nil, eris.Wrapf(err, "source: %s file %s", format, local)
	}

	switch format {
	case FormatSQLite:
		st, err := store.NewSQLite(local, cfg.Table)
		if err != nil {
			return nil, err
		}
		return st, nil
	case FormatZIP:
		dir := filepath.Join(tempDir(cfg), "extracted")
		extracted, err := fetcher.ExtractDataFile(local, dir)
		if err != nil {
			return nil, err
		}
		if Detect(extracted) == FormatXLSX {
			return NewXLSX(extracted, cfg.Sheet), nil
		}
		return NewCSVFile(extracted), nil
	case FormatXLSX:
		return NewXLSX(local, cfg.Sheet), nil
	case FormatCSV:
		return NewCSVFile(local), nil
	default:
		return nil, eris.Errorf("source: unsupported format %q", format)
	}
}

func tempDir(cfg config.DatasetConfig) string {
	if cfg.TempDir != "" {
		return cfg.TempDir
	}
	return filepath.Join(os.TempDir(), "conflict-dash")
}

// download copies a remote file into the temp dir, reusing the local copy
// when the server reports it unchanged.
func download(ctx context.Context, cfg config.DatasetConfig) (string, error) {
	u, err := url.Parse(cfg.Source)
	if err != nil {
		return "", eris.Wrapf(err, "source: parse %s", cfg.Source)
	}
	dir := tempDir(cfg)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "source: create temp dir")
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "dataset"
	}
	dest := filepath.Join(dir, name)
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second

	if u.Scheme == "ftp" {
		f := fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: timeout})
		if _, err := f.DownloadToFile(ctx, cfg.Source, dest); err != nil {
			return "", err
		}
		return dest, nil
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.UserAgent,
		Timeout:    timeout,
		MaxRetries: cfg.MaxRetries,
	})
	if _, err := fetcher.SyncFile(ctx, f, cfg.Source, dest); err != nil {
		return "", err
	}
	return dest, nil
}

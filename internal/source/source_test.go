package source

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/conflict-dash/internal/config"
	"github.com/sells-group/conflict-dash/internal/fetcher"
	"github.com/sells-group/conflict-dash/internal/store"
)

const sampleCSV = "id,year,region\n1,2020,Africa\n2,2021,Asia\n"

func collect(t *testing.T, src Source) []fetcher.Row {
	t.Helper()
	rowCh, errCh := src.Stream(context.Background())
	var rows []fetcher.Row
	for r := range rowCh {
		rows = append(rows, r)
	}
	for err := range errCh {
		require.NoError(t, err)
	}
	return rows
}

func TestDetect(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"postgres://user@db:5432/ucdp", FormatPostgres},
		{"postgresql://db/ucdp", FormatPostgres},
		{"sqlite://snapshot.db", FormatSQLite},
		{"./data/ged.sqlite", FormatSQLite},
		{"/tmp/ged.db", FormatSQLite},
		{"ged241-csv.zip", FormatZIP},
		{"https://ucdp.uu.se/downloads/ged/ged241-csv.zip", FormatZIP},
		{"https://example.org/GEDEvent_v24_1.XLSX", FormatXLSX},
		{"https://example.org/export?format=csv", FormatCSV},
		{"GEDEvent_v24_1.csv", FormatCSV},
		{"-", FormatCSV},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.in))
		})
	}
}

func TestOpen_LocalCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ged.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	src, err := Open(context.Background(), config.DatasetConfig{Source: path})
	require.NoError(t, err)
	defer src.Close() //nolint:errcheck

	assert.Equal(t, path, src.Name())
	rows := collect(t, src)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"2", "2021", "Asia"}, rows[2].Fields)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(context.Background(), config.DatasetConfig{
		Source:     filepath.Join(t.TempDir(), "missing.csv"),
		MaxRetries: 1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.csv")
}

func TestOpen_ForcedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	src, err := Open(context.Background(), config.DatasetConfig{Source: path, Format: "csv"})
	require.NoError(t, err)
	assert.Len(t, collect(t, src), 3)
}

func TestOpen_ZIP(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "ged241-csv.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for name, body := range map[string]string{"ged241.csv": sampleCSV, "codebook.pdf": "%PDF"} {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	src, err := Open(context.Background(), config.DatasetConfig{Source: zipPath, TempDir: filepath.Join(dir, "tmp")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tmp", "extracted", "ged241.csv"), src.Name())
	assert.Len(t, collect(t, src), 3)
}

func TestOpen_HTTPDownloadsOnce(t *testing.T) {
	var downloads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"ged-v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		downloads.Add(1)
		w.Header().Set("ETag", `"ged-v1"`)
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	cfg := config.DatasetConfig{
		Source:      srv.URL + "/GEDEvent_v24_1.csv",
		TempDir:     t.TempDir(),
		TimeoutSecs: 5,
		MaxRetries:  1,
	}

	for range 2 {
		src, err := Open(context.Background(), cfg)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(cfg.TempDir, "GEDEvent_v24_1.csv"), src.Name())
		assert.Len(t, collect(t, src), 3)
	}
	assert.Equal(t, int32(1), downloads.Load())
}

func TestOpen_SQLiteSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.db")
	st, err := store.NewSQLite(path, "events")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Close())

	src, err := Open(context.Background(), config.DatasetConfig{Source: "sqlite://" + path, Table: "events"})
	require.NoError(t, err)
	defer src.Close() //nolint:errcheck

	rows := collect(t, src)
	require.Len(t, rows, 1)
	assert.Equal(t, store.Columns, rows[0].Fields)
}

func TestCSVReader(t *testing.T) {
	src := NewCSVReader("inline", strings.NewReader(sampleCSV))
	assert.Equal(t, "inline", src.Name())
	assert.Len(t, collect(t, src), 3)
	assert.NoError(t, src.Close())
}

func TestCSVFile_StreamMissing(t *testing.T) {
	src := NewCSVFile(filepath.Join(t.TempDir(), "gone.csv"))
	rowCh, errCh := src.Stream(context.Background())
	for range rowCh {
	}
	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source: open")
}

func TestXLSXName(t *testing.T) {
	assert.Equal(t, "ged.xlsx", NewXLSX("ged.xlsx", "").Name())
	assert.Equal(t, "ged.xlsx#Events", NewXLSX("ged.xlsx", "Events").Name())
}

// Compile-time checks that the store readers satisfy Source.
var (
	_ Source = (*store.SQLiteStore)(nil)
	_ Source = (*store.PostgresStore)(nil)
)

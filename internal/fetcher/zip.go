package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// isDataEntry reports whether a zip entry holds event rows. Codebooks,
// READMEs and macOS resource forks are skipped.
func isDataEntry(f *zip.File) bool {
	if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") {
		return false
	}
	base := filepath.Base(f.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// ExtractDataFile unpacks the one CSV or XLSX entry of a dataset archive into
// destDir and returns its path. Archives with zero or several candidates are
// rejected, naming what was found.
func ExtractDataFile(zipPath, destDir string) (string, error) {
	archive, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrapf(err, "zip: open %s", zipPath)
	}
	defer archive.Close() //nolint:errcheck

	var data []*zip.File
	var names []string
	for _, f := range archive.File {
		if isDataEntry(f) {
			data = append(data, f)
			names = append(names, f.Name)
		}
	}
	if len(data) != 1 {
		return "", eris.Errorf("zip: %s has %d data entries %v, want exactly one csv or xlsx",
			filepath.Base(zipPath), len(data), names)
	}
	return unpack(data[0], destDir)
}

func unpack(f *zip.File, destDir string) (string, error) {
	root := filepath.Clean(destDir)
	target := filepath.Join(root, f.Name)
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: entry %q escapes the extraction directory (zip slip)", f.Name)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: mkdir")
	}

	src, err := f.Open()
	if err != nil {
		return "", eris.Wrapf(err, "zip: open entry %s", f.Name)
	}
	defer src.Close() //nolint:errcheck

	if _, err := writeFile(target, src); err != nil {
		return "", eris.Wrapf(err, "zip: write %s", target)
	}
	return target, nil
}

package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// datasetExts lists the boundary formats that can be read, in preference order.
var datasetExts = []string{".shp", ".geojson", ".json"}

// ExtractZIP extracts all files from a ZIP archive to the destination directory.
// Returns the list of extracted file paths.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var extracted []string
	for _, f := range r.File {
		path, err := extractZIPEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		if path != "" {
			extracted = append(extracted, path)
		}
	}

	return extracted, nil
}

// ExtractDataset unpacks a zipped boundary distribution and returns the
// path of its dataset file. A shapefile is preferred over GeoJSON; its
// .dbf and .shx siblings are extracted alongside it. nameHint, when set,
// picks the entry whose base name contains it (case-insensitive).
func ExtractDataset(zipPath, destDir, nameHint string) (string, error) {
	paths, err := ExtractZIP(zipPath, destDir)
	if err != nil {
		return "", err
	}
	if p, ok := pickDataset(paths, nameHint); ok {
		return p, nil
	}
	return "", eris.Errorf("zip: no shapefile or geojson in %s", filepath.Base(zipPath))
}

func pickDataset(paths []string, nameHint string) (string, bool) {
	hint := strings.ToLower(nameHint)
	for _, ext := range datasetExts {
		var first string
		for _, p := range paths {
			if !strings.EqualFold(filepath.Ext(p), ext) {
				continue
			}
			if hint != "" && strings.Contains(strings.ToLower(filepath.Base(p)), hint) {
				return p, true
			}
			if first == "" {
				first = p
			}
		}
		if first != "" {
			return first, true
		}
	}
	return "", false
}

// extractZIPEntry extracts a single zip.File to the destination directory.
// Returns the extracted file path, or empty string for directories.
func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	// Sanitize against zip slip
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return "", eris.Wrap(err, "zip: create directory")
		}
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrap(err, "zip: write file")
	}

	return destPath, nil
}

package loader

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// Collections are the base names of the four catalog files
var Collections = []string{"subjects", "professors", "sections", "meetings"}

// IsCatalogFile reports whether path names one of the catalog files in a
// supported format
func IsCatalogFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".json" && ext != ".csv" {
		return false
	}
	base := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	for _, c := range Collections {
		if base == c {
			return true
		}
	}
	return false
}

// FindCatalogFiles walks dir and returns every catalog file in it, skipping
// hidden directories. Nested directories are included so callers can warn
// about files that will not be read.
func FindCatalogFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if IsCatalogFile(path) {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

package utils

import (
	"path/filepath"
	"strings"
)

// OutputPath maps a source file to the file its compiled form is written to:
// the extension is replaced with ext and the result is placed in outDir, or
// next to the source when outDir is empty. The returned path is absolute.
func OutputPath(src, outDir, ext string) (string, error) {
	fullPath, err := filepath.Abs(src)
	if err != nil {
		return "", err
	}
	name := strings.TrimSuffix(filepath.Base(fullPath), filepath.Ext(fullPath)) + ext
	if outDir == "" {
		return filepath.Join(filepath.Dir(fullPath), name), nil
	}
	dir, err := filepath.Abs(outDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

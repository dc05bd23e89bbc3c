// Package scanner enumerates candidate files and runs each one through extraction,
// matching, reporting and upload.
package scanner

import (
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
)

// Walk lazily yields every regular file under root whose name ends with one of extensions,
// compared case-insensitively. Directories that cannot be read yield an error element and
// the walk carries on with the rest of the tree. Stopping the iteration stops the walk.
func Walk(root string, extensions []string) iter.Seq2[string, error] {
	suffixes := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		if ext = strings.ToLower(strings.TrimSpace(ext)); ext != "" {
			suffixes = append(suffixes, ext)
		}
	}
	return func(yield func(string, error) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if !yield(path, err) {
					return filepath.SkipAll
				}
				return nil
			}
			if d.IsDir() || !hasSuffix(d.Name(), suffixes) {
				return nil
			}
			// Resolve symlinks so only regular files are yielded
			info, statErr := os.Stat(path)
			if statErr != nil || !info.Mode().IsRegular() {
				return nil
			}
			if !yield(path, nil) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

func hasSuffix(name string, suffixes []string) bool {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

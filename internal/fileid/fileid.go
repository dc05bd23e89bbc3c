// Package fileid provides a deterministic ID for a scanned file path.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "file:"

// ForPath returns a stable ID for path. Relative paths are resolved against the working
// directory first, so the same file always maps to the same ID across runs.
func ForPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	hash := sha256.Sum256([]byte(filepath.Clean(path)))
	return prefix + hex.EncodeToString(hash[:12])
}

package extract

import (
	"fmt"
	"os"
)

// extractPlain returns the file content verbatim. No decoding or normalisation is applied.
func extractPlain(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(content), nil
}

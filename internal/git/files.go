package git

import (
	"os"
	"path/filepath"
	"strings"
)

// fileExists reports whether rel names an existing file below root. Paths that
// escape root are treated as missing.
func fileExists(root, rel string) bool {
	rel = strings.TrimSpace(rel)
	if root == "" || rel == "" || filepath.IsAbs(rel) {
		return false
	}

	cleaned := filepath.Clean(rel)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return false
	}

	info, err := os.Stat(filepath.Join(root, cleaned))
	if err != nil {
		return false
	}
	return !info.IsDir()
}

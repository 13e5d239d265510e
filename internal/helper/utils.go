package helper

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeNameRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// GenerateUUID creates a random unique UUID string
func GenerateUUID() string {
	return uuid.NewString()
}

// CreateFolder creates path and its parents if needed.
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	return nil
}

// SafeFilename reduces an uploaded file name to a single path element.
func SafeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	base = unsafeNameRe.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "upload"
	}
	return base
}

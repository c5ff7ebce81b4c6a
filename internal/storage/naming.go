package storage

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const maxOriginalNameLength = 100

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename reduces a client-supplied name to a safe base name.
func SanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	base = unsafeNameChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "video"
	}

	if len(base) > maxOriginalNameLength {
		ext := filepath.Ext(base)
		if len(ext) > 10 {
			ext = ""
		}
		base = base[:maxOriginalNameLength-len(ext)] + ext
	}
	return base
}

// StoredName is <unix-millis>-<id>-<sanitized original>.
func StoredName(now time.Time, id, original string) string {
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), id, SanitizeFilename(original))
}

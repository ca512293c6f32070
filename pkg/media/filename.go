package media

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxFilenameLength bounds sanitized names to stay well inside
	// common filesystem limits
	MaxFilenameLength = 200

	// PlaceholderFilename replaces names that sanitize to nothing
	PlaceholderFilename = "unnamed"
)

var (
	invalidChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	squeeze      = regexp.MustCompile(`[\s_]+`)
)

// SanitizeFilename makes a string safe to use as a file or directory name.
// Reserved characters become underscores, control characters are stripped,
// runs of whitespace and underscores collapse to one underscore, and
// leading/trailing dots and spaces are trimmed.
func SanitizeFilename(name string) string {
	s := invalidChars.ReplaceAllString(name, "_")

	var b strings.Builder
	for _, r := range s {
		if r >= 32 {
			b.WriteRune(r)
		}
	}
	s = b.String()

	s = squeeze.ReplaceAllString(s, "_")
	s = strings.Trim(s, ". ")

	if len(s) > MaxFilenameLength {
		cut := MaxFilenameLength
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = strings.TrimRight(s[:cut], ". ")
	}

	if s == "" {
		return PlaceholderFilename
	}
	return s
}

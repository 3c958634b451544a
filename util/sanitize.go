package util

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

var unsafeNameChars = regexp.MustCompile(`[^\p{L}\p{M}\p{N}._-]+`)

// SanitizeString trims whitespace and removes control characters from s.
func SanitizeString(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// SanitizeEnvValue removes surrounding quotes and whitespace from an
// environment variable value.
func SanitizeEnvValue(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = s[1 : len(s)-1]
		}
	}
	return strings.TrimSpace(s)
}

// SafeStem returns the client file name without directories or extension,
// reduced to letters, digits, dot, dash and underscore. It falls back to
// fallback when nothing usable remains.
func SafeStem(name, fallback string) string {
	base := filepath.Base(strings.ReplaceAll(SanitizeString(name), "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = unsafeNameChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._-")
	if base == "" {
		return fallback
	}
	return base
}

package stringutils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeText drops NUL bytes, control characters and invalid UTF-8 from user text.
// Tabs and line breaks are kept; postgres rejects NUL inside text columns.
func SanitizeText(s string) string {
	if utf8.ValidString(s) && !hasControlChars(s, true) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if dropRune(r, true) {
			return -1
		}
		return r
	}, s)
}

// SanitizeFileName is SanitizeText for single-line names; every control character goes.
func SanitizeFileName(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if dropRune(r, false) {
			return -1
		}
		return r
	}, s))
}

func dropRune(r rune, keepLineBreaks bool) bool {
	switch {
	case r == utf8.RuneError:
		return true
	case keepLineBreaks && (r == '\t' || r == '\n' || r == '\r'):
		return false
	case unicode.IsControl(r):
		return true
	default:
		return !unicode.IsPrint(r) && !unicode.IsSpace(r)
	}
}

func hasControlChars(s string, keepLineBreaks bool) bool {
	for _, r := range s {
		if dropRune(r, keepLineBreaks) {
			return true
		}
	}
	return false
}

// Package storage resolves on-disk folders for document store datasources.
package storage

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxFilenameBytes = 255

// ConvertToValidFilename turns an arbitrary store name into a single safe path segment.
// Illegal and control characters are dropped, trailing dots and spaces trimmed,
// reserved names rejected, and the result capped at 255 bytes. An empty result becomes "_".
func ConvertToValidFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r == utf8.RuneError || unicode.IsControl(r) || strings.ContainsRune(`/?<>\:*|"`, r) {
			continue
		}
		b.WriteRune(r)
	}
	out := strings.TrimRight(b.String(), ". ")

	if len(out) > maxFilenameBytes {
		cut := maxFilenameBytes
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = strings.TrimRight(out[:cut], ". ")
	}
	if isReserved(out) {
		return "_"
	}
	return out
}

func isReserved(s string) bool {
	if s == "" || s == "." || s == ".." {
		return true
	}
	base := strings.ToUpper(s)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	switch base {
	case "CON", "PRN", "AUX", "NUL",
		"COM1", "COM2", "COM3", "COM4", "COM5", "COM6", "COM7", "COM8", "COM9",
		"LPT1", "LPT2", "LPT3", "LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9":
		return true
	}
	return false
}

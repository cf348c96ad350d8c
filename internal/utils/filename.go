// Package utils holds small string helpers shared across packages.
package utils

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxFilenameLength leaves room for an extension within common 255 byte limits.
const MaxFilenameLength = 200

var (
	// Characters invalid in filenames on most filesystems
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x08\x0b\x0c\x0e-\x1f]`)
	whitespaceChars      = regexp.MustCompile(`[\r\n\t]`)
	multipleSpaces       = regexp.MustCompile(`\s+`)
)

// SanitizeFilename turns a backend file name into a safe local file name.
// fallback is used when nothing printable is left.
func SanitizeFilename(name, fallback string) string {
	name = invalidFilenameChars.ReplaceAllString(name, "")
	name = whitespaceChars.ReplaceAllString(name, " ")
	name = multipleSpaces.ReplaceAllString(name, " ")
	name = strings.Trim(name, " .")

	if len(name) > MaxFilenameLength {
		cut := MaxFilenameLength
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = strings.TrimSpace(name[:cut])
	}

	if name == "" {
		return fallback
	}
	return name
}

// WithExtension appends ext unless name already ends with it.
func WithExtension(name, ext string) string {
	if ext == "" || strings.EqualFold(filepath.Ext(name), ext) {
		return name
	}
	return name + ext
}

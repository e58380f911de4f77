package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

var blankRunPattern = regexp.MustCompile(`\n{3,}`)

// maxFileNameBytes keeps names under the common 255-byte filesystem limit.
const maxFileNameBytes = 240

// SanitizeFileName makes a rendered archive name safe to create on disk.
// The name is NFC-normalized, control characters are dropped, slashes,
// backslashes, colons, and asterisks become dashes, and other reserved
// characters are removed. Overlong names are truncated on a rune boundary
// with the extension preserved.
func SanitizeFileName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(fileNameReplacer.Replace(name))
	name = strings.TrimLeft(name, ".")
	return truncateName(name, maxFileNameBytes)
}

// CollapseBlankLines trims text and collapses every run of three or more
// newlines into exactly two.
func CollapseBlankLines(text string) string {
	return blankRunPattern.ReplaceAllString(strings.TrimSpace(text), "\n\n")
}

func truncateName(name string, limit int) string {
	if len(name) <= limit {
		return name
	}
	ext := ""
	if i := strings.LastIndexByte(name, '.'); i > 0 && len(name)-i <= 16 {
		ext = name[i:]
		name = name[:i]
	}
	budget := limit - len(ext)
	cut := 0
	for i := range name {
		if i > budget {
			break
		}
		cut = i
	}
	return strings.TrimSpace(name[:cut]) + ext
}

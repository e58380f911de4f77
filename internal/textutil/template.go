package textutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"fanboxed/internal/services"
)

// Fields holds the named values a template may reference. Values are
// rendered with fmt.Sprint.
type Fields map[string]any

// maxPadWidth bounds {name:0N} so a typo cannot request a huge allocation.
const maxPadWidth = 255

var (
	placeholderPattern = regexp.MustCompile(`\{([^:}]+)(?::([^}]+))?\}`)
	padSpecPattern     = regexp.MustCompile(`^0\d+$`)
)

// Format substitutes every {name} and {name:0N} placeholder in template.
// {name:0N} left-pads the rendered value with zeros to width N; values
// already at least N wide are left untouched. An unknown name, a pad spec
// other than 0 followed by digits, or a width above 255 yields a
// *services.FormatError.
func Format(template string, fields Fields) (string, error) {
	matches := placeholderPattern.FindAllStringSubmatchIndex(template, -1)
	if len(matches) == 0 {
		return template, nil
	}

	var b strings.Builder
	b.Grow(len(template) + 16)
	last := 0
	for _, m := range matches {
		b.WriteString(template[last:m[0]])
		last = m[1]

		name := template[m[2]:m[3]]
		value, ok := fields[name]
		if !ok {
			return "", &services.FormatError{Template: template, Name: name}
		}
		rendered := fmt.Sprint(value)

		if m[4] >= 0 {
			spec := template[m[4]:m[5]]
			if !padSpecPattern.MatchString(spec) {
				return "", &services.FormatError{Template: template, Spec: spec}
			}
			width, err := strconv.Atoi(spec)
			if err != nil || width > maxPadWidth {
				return "", &services.FormatError{Template: template, Spec: spec}
			}
			rendered = padLeft(rendered, width, '0')
		}
		b.WriteString(rendered)
	}
	b.WriteString(template[last:])
	return b.String(), nil
}

// Placeholders lists the field names referenced by template in order of appearance.
func Placeholders(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

func padLeft(s string, width int, pad rune) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return strings.Repeat(string(pad), width-n) + s
}

package textutil

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// DefaultExtension is used when an asset URL carries no recognizable extension.
const DefaultExtension = "bin"

var extensionPattern = regexp.MustCompile(`\.(\w+)$`)

// Extension infers the file extension of an asset URL from the last path
// segment, ignoring any query string or fragment.
func Extension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	m := extensionPattern.FindStringSubmatch(path.Base(p))
	if m == nil {
		return DefaultExtension
	}
	return strings.ToLower(m[1])
}

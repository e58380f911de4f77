package fanbox

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"fanboxed/internal/textutil"
)

// PostID identifies a post on the content service. It is always a string of
// decimal digits.
type PostID string

func (id PostID) String() string { return string(id) }

var (
	digitsPattern  = regexp.MustCompile(`^\d+$`)
	postURLPattern = regexp.MustCompile(`/posts/(\d+)`)
)

// ParsePostID accepts a bare numeric id or any post URL containing
// /posts/<digits>.
func ParsePostID(value string) (PostID, error) {
	value = strings.TrimSpace(value)
	if digitsPattern.MatchString(value) {
		return PostID(value), nil
	}
	if m := postURLPattern.FindStringSubmatch(value); m != nil {
		return PostID(m[1]), nil
	}
	return "", fmt.Errorf("not a post id or post URL: %q", value)
}

// PostDescriptor is the normalized, immutable view of a post.
type PostDescriptor struct {
	ID     PostID
	Author string
	Title  string

	// Published is the publish instant in the configured zone. The numeric
	// fields below are derived from it once at construction.
	Published time.Time
	Year      int
	Month     int
	Day       int
	Hour      int
	Minute    int

	// Cover is empty when the post has no cover image.
	Cover       string
	Description string
	Assets      []string
}

func newDescriptor(id PostID, author, title string, published time.Time, cover, description string, assets []string) *PostDescriptor {
	return &PostDescriptor{
		ID:          id,
		Author:      author,
		Title:       title,
		Published:   published,
		Year:        published.Year(),
		Month:       int(published.Month()),
		Day:         published.Day(),
		Hour:        published.Hour(),
		Minute:      published.Minute(),
		Cover:       cover,
		Description: description,
		Assets:      assets,
	}
}

// HasCover reports whether the post carries a cover image.
func (d *PostDescriptor) HasCover() bool {
	return d != nil && d.Cover != ""
}

// TotalFetches is the number of network fetches needed to archive the post:
// one per asset plus one for the cover.
func (d *PostDescriptor) TotalFetches() int {
	if d == nil {
		return 0
	}
	total := len(d.Assets)
	if d.HasCover() {
		total++
	}
	return total
}

// Fields exposes the descriptor to naming templates.
func (d *PostDescriptor) Fields() textutil.Fields {
	return textutil.Fields{
		"id":     string(d.ID),
		"author": d.Author,
		"title":  d.Title,
		"year":   d.Year,
		"month":  d.Month,
		"day":    d.Day,
		"hour":   d.Hour,
		"minute": d.Minute,
	}
}

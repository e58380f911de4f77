package textutil_test

import (
	"strings"
	"testing"

	"fanboxed/internal/textutil"
)

func TestExtension(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://downloads.fanbox.cc/images/post/1/abc.jpeg", "jpeg"},
		{"https://downloads.fanbox.cc/images/post/1/abc.PNG?w=1", "png"},
		{"https://downloads.fanbox.cc/files/post/1/archive.tar.gz#top", "gz"},
		{"https://downloads.fanbox.cc/files/post/1/noext", "bin"},
		{"cover.webp", "webp"},
	}
	for _, tt := range tests {
		if got := textutil.Extension(tt.url); got != tt.want {
			t.Errorf("Extension(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"[2024-01-02] [A/B] Title: Part 1?.zip", "[2024-01-02] [A-B] Title- Part 1.zip"},
		{"  ..hidden.zip ", "hidden.zip"},
		{"tab\there.zip", "tabhere.zip"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := textutil.SanitizeFileName(tt.in); got != tt.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFileNameNormalizesAndTruncates(t *testing.T) {
	decomposed := "Cafe\u0301.zip"
	if got := textutil.SanitizeFileName(decomposed); got != "Caf\u00e9.zip" {
		t.Fatalf("expected NFC composition, got %q", got)
	}

	long := strings.Repeat("あ", 200) + ".zip"
	got := textutil.SanitizeFileName(long)
	if len(got) > 240 {
		t.Fatalf("expected truncation to 240 bytes, got %d", len(got))
	}
	if !strings.HasSuffix(got, ".zip") {
		t.Fatalf("expected extension preserved, got %q", got)
	}
}

func TestCollapseBlankLines(t *testing.T) {
	in := "\nH\n\n\n\n\nP\n\nQ\n"
	if got := textutil.CollapseBlankLines(in); got != "H\n\nP\n\nQ" {
		t.Fatalf("unexpected collapse result %q", got)
	}
}

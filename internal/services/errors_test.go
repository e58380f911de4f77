package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"fanboxed/internal/services"
)

func TestTypedErrorsMatchMarkers(t *testing.T) {
	cause := errors.New("connection reset")
	tests := []struct {
		name   string
		err    error
		marker error
		kind   string
	}{
		{"transport", &services.TransportError{URL: "https://x/a.png", Err: cause}, services.ErrTransport, "transport"},
		{"api", &services.APIError{Message: "failed to call an API: not found"}, services.ErrAPI, "api"},
		{"restricted", &services.RestrictedError{PostID: "1"}, services.ErrRestricted, "restricted"},
		{"format", &services.FormatError{Name: "missing"}, services.ErrFormat, "format"},
		{"packaging", &services.PackagingError{Err: cause}, services.ErrPackaging, "packaging"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("task: %w", tt.err)
			if !errors.Is(wrapped, tt.marker) {
				t.Fatalf("expected %v to match marker %v", wrapped, tt.marker)
			}
			if got := services.Kind(wrapped); got != tt.kind {
				t.Fatalf("Kind() = %q, want %q", got, tt.kind)
			}
			if services.Hint(wrapped) == "" {
				t.Fatal("expected non-empty hint")
			}
		})
	}
}

func TestPackagingErrorKeepsTransportCause(t *testing.T) {
	transport := &services.TransportError{URL: "https://x/a.png", Message: "failed to download 'https://x/a.png'"}
	err := &services.PackagingError{PostID: "9", Err: transport}

	if services.Kind(err) != "packaging" {
		t.Fatalf("expected packaging classification, got %q", services.Kind(err))
	}
	var te *services.TransportError
	if !errors.As(err, &te) || te.URL != "https://x/a.png" {
		t.Fatalf("expected transport cause to be reachable, got %v", err)
	}
	if !strings.Contains(err.Error(), "a.png") {
		t.Fatalf("expected url in message, got %q", err.Error())
	}
}

func TestFormatErrorMessages(t *testing.T) {
	if msg := (&services.FormatError{Name: "missing"}).Error(); !strings.Contains(msg, `"missing"`) {
		t.Fatalf("unexpected message %q", msg)
	}
	if msg := (&services.FormatError{Spec: "year:x4"}).Error(); !strings.Contains(msg, "invalid format") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrConfiguration, "config", "invalid template", base)
	if !errors.Is(err, services.ErrConfiguration) || !errors.Is(err, base) {
		t.Fatalf("expected marker and cause to be retained, got %v", err)
	}
	for _, fragment := range []string{"config", "invalid template", "boom"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %q", fragment, err.Error())
		}
	}
	if services.Kind(nil) != "" {
		t.Fatal("expected empty kind for nil error")
	}
}

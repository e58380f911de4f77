package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"fanboxed/internal/testsupport"
)

func TestConfigInitCreatesSampleOnce(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, _, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+target)
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample not written: %v", err)
	}

	_, _, err = runCLI(t, "config", "init", "--path", target)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected already exists error, got %v", err)
	}

	if _, _, err := runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateReportsPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, "config", "validate", "-c", path)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+path)
	requireContains(t, out, "Configuration valid")
}

func TestConfigValidateRejectsBadTemplate(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFilenameTemplate("{nope}.zip"))
	path := writeTestConfig(t, cfg)

	_, _, err := runCLI(t, "config", "validate", "-c", path)
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken("s3cret"))
	path := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, "config", "show", "-c", path)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "<redacted>")
	if strings.Contains(out, "s3cret") || strings.Contains(out, "test-session") {
		t.Fatalf("secrets leaked:\n%s", out)
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, "test-notify", "-c", path)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications are not configured")
}

func TestTestNotifySendsToTopic(t *testing.T) {
	var sent atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Title") != "" {
			sent.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(server.URL+"/fanboxed"))
	path := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, "test-notify", "-c", path)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if got := sent.Load(); got != 1 {
		t.Fatalf("expected one notification, got %d", got)
	}
}

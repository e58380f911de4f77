package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fanboxed/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("FANBOX_SESSID", "")
	path := filepath.Join(t.TempDir(), "missing.toml")

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected missing config to be reported")
	}
	if resolved != path {
		t.Fatalf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Archive.PageTemplate != "page_{index:03}.{ext}" {
		t.Fatalf("unexpected page template %q", cfg.Archive.PageTemplate)
	}
	if cfg.API.Bind != "127.0.0.1:7490" {
		t.Fatalf("unexpected bind %q", cfg.API.Bind)
	}
	if !filepath.IsAbs(cfg.Paths.OutputDir) || !filepath.IsAbs(cfg.Paths.StateDir) {
		t.Fatalf("expected expanded paths, got %q %q", cfg.Paths.OutputDir, cfg.Paths.StateDir)
	}
	if cfg.FetchTimeout().Seconds() != 60 {
		t.Fatalf("unexpected fetch timeout %s", cfg.FetchTimeout())
	}
}

func TestLoadAppliesFileAndEnvironment(t *testing.T) {
	t.Setenv("FANBOX_SESSID", " from-env ")
	t.Setenv("FANBOXED_API_TOKEN", "secret")
	dir := t.TempDir()
	path := writeConfig(t, `
[paths]
output_dir = "`+filepath.Join(dir, "out")+`"
state_dir = "`+filepath.Join(dir, "state")+`"

[fanbox]
api_base_url = "http://localhost:9000/"
timezone = "Asia/Tokyo"

[archive]
filename_template = "{id} {title}.zip"
compress = true

[logging]
format = "JSON"
`)

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Fanbox.SessionID != "from-env" {
		t.Fatalf("expected session from environment, got %q", cfg.Fanbox.SessionID)
	}
	if cfg.API.Token != "secret" {
		t.Fatalf("expected token from environment, got %q", cfg.API.Token)
	}
	if cfg.Fanbox.APIBaseURL != "http://localhost:9000" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Fanbox.APIBaseURL)
	}
	if cfg.Location().String() != "Asia/Tokyo" {
		t.Fatalf("unexpected location %s", cfg.Location())
	}
	if !cfg.Archive.Compress || cfg.Archive.FilenameTemplate != "{id} {title}.zip" {
		t.Fatalf("archive section not applied: %+v", cfg.Archive)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercased log format, got %q", cfg.Logging.Format)
	}
	if cfg.HistoryPath() != filepath.Join(dir, "state", "history.db") {
		t.Fatalf("unexpected history path %q", cfg.HistoryPath())
	}
}

func TestLoadFileValueWinsOverEnvironment(t *testing.T) {
	t.Setenv("FANBOX_SESSID", "from-env")
	path := writeConfig(t, "[fanbox]\nsession_id = \"from-file\"\n")

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Fanbox.SessionID != "from-file" {
		t.Fatalf("expected file value, got %q", cfg.Fanbox.SessionID)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown field", "[fanbox]\nsessid = \"x\"\n", "parse config"},
		{"unknown placeholder", "[archive]\nfilename_template = \"{artist}.zip\"\n", "archive.filename_template"},
		{"bad padding", "[archive]\nfilename_template = \"{day:2}.zip\"\n", "archive.filename_template"},
		{"oversized padding", "[archive]\nfilename_template = \"{year:09999999999}.zip\"\n", "archive.filename_template"},
		{"page without index", "[archive]\npage_template = \"page.{ext}\"\n", "{index}"},
		{"nested description", "[archive]\ndescription_name = \"a/b.txt\"\n", "description_name"},
		{"bad url", "[fanbox]\napi_base_url = \"ftp://example.com\"\n", "fanbox.api_base_url"},
		{"bad timezone", "[fanbox]\ntimezone = \"Mars/Olympus\"\n", "fanbox.timezone"},
		{"bad bind", "[api]\nbind = \"7490\"\n", "api.bind"},
		{"bad level", "[logging]\nlevel = \"loud\"\n", "logging.level"},
		{"zero timeout", "[fanbox]\nrequest_timeout = 0\n", "fanbox.request_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := config.Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestSampleConfigLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	def := config.Default()
	if cfg.Archive.FilenameTemplate != def.Archive.FilenameTemplate {
		t.Fatalf("sample template %q differs from default %q", cfg.Archive.FilenameTemplate, def.Archive.FilenameTemplate)
	}
}

func TestEncodeRedactsSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.Fanbox.SessionID = "abc123"
	cfg.API.Token = "tok"

	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	text := string(data)
	if strings.Contains(text, "abc123") || strings.Contains(text, "tok\"") {
		t.Fatalf("secrets leaked:\n%s", text)
	}
	if !strings.Contains(text, "<redacted>") {
		t.Fatalf("expected redaction marker:\n%s", text)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.LogDir()} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s", dir)
		}
	}
}

package testsupport

import (
	"path/filepath"
	"testing"

	"fanboxed/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.Fanbox.SessionID = "test-session"
	cfgVal.Fanbox.Timezone = "UTC"

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithAPI points the fanbox settings at a fake content API.
func WithAPI(api *FakeAPI) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Fanbox.APIBaseURL = api.URL()
		b.cfg.Fanbox.Origin = "https://www.fanbox.cc"
	}
}

// WithFilenameTemplate overrides the archive filename template.
func WithFilenameTemplate(tmpl string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Archive.FilenameTemplate = tmpl
	}
}

// WithNtfyTopic enables notifications against the provided topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithAPIToken sets the daemon API bearer token.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Token = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"fanboxed/internal/textutil"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateFanbox(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return ensurePositiveMap(map[string]int{
		"fanbox.request_timeout":        c.Fanbox.RequestTimeout,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateFanbox() error {
	for key, value := range map[string]string{
		"fanbox.api_base_url": c.Fanbox.APIBaseURL,
		"fanbox.origin":       c.Fanbox.Origin,
	} {
		u, err := url.Parse(value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s must be an http(s) URL, got %q", key, value)
		}
	}
	if c.Fanbox.Timezone != "" {
		if _, err := time.LoadLocation(c.Fanbox.Timezone); err != nil {
			return fmt.Errorf("fanbox.timezone: %w", err)
		}
	}
	return nil
}

func (c *Config) validateArchive() error {
	if _, err := textutil.Format(c.Archive.FilenameTemplate, SamplePostFields()); err != nil {
		return fmt.Errorf("archive.filename_template: %w", err)
	}

	entry := SamplePostFields()
	entry["index"] = 1
	entry["ext"] = "jpg"
	for key, tmpl := range map[string]string{
		"archive.cover_template": c.Archive.CoverTemplate,
		"archive.page_template":  c.Archive.PageTemplate,
	} {
		if _, err := textutil.Format(tmpl, entry); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	if !hasPlaceholder(c.Archive.PageTemplate, "index") {
		return errors.New("archive.page_template must reference {index} so page names stay unique")
	}
	if strings.ContainsAny(c.Archive.DescriptionName, `/\`) {
		return errors.New("archive.description_name must be a bare file name")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if _, _, err := net.SplitHostPort(c.API.Bind); err != nil {
		return fmt.Errorf("api.bind: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}

// SamplePostFields returns a value for every field a post exposes to naming
// templates. The key set must match fanbox.PostDescriptor.Fields.
func SamplePostFields() textutil.Fields {
	return textutil.Fields{
		"id":     "1",
		"author": "author",
		"title":  "title",
		"year":   2000,
		"month":  1,
		"day":    1,
		"hour":   0,
		"minute": 0,
	}
}

func hasPlaceholder(tmpl, name string) bool {
	for _, p := range textutil.Placeholders(tmpl) {
		if p == name {
			return true
		}
	}
	return false
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

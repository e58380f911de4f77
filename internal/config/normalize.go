package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFanbox()
	c.normalizeArchive()
	c.normalizeAPI()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFanbox() {
	c.Fanbox.SessionID = strings.TrimSpace(c.Fanbox.SessionID)
	if c.Fanbox.SessionID == "" {
		if value, ok := os.LookupEnv(envSessionID); ok {
			c.Fanbox.SessionID = strings.TrimSpace(value)
		}
	}
	c.Fanbox.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.Fanbox.APIBaseURL), "/")
	if c.Fanbox.APIBaseURL == "" {
		c.Fanbox.APIBaseURL = defaultAPIBaseURL
	}
	c.Fanbox.Origin = strings.TrimRight(strings.TrimSpace(c.Fanbox.Origin), "/")
	if c.Fanbox.Origin == "" {
		c.Fanbox.Origin = defaultOrigin
	}
	c.Fanbox.UserAgent = strings.TrimSpace(c.Fanbox.UserAgent)
	if c.Fanbox.UserAgent == "" {
		c.Fanbox.UserAgent = defaultUserAgent
	}
	c.Fanbox.Timezone = strings.TrimSpace(c.Fanbox.Timezone)
}

func (c *Config) normalizeArchive() {
	if strings.TrimSpace(c.Archive.FilenameTemplate) == "" {
		c.Archive.FilenameTemplate = defaultFilenameTemplate
	}
	c.Archive.DescriptionName = strings.TrimSpace(c.Archive.DescriptionName)
	if c.Archive.DescriptionName == "" {
		c.Archive.DescriptionName = defaultDescriptionName
	}
	if strings.TrimSpace(c.Archive.CoverTemplate) == "" {
		c.Archive.CoverTemplate = defaultCoverTemplate
	}
	if strings.TrimSpace(c.Archive.PageTemplate) == "" {
		c.Archive.PageTemplate = defaultPageTemplate
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv(envAPIToken); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv(envNtfyTopic); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"fanboxed/internal/config"
	"fanboxed/internal/daemon"
	"fanboxed/internal/fanbox"
	"fanboxed/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(c.configFlagValue())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) configFlagValue() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) daemonClient() (*daemon.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return daemon.NewClient(cfg.API.Bind, cfg.API.Token, nil), nil
}

// fileLogger logs to a per-run file only, keeping the terminal free for
// progress output.
func (c *commandContext) fileLogger(run string) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(cfg.LogDir(), logging.RunLogName(run, time.Now()))
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{path},
	})
	if err != nil {
		return nil, err
	}
	logging.PruneRunLogs(logger, cfg.LogDir(), cfg.Logging.RetentionDays, path)
	return logger, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// parsePostIDs accepts ids or post URLs and rejects the whole batch when any
// argument is unusable.
func parsePostIDs(args []string) ([]fanbox.PostID, error) {
	ids := make([]fanbox.PostID, 0, len(args))
	for _, arg := range args {
		id, err := fanbox.ParsePostID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

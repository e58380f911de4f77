package daemon

import (
	"context"
	"fmt"
	"log/slog"

	"fanboxed/internal/config"
	"fanboxed/internal/logging"
	"fanboxed/internal/pipeline"
)

// RunOptions configures the daemon process.
type RunOptions struct {
	// Logger overrides the logger built from configuration.
	Logger *slog.Logger
	// Pipeline customizes the download pipeline.
	Pipeline pipeline.Options
	// Ready is called with the listen address once the API is serving.
	Ready func(addr string)
}

// Run starts the daemon and blocks until ctx ends or the process is
// interrupted. The first interrupt while downloads are running is ignored
// with a warning.
func Run(ctx context.Context, cfg *config.Config, opts RunOptions) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.NewFromConfig(cfg, "daemon")
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
	}
	logging.PruneRunLogs(logger, cfg.LogDir(), cfg.Logging.RetentionDays)

	p, err := pipeline.New(cfg, logger, opts.Pipeline)
	if err != nil {
		return err
	}
	d, err := New(cfg, logger, p)
	if err != nil {
		_ = p.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	runCtx, stop := pipeline.InterruptContext(ctx, p.Guard, logger)
	defer stop()

	if err := d.Start(runCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api.bind and that no other daemon holds "+cfg.LockPath()),
		)
		return err
	}
	if opts.Ready != nil {
		opts.Ready(d.Addr())
	}

	<-runCtx.Done()
	logger.Info("fanboxed daemon shutting down")
	return nil
}

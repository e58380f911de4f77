// Package pipeline assembles the download manager and its collaborators from
// configuration. The CLI and the daemon both build their manager here so the
// two entry points share one wiring.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"fanboxed/internal/archive"
	"fanboxed/internal/config"
	"fanboxed/internal/download"
	"fanboxed/internal/fanbox"
	"fanboxed/internal/history"
	"fanboxed/internal/logging"
	"fanboxed/internal/notifications"
	"fanboxed/internal/transport"
)

// Options customizes the assembled pipeline.
type Options struct {
	// HTTPClient overrides the client used for API and asset requests.
	HTTPClient *http.Client
	// Reporters receive failures in addition to the log and notifications.
	Reporters []download.Reporter
	// Warn runs when the first interrupt during a busy period is swallowed.
	Warn func()
	// Notifications overrides the service built from configuration.
	Notifications notifications.Service
}

// Pipeline owns the download manager and everything it drives.
type Pipeline struct {
	Manager  *download.Manager
	Client   *fanbox.Client
	History  *history.Store
	Notifier *notifications.Notifier
	Guard    *download.InterruptGuard

	logger *slog.Logger
}

// New builds a Pipeline. History is opened only when enabled in cfg.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline requires configuration")
	}
	logger = logging.NewComponentLogger(logger, "pipeline")

	getter := transport.New(opts.HTTPClient, transport.Options{
		Timeout:   cfg.FetchTimeout(),
		UserAgent: cfg.Fanbox.UserAgent,
		Logger:    logger,
	})
	client := fanbox.NewClient(getter, fanbox.Options{
		BaseURL:      cfg.Fanbox.APIBaseURL,
		Origin:       cfg.Fanbox.Origin,
		SessionID:    cfg.Fanbox.SessionID,
		IncludeFiles: cfg.Fanbox.IncludeFiles,
		Location:     cfg.Location(),
		Logger:       logger,
	})
	builder := archive.NewBuilder(client, archive.Naming{
		DescriptionName: cfg.Archive.DescriptionName,
		CoverTemplate:   cfg.Archive.CoverTemplate,
		PageTemplate:    cfg.Archive.PageTemplate,
	}, logger)

	svc := opts.Notifications
	if svc == nil {
		svc = notifications.NewService(cfg)
	}
	notifier := notifications.NewNotifier(svc, logger)

	var store *history.Store
	if cfg.History.Enabled {
		var err error
		store, err = history.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
	}

	guard := download.NewInterruptGuard(opts.Warn)
	reporters := download.MultiReporter{download.LogReporter(logger), notifier}
	reporters = append(reporters, opts.Reporters...)

	manager := download.NewManager(download.Deps{
		Fetcher:          client,
		Builder:          builder,
		Trigger:          download.NewDirTrigger(cfg.Paths.OutputDir, logger),
		Reporter:         reporters,
		Guard:            download.Guards{guard, notifier},
		Logger:           logger,
		FilenameTemplate: cfg.Archive.FilenameTemplate,
		Compress:         cfg.Archive.Compress,
	})
	if store != nil {
		manager.AddResultHook(store.Hook(logger))
	}
	manager.AddResultHook(notifier.OnResult)

	return &Pipeline{
		Manager:  manager,
		Client:   client,
		History:  store,
		Notifier: notifier,
		Guard:    guard,
		logger:   logger,
	}, nil
}

// AlreadyCompleted reports the previous successful download of id, if history
// is enabled and has one.
func (p *Pipeline) AlreadyCompleted(ctx context.Context, id fanbox.PostID) (*history.Entry, error) {
	if p.History == nil {
		return nil, nil
	}
	return p.History.LastCompleted(ctx, id)
}

// Close stops the manager, flushes pending notifications, and closes history.
func (p *Pipeline) Close() error {
	p.Manager.Close()
	p.Notifier.Wait()
	if p.History != nil {
		return p.History.Close()
	}
	return nil
}

package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"fanboxed/internal/config"
	"fanboxed/internal/download"
	"fanboxed/internal/fanbox"
	"fanboxed/internal/logging"
	"fanboxed/internal/pipeline"
	"fanboxed/internal/progress"
)

// Version is reported by the health endpoint.
var Version = "dev"

// Daemon owns the download pipeline and its HTTP API, and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
	hub      *progress.Hub
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
}

// New constructs a daemon around an assembled pipeline.
func New(cfg *config.Config, logger *slog.Logger, p *pipeline.Pipeline) (*Daemon, error) {
	if cfg == nil || p == nil {
		return nil, errors.New("daemon requires config and pipeline")
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		pipeline: p,
		hub:      progress.NewHub(p.Manager, 1024),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.api = newAPIServer(cfg.API.Bind, cfg.API.Token, d, logger)
	return d, nil
}

// Start acquires the lock, begins recording progress, and serves the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another fanboxed daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel
	d.pipeline.Manager.Subscribe(d.hub)
	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("fanboxed daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.addr()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop shuts down the API, cancels downloads, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Swap(false) {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.hub.Close()
	d.pipeline.Manager.Close()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.logger.Info("fanboxed daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases the pipeline.
func (d *Daemon) Close() error {
	d.Stop()
	return d.pipeline.Close()
}

// Addr is the API listen address once started.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Health summarizes the daemon state.
func (d *Daemon) Health() HealthResponse {
	snap := d.pipeline.Manager.Snapshot()
	return HealthResponse{
		Status:    "ok",
		Version:   Version,
		PID:       os.Getpid(),
		StartedAt: d.startedAt,
		Queue:     len(snap.Queue),
		Phase:     snap.Phase(),
		Observers: d.pipeline.Manager.Observers(),
		History:   d.pipeline.History != nil,
	}
}

// Enqueue parses and queues posts. When history skipping is enabled, posts
// history already records as completed are skipped unless force is set.
func (d *Daemon) Enqueue(ctx context.Context, req EnqueueRequest) (EnqueueResponse, error) {
	resp := EnqueueResponse{Added: []fanbox.PostID{}}
	for _, raw := range req.Posts {
		id, err := fanbox.ParsePostID(raw)
		if err != nil {
			resp.Invalid = append(resp.Invalid, raw)
			continue
		}
		if !req.Force && d.cfg.History.SkipCompleted {
			entry, err := d.pipeline.AlreadyCompleted(ctx, id)
			if err != nil {
				return resp, err
			}
			if entry != nil {
				resp.Skipped = append(resp.Skipped, id)
				continue
			}
		}
		if d.pipeline.Manager.Enqueue(id) {
			resp.Added = append(resp.Added, id)
		} else {
			resp.Duplicate = append(resp.Duplicate, id)
		}
	}
	return resp, nil
}

package download

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fanboxed/internal/fanbox"
	"fanboxed/internal/logging"
	"fanboxed/internal/services"
	"fanboxed/internal/textutil"
)

// runTask executes one post end to end. The head status is updated and
// observers notified as the task progresses; the returned Result carries
// any failure.
func (m *Manager) runTask(id fanbox.PostID) Result {
	correlationID := uuid.NewString()
	ctx := services.WithCorrelationID(services.WithPostID(m.ctx, string(id)), correlationID)
	log := logging.WithContext(ctx, m.logger)

	result := Result{PostID: id, CorrelationID: correlationID, StartedAt: time.Now()}

	log.Info("download started", logging.String(logging.FieldEventType, "download_started"))

	post, err := m.fetcher.RequestInfo(ctx, id)
	if err != nil {
		result.Err = err
		return m.finish(log, result)
	}
	result.Post = post
	result.Fetches = post.TotalFetches()

	m.setStatus(Status{Done: 0, Total: result.Fetches})
	m.notify(Event{PostID: id})

	name, err := m.fileName(post)
	if err != nil {
		result.Err = err
		return m.finish(log, result)
	}
	result.FileName = name

	built, err := m.builder.BuildArchive(ctx, post, func(done, total int) {
		m.setStatus(Status{Done: done, Total: total})
		m.notify(Event{PostID: id})
	})
	if err != nil {
		result.Err = err
		return m.finish(log, result)
	}

	data, err := built.Bytes(m.compress)
	if err != nil {
		result.Err = &services.PackagingError{PostID: string(id), Err: err}
		return m.finish(log, result)
	}
	result.Size = int64(len(data))

	path, err := m.trigger.Deliver(ctx, name, data)
	if err != nil {
		result.Err = err
		return m.finish(log, result)
	}
	result.Path = path
	return m.finish(log, result)
}

func (m *Manager) fileName(post *fanbox.PostDescriptor) (string, error) {
	rendered, err := textutil.Format(m.template, post.Fields())
	if err != nil {
		return "", err
	}
	name := textutil.SanitizeFileName(rendered)
	if name == "" {
		name = string(post.ID) + ".zip"
	}
	return name, nil
}

// finish stamps the end time. Failures are logged by the reporter, so only
// successes are logged here.
func (m *Manager) finish(log *slog.Logger, result Result) Result {
	result.FinishedAt = time.Now()
	if result.Err == nil {
		log.Info("download completed",
			logging.String(logging.FieldEventType, "download_completed"),
			logging.String("file", result.FileName),
			logging.Int("fetches", result.Fetches),
			logging.Int64("bytes", result.Size),
			logging.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)),
		)
	}
	return result
}

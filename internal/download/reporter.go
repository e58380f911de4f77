package download

import (
	"context"
	"log/slog"

	"fanboxed/internal/fanbox"
	"fanboxed/internal/logging"
)

// Reporter receives task failures. The manager always invokes it on a
// separate goroutine, so implementations may block (for example on a
// network call) without delaying the next task.
type Reporter interface {
	Report(ctx context.Context, postID fanbox.PostID, err error)
}

// ReporterFunc adapts a function into a Reporter.
type ReporterFunc func(ctx context.Context, postID fanbox.PostID, err error)

func (f ReporterFunc) Report(ctx context.Context, postID fanbox.PostID, err error) {
	f(ctx, postID, err)
}

// MultiReporter fans a failure out to every reporter in order.
type MultiReporter []Reporter

func (m MultiReporter) Report(ctx context.Context, postID fanbox.PostID, err error) {
	for _, r := range m {
		if r != nil {
			r.Report(ctx, postID, err)
		}
	}
}

// LogReporter writes failures to a logger.
func LogReporter(logger *slog.Logger) Reporter {
	logger = logging.NewComponentLogger(logger, "download")
	return ReporterFunc(func(ctx context.Context, postID fanbox.PostID, err error) {
		attrs := append([]logging.Attr{logging.String(logging.FieldPostID, string(postID))}, logging.FailureAttrs(err)...)
		logging.ErrorWithContext(logging.WithContext(ctx, logger), "download failed", "download_failed", attrs...)
	})
}

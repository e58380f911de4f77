package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fanboxed/internal/download"
	"fanboxed/internal/fanbox"
	"fanboxed/internal/logging"
	"fanboxed/internal/services"
)

// Notifier connects a Service to the download manager.
type Notifier struct {
	svc    Service
	logger *slog.Logger

	mu        sync.Mutex
	started   time.Time
	succeeded int
	failed    int

	wg sync.WaitGroup
}

// NewNotifier wraps svc. Publish failures are logged, never returned.
func NewNotifier(svc Service, logger *slog.Logger) *Notifier {
	if svc == nil {
		svc = noopService{}
	}
	return &Notifier{svc: svc, logger: logging.NewComponentLogger(logger, "notifications")}
}

// Report publishes download_failed. The manager already calls reporters off
// the loop goroutine, so this publishes synchronously.
func (n *Notifier) Report(ctx context.Context, postID fanbox.PostID, err error) {
	n.publish(ctx, EventDownloadFailed, Payload{
		"post_id": string(postID),
		"error":   errorText(err),
		"hint":    services.Hint(err),
	})
}

// OnResult counts the task toward the batch summary and publishes
// download_completed for successes. Publishing happens in the background so
// the download loop is not held up.
func (n *Notifier) OnResult(ctx context.Context, result download.Result) {
	n.mu.Lock()
	if result.Succeeded() {
		n.succeeded++
	} else {
		n.failed++
	}
	n.mu.Unlock()

	if !result.Succeeded() {
		return
	}
	payload := Payload{
		"post_id": string(result.PostID),
		"file":    result.FileName,
		"size":    result.Size,
	}
	if result.Post != nil {
		payload["title"] = result.Post.Title
	}
	n.async(ctx, EventDownloadCompleted, payload)
}

// Install marks the start of a busy period. It runs under the manager's lock.
func (n *Notifier) Install() {
	n.mu.Lock()
	n.started = time.Now()
	n.succeeded = 0
	n.failed = 0
	n.mu.Unlock()
	n.async(context.Background(), EventQueueStarted, Payload{})
}

// Remove marks the end of a busy period and publishes the batch summary.
func (n *Notifier) Remove() {
	n.mu.Lock()
	payload := Payload{
		"succeeded": n.succeeded,
		"failed":    n.failed,
		"duration":  time.Since(n.started),
	}
	n.mu.Unlock()
	n.async(context.Background(), EventQueueCompleted, payload)
}

// Wait blocks until background publishes finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Test publishes a test notification and returns the delivery error.
func (n *Notifier) Test(ctx context.Context) error {
	return n.svc.Publish(ctx, EventTest, Payload{})
}

func (n *Notifier) async(ctx context.Context, event Event, payload Payload) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.publish(context.WithoutCancel(ctx), event, payload)
	}()
}

func (n *Notifier) publish(ctx context.Context, event Event, payload Payload) {
	if err := n.svc.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, n.logger), "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network reachability"),
			logging.String(logging.FieldImpact, "a push notification was not delivered"),
		)
	}
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

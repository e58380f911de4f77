package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"fanboxed/internal/config"
)

const userAgent = "fanboxed/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventDownloadFailed    Event = "download_failed"
	EventDownloadCompleted Event = "download_completed"
	EventQueueStarted      Event = "queue_started"
	EventQueueCompleted    Event = "queue_completed"
	EventTest              Event = "test"
)

// Payload carries event-specific values.
type Payload map[string]any

// Service publishes notification events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventDownloadFailed:    cfg.Notifications.Failures,
			EventDownloadCompleted: cfg.Notifications.Completions,
			EventQueueStarted:      cfg.Notifications.Queue,
			EventQueueCompleted:    cfg.Notifications.Queue,
			EventTest:              true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := render(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, msg)
}

func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventDownloadFailed:
		var b strings.Builder
		fmt.Fprintf(&b, "❌ Download failed for post %s", payloadString(payload, "post_id"))
		if errText := payloadString(payload, "error"); errText != "" {
			b.WriteString(": ")
			b.WriteString(errText)
		}
		if hint := payloadString(payload, "hint"); hint != "" {
			b.WriteString("\nNext step: ")
			b.WriteString(hint)
		}
		return message{
			title:    "fanboxed - Download Failed",
			body:     b.String(),
			tags:     []string{"fanboxed", "download", "failed"},
			priority: "high",
		}, true
	case EventDownloadCompleted:
		title := payloadString(payload, "title")
		if title == "" {
			title = "post " + payloadString(payload, "post_id")
		}
		body := "✅ Saved: " + title
		if file := payloadString(payload, "file"); file != "" {
			body += "\nFile: " + file
		}
		if size, ok := payload["size"].(int64); ok && size > 0 {
			body += " (" + humanize.Bytes(uint64(size)) + ")"
		}
		return message{
			title: "fanboxed - Download Complete",
			body:  body,
			tags:  []string{"fanboxed", "download", "completed"},
		}, true
	case EventQueueStarted:
		return message{
			title: "fanboxed - Queue Started",
			body:  "Started downloading queued posts",
			tags:  []string{"fanboxed", "queue", "started"},
		}, true
	case EventQueueCompleted:
		succeeded, _ := payload["succeeded"].(int)
		failed, _ := payload["failed"].(int)
		duration, _ := payload["duration"].(time.Duration)
		duration = duration.Round(time.Second)
		if duration < 0 {
			duration = 0
		}
		msg := message{
			title: "fanboxed - Queue Complete",
			body:  fmt.Sprintf("Queue complete: %d posts downloaded in %s", succeeded, duration),
			tags:  []string{"fanboxed", "queue", "completed"},
		}
		if failed > 0 {
			msg.title = "fanboxed - Queue Complete (with errors)"
			msg.body = fmt.Sprintf("Queue complete: %d succeeded, %d failed in %s", succeeded, failed, duration)
		}
		return msg, true
	case EventTest:
		return message{
			title:    "fanboxed - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"fanboxed", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func payloadString(payload Payload, key string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

// Package notifications pushes download events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never branch on whether notifications are enabled. Notifier adapts
// a Service to the download manager: it is the failure Reporter, a result
// hook for completions, and a Guard that brackets each busy period with
// queue_started and queue_completed events.
package notifications

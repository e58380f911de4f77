// Package download owns the process-wide download queue.
//
// A Manager accepts post IDs, de-duplicates them, and runs them one at a time
// in arrival order on a single loop goroutine that exists only while the
// queue is non-empty. Each task resolves the post, builds its archive, and
// hands the encoded zip to a Trigger. Progress is published to subscribed
// Observers; failures go to a Reporter without stalling the queue.
package download

// Package daemon runs fanboxed as a long-lived background process.
//
// It owns a download pipeline behind a flock-based single-instance lock and
// exposes the queue over a small HTTP API: health, queue inspection and
// submission, long-polled progress events, and download history. Client is
// the matching HTTP client used by the CLI's queue commands.
//
// Keep orchestration here. Download semantics live in the download package;
// the daemon only adapts them to HTTP and to the process lifecycle.
package daemon

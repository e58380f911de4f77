// Package logging assembles structured slog loggers for the CLI and daemon.
//
// It owns the console and JSON handlers, level and output plumbing, and
// context-aware helpers that tag log lines with post IDs and correlation IDs.
// Run logs land under the configured log directory and are pruned by
// PruneRunLogs. NewNop provides a logger for tests and optional wiring.
package logging

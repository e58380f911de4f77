// Package services defines the error taxonomy and context helpers shared by
// the fetcher, archive builder, download manager, and daemon.
//
// Key responsibilities:
//   - Typed errors (transport, API, restricted, format, packaging) that match
//     their markers through errors.Is so callers classify failures without
//     string inspection.
//   - Kind and Hint helpers that turn a failure into log, history, and
//     notification fields.
//   - Context helpers that stamp post IDs and correlation identifiers for
//     logging.
package services

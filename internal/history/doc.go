// Package history records finished downloads in SQLite.
//
// Each task the download manager completes, successfully or not, becomes one
// row. The CLI consults LastCompleted to skip posts that were already
// archived, and the daemon exposes List over its HTTP API. The schema is
// versioned; a mismatch asks the operator to clear the database rather than
// migrating in place.
package history

// Package queue persists export jobs in SQLite.
//
// The store is the daemon's source of truth for job state: submission order,
// lifecycle status, fractional progress, artifact paths, and failure
// messages. The single pipeline worker drains it strictly FIFO; rows stuck in
// a processing status from a crashed daemon are failed at startup because a
// half-finished editor run is not resumable.
package queue

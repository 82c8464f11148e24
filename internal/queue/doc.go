// Package queue defines the work queue contract that distributes "fix this
// issue" tasks to workers.
//
// A WorkItem moves pending → claimed → completed/skipped/failed, returning to
// pending when a failed attempt still has retry budget. The Store interface
// is implemented by two interchangeable backends: sqlitestore (embedded,
// single process, durable) and redisstore (shared across processes and
// hosts). Both apply the same retry policy through DecideFailure and reject
// reports from outdated claims with ErrStaleClaim.
//
// Payloads are opaque to the queue. They carry a schema version so
// processors can rely on a stable layout; bump PayloadSchemaVersion when the
// layout changes.
//
// The shared behavioural suite in queuetest is the reference for the
// contract; run it against any new backend.
package queue

// Package sqlitestore implements queue.Store on an embedded SQLite database.
//
// One row in work_items holds one WorkItem. A partial unique index over the
// identity columns of pending and claimed rows enforces deduplication, so a
// unique-constraint violation on insert means "already queued". Claims run in
// a single BEGIN IMMEDIATE transaction and guard every update on the row's
// current status, which keeps two workers from ever holding the same item.
//
// The database runs in WAL mode with a busy timeout; writes that still see
// SQLITE_BUSY retry with exponential backoff. Timestamps are stored as unix
// microseconds.
//
// Schema changes bump schemaVersion in schema.go. There are no migrations:
// operators prune or delete the database to adopt a new schema.
package sqlitestore

// Package redisstore implements queue.Store on Redis so workers on several
// processes and hosts can share one queue.
//
// Data structures
//
// All keys live under one hash-tagged prefix ({lintfix} by default) so they
// share a cluster slot:
//
//	<prefix>:pending     ZSET  id -> priority*1e9 - seq
//	<prefix>:claimed     HASH  id -> worker
//	<prefix>:completed   HASH  id -> result JSON (completed and skipped)
//	<prefix>:failed      HASH  id -> result JSON
//	<prefix>:heartbeats  HASH  worker -> unix micros
//	<prefix>:identity    HASH  identity key -> id (non-terminal items only)
//	<prefix>:index       SET   every item id
//	<prefix>:seq         STRING enqueue counter
//	<prefix>:item:<id>   HASH  the item itself
//
// The pending score sorts by priority and, within a priority, by enqueue
// sequence, so ZPOPMAX serves the oldest item of the highest priority.
// Priorities are bounded so that every score is an exact float64.
//
// Every transition that must be atomic runs as a Lua script. Claims pop and
// mark items in one script; fail and reclaim compute the retry decision in Go
// and apply it through a script that only succeeds while the caller's claim
// token is still current.
package redisstore

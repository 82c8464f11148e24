// Package producer turns linter output into queued work items.
//
// Lines in the `path:line:col: CODE message` form become one WorkItem each;
// anything else (summaries, fix hints, blank lines) is ignored. Paths matching
// any configured exclude glob are dropped before enqueue.
package producer

// Package main hosts the lintfix CLI.
//
// The Cobra command tree covers the three roles around the work queue:
// `enqueue` parses linter output into work items, `worker` runs a pool of
// fixer workers plus the stale-claim reclaimer, and `queue` gives operators
// status, inspection, retry, reclaim, and retention commands. Configuration
// is resolved once per invocation and every command opens the configured
// store directly; there is no daemon.
package main

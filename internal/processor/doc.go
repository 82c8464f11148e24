// Package processor provides worker.Processor implementations. Command runs
// an external fixer program per work item, exchanging JSON over stdin and
// stdout.
package processor

// Package logs reads back the JSON log file written when logging.file is set.
//
// Each line is one slog record; Entry exposes the standard lintfix fields so
// `lintfix logs` can show the history of one work item, worker, or session.
// Read returns the last matching entries with bounded memory and Follow polls
// for new ones until its context is cancelled.
package logs

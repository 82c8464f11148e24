// Package preflight provides readiness checks for the queue store and the
// external programs lintfix depends on.
//
// `lintfix config validate` runs RunAll and prints every result; the worker
// command checks the fixer binary before it claims anything.
package preflight

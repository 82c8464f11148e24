// Package deps checks that the external programs lintfix runs, the fixer
// command and the linter, can be found on PATH.
package deps

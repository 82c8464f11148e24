// Package testsupport holds helpers shared by package tests: temp-dir
// configs, throwaway SQLite and miniredis-backed stores, and small file
// fixtures.
package testsupport

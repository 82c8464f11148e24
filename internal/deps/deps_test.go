package deps

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Fixer", Command: present},
		{Name: "Linter", Command: "clearly-not-present-binary", Optional: true},
		{Name: "Unset", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected status for unset command: %#v", results[2])
	}

	missing := Missing(results)
	if len(missing) != 1 || missing[0].Name != "Unset" {
		t.Fatalf("expected only the required unset command missing, got %#v", missing)
	}
}

func TestCheckBinariesResolvesPath(t *testing.T) {
	binDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(binDir, "ruff"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", binDir)

	results := CheckBinaries([]Requirement{{Name: "Linter", Command: "ruff"}})
	if !results[0].Available || results[0].Detail != filepath.Join(binDir, "ruff") {
		t.Fatalf("expected resolved path detail, got %#v", results[0])
	}
}

func TestRequire(t *testing.T) {
	if err := Require("fixer", "clearly-not-present-binary", ""); err == nil || !strings.Contains(err.Error(), "fixer unavailable") {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if err := Require("shell", "/bin/sh", ""); err != nil {
		t.Fatalf("expected /bin/sh to be available: %v", err)
	}
}

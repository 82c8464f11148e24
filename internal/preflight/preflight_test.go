package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"lintfix/internal/config"
	"lintfix/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckWritableParent_Missing(t *testing.T) {
	base := t.TempDir()
	result := CheckWritableParent("db", filepath.Join(base, "a", "b"))
	if !result.Passed || !strings.Contains(result.Detail, "will be created under "+base) {
		t.Fatalf("expected pass with creation note, got %+v", result)
	}
}

func TestCheckWritableParent_FileInTheWay(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckWritableParent("db", f); result.Passed {
		t.Fatalf("expected failure when path is a file, got %+v", result)
	}
}

func TestCheckRedis(t *testing.T) {
	server := miniredis.RunT(t)
	cfg := testsupport.NewConfig(t, testsupport.WithRedis(server.Addr()))
	if result := CheckRedis(context.Background(), cfg); !result.Passed {
		t.Fatalf("expected redis reachable, got %+v", result)
	}

	server.Close()
	if result := CheckRedis(context.Background(), cfg); result.Passed {
		t.Fatalf("expected failure after server closed, got %+v", result)
	}
}

func TestCheckTools(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Producer.Linter = "clearly-not-present-linter"
	results := CheckTools(cfg)
	if len(results) != 2 {
		t.Fatalf("expected fixer and linter results, got %+v", results)
	}
	if !results[0].Passed || !strings.Contains(results[0].Detail, "not configured") {
		t.Fatalf("unexpected fixer result %+v", results[0])
	}
	if !results[1].Passed || !strings.Contains(results[1].Detail, "optional") {
		t.Fatalf("missing optional linter should pass with note, got %+v", results[1])
	}

	cfg.Worker.FixerCommand = []string{"clearly-not-present-fixer", "--apply"}
	results = CheckTools(cfg)
	if results[0].Passed {
		t.Fatalf("expected missing fixer to fail, got %+v", results[0])
	}
}

func TestRunAllSQLite(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFixerCommand("/bin/sh"))
	cfg.Producer.Linter = ""
	results := RunAll(context.Background(), cfg)
	if len(results) != 2 {
		t.Fatalf("expected store and fixer checks, got %+v", results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures %+v", failed)
	}
	if results[0].Name != "SQLite directory" {
		t.Fatalf("unexpected first check %q", results[0].Name)
	}
}

func TestRunAllNilConfig(t *testing.T) {
	var cfg *config.Config
	if results := RunAll(context.Background(), cfg); results != nil {
		t.Fatalf("expected nil results, got %+v", results)
	}
}

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitValidateShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "", "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "sqlite "+env.cfg.SQLite.Path)

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, "", "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, "", "", "config", "init", "--path", target); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected existing file error, got %v", err)
	}
	if _, _, err := runCLI(t, "", "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, target, "", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "# source: "+target)
	requireContains(t, out, "[store]")
	requireContains(t, out, "sqlite")
}

func TestConfigShowRedactsPassword(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Redis.Password = "hunter2"
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, env.configPath, "", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "hunter2") {
		t.Fatalf("password leaked in output:\n%s", out)
	}
	requireContains(t, out, "<redacted>")
}

func TestInvalidConfigFailsCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.WriteFile(env.configPath, []byte("[store]\nbackend = \"postgres\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := runCLI(t, env.configPath, "", "queue", "status"); err == nil {
		t.Fatal("expected invalid backend to fail")
	}
}

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"lintfix/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantDB := filepath.Join(tempHome, ".local", "share", "lintfix", "queue.db")
	if cfg.SQLite.Path != wantDB {
		t.Fatalf("unexpected sqlite path: got %q want %q", cfg.SQLite.Path, wantDB)
	}
	if cfg.SQLite.LockPath != wantDB+".lock" {
		t.Fatalf("unexpected lock path: %q", cfg.SQLite.LockPath)
	}
	if cfg.Store.Backend != config.BackendSQLite {
		t.Fatalf("expected sqlite backend by default, got %q", cfg.Store.Backend)
	}
	if cfg.Redis.KeyPrefix != "{lintfix}" {
		t.Fatalf("unexpected redis key prefix: %q", cfg.Redis.KeyPrefix)
	}
	if cfg.Queue.DefaultMaxRetries != config.Default().Queue.DefaultMaxRetries {
		t.Fatalf("unexpected default max retries: %d", cfg.Queue.DefaultMaxRetries)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if cfg.Metrics.Enabled {
		t.Fatal("expected metrics disabled by default")
	}
	if got := cfg.Worker.HeartbeatDuration(); got != 15*time.Second {
		t.Fatalf("unexpected heartbeat duration: %s", got)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "lintfix.toml")

	type payload struct {
		Store struct {
			Backend string `toml:"backend"`
		} `toml:"store"`
		Redis struct {
			Addrs     []string `toml:"addrs"`
			KeyPrefix string   `toml:"key_prefix"`
		} `toml:"redis"`
		Worker struct {
			IssueCodes   []string `toml:"issue_codes"`
			FixerCommand []string `toml:"fixer_command"`
		} `toml:"worker"`
		Reclaim struct {
			ClaimTimeout int `toml:"claim_timeout"`
		} `toml:"reclaim"`
	}
	custom := payload{}
	custom.Store.Backend = "Redis"
	custom.Redis.Addrs = []string{" redis-a:6379 ", "", "redis-b:6379"}
	custom.Redis.KeyPrefix = "{ci}"
	custom.Worker.IssueCodes = []string{"F401", " F401", "E501"}
	custom.Worker.FixerCommand = []string{"python", "-m", "fixer"}
	custom.Reclaim.ClaimTimeout = 1200
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Store.Backend != config.BackendRedis {
		t.Fatalf("expected backend to normalize to redis, got %q", cfg.Store.Backend)
	}
	if strings.Join(cfg.Redis.Addrs, ",") != "redis-a:6379,redis-b:6379" {
		t.Fatalf("unexpected redis addrs: %v", cfg.Redis.Addrs)
	}
	if cfg.Redis.KeyPrefix != "{ci}" {
		t.Fatalf("unexpected key prefix: %q", cfg.Redis.KeyPrefix)
	}
	if strings.Join(cfg.Worker.IssueCodes, ",") != "F401,E501" {
		t.Fatalf("expected issue codes deduplicated, got %v", cfg.Worker.IssueCodes)
	}
	if len(cfg.Worker.FixerCommand) != 3 || cfg.Worker.FixerCommand[0] != "python" {
		t.Fatalf("unexpected fixer command: %v", cfg.Worker.FixerCommand)
	}
	if cfg.Reclaim.ClaimTimeoutDuration() != 20*time.Minute {
		t.Fatalf("unexpected claim timeout: %s", cfg.Reclaim.ClaimTimeoutDuration())
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "lintfix.toml")
	if err := os.WriteFile(configPath, []byte("[worker]\nconcurency = 2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected error for misspelled key")
	}
}

func TestEnvVarOverridesConfigFileForStore(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "lintfix.toml")
	contents := "[store]\nbackend = \"sqlite\"\n\n[redis]\naddrs = [\"file:6379\"]\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("LINTFIX_STORE_BACKEND", "redis")
	t.Setenv("LINTFIX_REDIS_ADDR", "env-a:6379,env-b:6379")
	t.Setenv("LINTFIX_REDIS_PASSWORD", "secret")
	t.Setenv("LINTFIX_REDIS_DB", "4")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Store.Backend != config.BackendRedis {
		t.Errorf("expected backend from env, got %q", cfg.Store.Backend)
	}
	if strings.Join(cfg.Redis.Addrs, ",") != "env-a:6379,env-b:6379" {
		t.Errorf("expected addrs from env, got %v", cfg.Redis.Addrs)
	}
	if cfg.Redis.Password != "secret" {
		t.Errorf("expected password from env, got %q", cfg.Redis.Password)
	}
	if cfg.Redis.DB != 4 {
		t.Errorf("expected db from env, got %d", cfg.Redis.DB)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "fixer_command") {
		t.Fatalf("sample config missing fixer command: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Store.Backend != config.BackendSQLite {
		t.Fatalf("expected sample backend sqlite, got %q", cfg.Store.Backend)
	}

	t.Setenv("HOME", t.TempDir())
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load cleanly: %v", err)
	}
}

func TestPriorityForUsesLongestPrefix(t *testing.T) {
	q := config.Queue{
		DefaultPriority: 1,
		Priorities:      map[string]int{"E": 10, "E5": 20, "E501": 40},
	}
	cases := map[string]int{
		"E501": 40,
		"E502": 20,
		"E101": 10,
		"W291": 1,
	}
	for code, want := range cases {
		if got := q.PriorityFor(code); got != want {
			t.Fatalf("PriorityFor(%q) = %d, want %d", code, got, want)
		}
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Worker.PollInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive poll interval")
	}

	cfg = config.Default()
	cfg.Store.Backend = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown backend")
	}

	cfg = config.Default()
	cfg.Reclaim.ClaimTimeout = cfg.Worker.FixerTimeout
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when claim timeout <= fixer timeout")
	}

	cfg = config.Default()
	cfg.Reclaim.DeadWorkerThreshold = cfg.Worker.HeartbeatInterval
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when dead worker threshold <= heartbeat interval")
	}

	cfg = config.Default()
	cfg.Queue.DefaultMaxRetries = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative retry budget")
	}

	cfg = config.Default()
	cfg.Queue.Priorities = map[string]int{"F": 5_000_000}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out of range priority")
	}

	cfg = config.Default()
	cfg.Producer.Exclude = []string{"src/[unterminated"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid exclude pattern")
	}

	cfg = config.Default()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log level")
	}

	cfg = config.Default()
	cfg.Queue.DefaultMaxRetries = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero retry budget should be valid: %v", err)
	}
}

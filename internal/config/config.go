package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Store selects the queue backend.
type Store struct {
	Backend string `toml:"backend"` // "sqlite" or "redis"
}

// SQLite contains configuration for the embedded queue database.
type SQLite struct {
	Path          string `toml:"path"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
	// LockPath guards the database against a second worker process.
	// Defaults to Path + ".lock".
	LockPath string `toml:"lock_path"`
}

// Redis contains configuration for the shared queue.
type Redis struct {
	Addrs       []string `toml:"addrs"`
	Username    string   `toml:"username"`
	Password    string   `toml:"password"`
	DB          int      `toml:"db"`
	KeyPrefix   string   `toml:"key_prefix"`
	DialTimeout int      `toml:"dial_timeout"`
}

// Queue contains enqueue defaults.
type Queue struct {
	DefaultMaxRetries int `toml:"default_max_retries"`
	DefaultPriority   int `toml:"default_priority"`
	// Priorities maps issue code prefixes to priorities; the longest matching prefix wins.
	Priorities    map[string]int `toml:"priorities"`
	RetentionDays int            `toml:"retention_days"`
}

// Worker contains configuration for the claim/process/report loop.
type Worker struct {
	Concurrency        int      `toml:"concurrency"`
	PollInterval       int      `toml:"poll_interval"`
	ClaimWait          int      `toml:"claim_wait"`
	ErrorRetryInterval int      `toml:"error_retry_interval"`
	HeartbeatInterval  int      `toml:"heartbeat_interval"`
	IssueCodes         []string `toml:"issue_codes"`
	FixerCommand       []string `toml:"fixer_command"`
	FixerTimeout       int      `toml:"fixer_timeout"`
}

// Reclaim contains configuration for stale claim recovery.
type Reclaim struct {
	Interval            int `toml:"interval"`
	ClaimTimeout        int `toml:"claim_timeout"`
	DeadWorkerThreshold int `toml:"dead_worker_threshold"`
}

// Producer contains configuration for turning linter output into work items.
type Producer struct {
	Linter  string   `toml:"linter"`
	Exclude []string `toml:"exclude"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Metrics contains configuration for the Prometheus endpoint.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// Config encapsulates all configuration values for lintfix.
//
// Configuration sections by subsystem:
//   - Store: backend selection
//   - SQLite: embedded queue database
//   - Redis: shared queue connection
//   - Queue: enqueue defaults, priorities, and retention
//   - Worker: polling, heartbeats, and the fixer command
//   - Reclaim: stale claim recovery
//   - Producer: linter output parsing
//   - Logging: log format and level
//   - Metrics: Prometheus endpoint
type Config struct {
	Store    Store    `toml:"store"`
	SQLite   SQLite   `toml:"sqlite"`
	Redis    Redis    `toml:"redis"`
	Queue    Queue    `toml:"queue"`
	Worker   Worker   `toml:"worker"`
	Reclaim  Reclaim  `toml:"reclaim"`
	Producer Producer `toml:"producer"`
	Logging  Logging  `toml:"logging"`
	Metrics  Metrics  `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("lintfix.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

// PollIntervalDuration is how long an idle worker sleeps between claim attempts.
func (w Worker) PollIntervalDuration() time.Duration { return seconds(w.PollInterval) }

// ClaimWaitDuration bounds one claim call on an empty queue.
func (w Worker) ClaimWaitDuration() time.Duration { return seconds(w.ClaimWait) }

// ErrorRetryDuration is the backoff after a store error.
func (w Worker) ErrorRetryDuration() time.Duration { return seconds(w.ErrorRetryInterval) }

// HeartbeatDuration is the advisory heartbeat period.
func (w Worker) HeartbeatDuration() time.Duration { return seconds(w.HeartbeatInterval) }

// FixerTimeoutDuration bounds one fixer invocation.
func (w Worker) FixerTimeoutDuration() time.Duration { return seconds(w.FixerTimeout) }

// IntervalDuration is the sweep period.
func (r Reclaim) IntervalDuration() time.Duration { return seconds(r.Interval) }

// ClaimTimeoutDuration is the age after which a claim counts as stale.
func (r Reclaim) ClaimTimeoutDuration() time.Duration { return seconds(r.ClaimTimeout) }

// DeadWorkerDuration is how long a silent worker is tolerated before it is reported.
func (r Reclaim) DeadWorkerDuration() time.Duration { return seconds(r.DeadWorkerThreshold) }

// Retention returns the prune cutoff age, or zero when pruning is disabled.
func (q Queue) Retention() time.Duration {
	return time.Duration(q.RetentionDays) * 24 * time.Hour
}

// PriorityFor resolves the priority of an issue code from the configured
// prefixes, falling back to the default priority.
func (q Queue) PriorityFor(code string) int {
	best := -1
	priority := q.DefaultPriority
	for prefix, value := range q.Priorities {
		if !strings.HasPrefix(code, prefix) {
			continue
		}
		if len(prefix) > best || (len(prefix) == best && value > priority) {
			best = len(prefix)
			priority = value
		}
	}
	return priority
}

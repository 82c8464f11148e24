package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"lintfix/internal/queue"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateReclaim(); err != nil {
		return err
	}
	if err := c.validateProducer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case BackendSQLite:
		if strings.TrimSpace(c.SQLite.Path) == "" {
			return errors.New("sqlite.path must be set when store.backend is sqlite")
		}
		if c.SQLite.BusyTimeoutMS < 0 {
			return errors.New("sqlite.busy_timeout_ms must be >= 0")
		}
	case BackendRedis:
		if len(c.Redis.Addrs) == 0 {
			return errors.New("redis.addrs must include at least one address when store.backend is redis")
		}
		if c.Redis.DB < 0 {
			return errors.New("redis.db must be >= 0")
		}
		if c.Redis.DialTimeout <= 0 {
			return errors.New("redis.dial_timeout must be positive")
		}
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", BackendSQLite, BackendRedis, c.Store.Backend)
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.DefaultMaxRetries < 0 {
		return errors.New("queue.default_max_retries must be >= 0")
	}
	if err := validatePriority("queue.default_priority", c.Queue.DefaultPriority); err != nil {
		return err
	}
	prefixes := make([]string, 0, len(c.Queue.Priorities))
	for prefix := range c.Queue.Priorities {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	for _, prefix := range prefixes {
		if err := validatePriority("queue.priorities."+prefix, c.Queue.Priorities[prefix]); err != nil {
			return err
		}
	}
	if c.Queue.RetentionDays < 0 {
		return errors.New("queue.retention_days must be >= 0")
	}
	return nil
}

func (c *Config) validateWorker() error {
	if err := ensurePositiveMap(map[string]int{
		"worker.concurrency":          c.Worker.Concurrency,
		"worker.poll_interval":        c.Worker.PollInterval,
		"worker.error_retry_interval": c.Worker.ErrorRetryInterval,
		"worker.heartbeat_interval":   c.Worker.HeartbeatInterval,
		"worker.fixer_timeout":        c.Worker.FixerTimeout,
	}); err != nil {
		return err
	}
	if c.Worker.ClaimWait < 0 {
		return errors.New("worker.claim_wait must be >= 0")
	}
	return nil
}

func (c *Config) validateReclaim() error {
	if err := ensurePositiveMap(map[string]int{
		"reclaim.interval":              c.Reclaim.Interval,
		"reclaim.claim_timeout":         c.Reclaim.ClaimTimeout,
		"reclaim.dead_worker_threshold": c.Reclaim.DeadWorkerThreshold,
	}); err != nil {
		return err
	}
	if c.Reclaim.ClaimTimeout <= c.Worker.FixerTimeout {
		return errors.New("reclaim.claim_timeout must be greater than worker.fixer_timeout")
	}
	if c.Reclaim.DeadWorkerThreshold <= c.Worker.HeartbeatInterval {
		return errors.New("reclaim.dead_worker_threshold must be greater than worker.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateProducer() error {
	for _, pattern := range c.Producer.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("producer.exclude contains invalid pattern %q", pattern)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}

func validatePriority(key string, value int) error {
	if value < queue.MinPriority || value > queue.MaxPriority {
		return fmt.Errorf("%s must be between %d and %d", key, queue.MinPriority, queue.MaxPriority)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

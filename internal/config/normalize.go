package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeStore()
	if err := c.normalizeSQLite(); err != nil {
		return err
	}
	if err := c.normalizeRedis(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeWorker()
	c.normalizeProducer()
	if err := c.normalizeLogging(); err != nil {
		return err
	}
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	if c.Metrics.Bind == "" {
		c.Metrics.Bind = defaultMetricsBind
	}
	return nil
}

func (c *Config) normalizeStore() {
	if value, ok := os.LookupEnv("LINTFIX_STORE_BACKEND"); ok && strings.TrimSpace(value) != "" {
		c.Store.Backend = value
	}
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = defaultStoreBackend
	}
}

func (c *Config) normalizeSQLite() error {
	var err error
	if strings.TrimSpace(c.SQLite.Path) == "" {
		c.SQLite.Path = defaultSQLitePath
	}
	if c.SQLite.Path, err = expandPath(c.SQLite.Path); err != nil {
		return fmt.Errorf("sqlite.path: %w", err)
	}
	if strings.TrimSpace(c.SQLite.LockPath) == "" {
		c.SQLite.LockPath = c.SQLite.Path + ".lock"
	}
	if c.SQLite.LockPath, err = expandPath(c.SQLite.LockPath); err != nil {
		return fmt.Errorf("sqlite.lock_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeRedis() error {
	if value, ok := os.LookupEnv("LINTFIX_REDIS_ADDR"); ok && strings.TrimSpace(value) != "" {
		c.Redis.Addrs = strings.Split(value, ",")
	}
	addrs := make([]string, 0, len(c.Redis.Addrs))
	for _, addr := range c.Redis.Addrs {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			addrs = append(addrs, trimmed)
		}
	}
	if len(addrs) == 0 {
		addrs = []string{defaultRedisAddr}
	}
	c.Redis.Addrs = addrs
	if c.Redis.Password == "" {
		if value, ok := os.LookupEnv("LINTFIX_REDIS_PASSWORD"); ok {
			c.Redis.Password = value
		}
	}
	if value, ok := os.LookupEnv("LINTFIX_REDIS_DB"); ok && strings.TrimSpace(value) != "" {
		db, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("LINTFIX_REDIS_DB: %w", err)
		}
		c.Redis.DB = db
	}
	c.Redis.Username = strings.TrimSpace(c.Redis.Username)
	c.Redis.KeyPrefix = strings.TrimSpace(c.Redis.KeyPrefix)
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = defaultRedisKeyPrefix
	}
	return nil
}

func (c *Config) normalizeQueue() {
	if len(c.Queue.Priorities) == 0 {
		return
	}
	priorities := make(map[string]int, len(c.Queue.Priorities))
	for prefix, value := range c.Queue.Priorities {
		trimmed := strings.TrimSpace(prefix)
		if trimmed == "" {
			continue
		}
		priorities[trimmed] = value
	}
	c.Queue.Priorities = priorities
}

func (c *Config) normalizeWorker() {
	c.Worker.IssueCodes = compactStrings(c.Worker.IssueCodes)
	command := make([]string, 0, len(c.Worker.FixerCommand))
	for _, arg := range c.Worker.FixerCommand {
		if arg != "" {
			command = append(command, arg)
		}
	}
	c.Worker.FixerCommand = command
}

func (c *Config) normalizeProducer() {
	c.Producer.Linter = strings.ToLower(strings.TrimSpace(c.Producer.Linter))
	if c.Producer.Linter == "" {
		c.Producer.Linter = defaultProducerLinter
	}
	c.Producer.Exclude = compactStrings(c.Producer.Exclude)
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if strings.TrimSpace(c.Logging.File) == "" {
		c.Logging.File = ""
		return nil
	}
	var err error
	if c.Logging.File, err = expandPath(c.Logging.File); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	return nil
}

// compactStrings trims entries and drops blanks and duplicates, keeping order.
func compactStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

package testsupport

import (
	"path/filepath"
	"testing"

	"lintfix/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config backed by a SQLite queue in a unique temp
// directory, with intervals short enough for tests.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.SQLite.Path = filepath.Join(base, "queue.db")
	cfgVal.SQLite.LockPath = filepath.Join(base, "queue.db.lock")
	cfgVal.Redis.KeyPrefix = "{lintfix-test}"
	cfgVal.Worker.PollInterval = 1
	cfgVal.Worker.ClaimWait = 1
	cfgVal.Worker.ErrorRetryInterval = 1
	cfgVal.Worker.HeartbeatInterval = 1
	cfgVal.Worker.FixerTimeout = 5
	cfgVal.Reclaim.Interval = 1
	cfgVal.Reclaim.ClaimTimeout = 30
	cfgVal.Reclaim.DeadWorkerThreshold = 5
	cfgVal.Logging.Level = "error"
	cfgVal.Metrics.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRedis switches the config to the Redis backend at addr.
func WithRedis(addr string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.Backend = config.BackendRedis
		b.cfg.Redis.Addrs = []string{addr}
	}
}

// WithFixerCommand sets the worker fixer command.
func WithFixerCommand(argv ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Worker.FixerCommand = append([]string(nil), argv...)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.SQLite.Path)
}

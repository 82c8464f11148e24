package config

const (
	defaultConfigPath          = "~/.config/lintfix/config.toml"
	defaultStoreBackend        = BackendSQLite
	defaultSQLitePath          = "~/.local/share/lintfix/queue.db"
	defaultSQLiteBusyTimeoutMS = 5000
	defaultRedisAddr           = "127.0.0.1:6379"
	defaultRedisKeyPrefix      = "{lintfix}"
	defaultRedisDialTimeout    = 5
	defaultMaxRetries          = 3
	defaultRetentionDays       = 14
	defaultWorkerConcurrency   = 1
	defaultPollInterval        = 2
	defaultClaimWait           = 30
	defaultErrorRetryInterval  = 10
	defaultHeartbeatInterval   = 15
	defaultFixerTimeout        = 300
	defaultReclaimInterval     = 60
	defaultClaimTimeout        = 900
	defaultDeadWorkerThreshold = 120
	defaultProducerLinter      = "ruff"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultMetricsBind         = "127.0.0.1:9464"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Store: Store{
			Backend: defaultStoreBackend,
		},
		SQLite: SQLite{
			Path:          defaultSQLitePath,
			BusyTimeoutMS: defaultSQLiteBusyTimeoutMS,
		},
		Redis: Redis{
			Addrs:       []string{defaultRedisAddr},
			KeyPrefix:   defaultRedisKeyPrefix,
			DialTimeout: defaultRedisDialTimeout,
		},
		Queue: Queue{
			DefaultMaxRetries: defaultMaxRetries,
			Priorities: map[string]int{
				"F": 30, // pyflakes: undefined names, unused imports
				"E": 20,
				"W": 10,
			},
			RetentionDays: defaultRetentionDays,
		},
		Worker: Worker{
			Concurrency:        defaultWorkerConcurrency,
			PollInterval:       defaultPollInterval,
			ClaimWait:          defaultClaimWait,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			FixerTimeout:       defaultFixerTimeout,
		},
		Reclaim: Reclaim{
			Interval:            defaultReclaimInterval,
			ClaimTimeout:        defaultClaimTimeout,
			DeadWorkerThreshold: defaultDeadWorkerThreshold,
		},
		Producer: Producer{
			Linter:  defaultProducerLinter,
			Exclude: []string{"**/.git/**", "**/node_modules/**", "**/.venv/**"},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Metrics: Metrics{
			Bind: defaultMetricsBind,
		},
	}
}

package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sys/unix"

	"lintfix/internal/config"
	"lintfix/internal/deps"
	"lintfix/internal/queueaccess"
)

const redisCheckTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckWritableParent passes when path is an accessible directory, or does
// not exist yet but its nearest existing ancestor is one, since the store and
// logger create missing directories.
func CheckWritableParent(name, path string) Result {
	if _, err := os.Stat(path); err == nil || !os.IsNotExist(err) {
		return CheckDirectoryAccess(name, path)
	}
	ancestor := path
	for {
		parent := filepath.Dir(ancestor)
		if parent == ancestor {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: no existing ancestor)", path)}
		}
		ancestor = parent
		if _, err := os.Stat(ancestor); err == nil {
			break
		}
	}
	check := CheckDirectoryAccess(name, ancestor)
	if !check.Passed {
		return check
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created under %s)", path, ancestor)}
}

// CheckRedis pings the configured Redis deployment once.
func CheckRedis(ctx context.Context, cfg *config.Config) Result {
	const name = "Redis"

	checkCtx, cancel := context.WithTimeout(ctx, redisCheckTimeout)
	defer cancel()

	client := redis.NewUniversalClient(queueaccess.RedisOptions(cfg))
	defer client.Close()
	if err := client.Ping(checkCtx).Err(); err != nil {
		return Result{Name: name, Detail: summarizeRedisError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", strings.Join(cfg.Redis.Addrs, ","))}
}

// CheckTools reports the fixer and linter binaries. An unset fixer command
// passes because it can be given on the worker command line.
func CheckTools(cfg *config.Config) []Result {
	var requirements []deps.Requirement
	var results []Result
	if len(cfg.Worker.FixerCommand) > 0 {
		requirements = append(requirements, deps.Requirement{
			Name:        "Fixer command",
			Command:     cfg.Worker.FixerCommand[0],
			Description: "Runs once per claimed work item",
		})
	} else {
		results = append(results, Result{Name: "Fixer command", Passed: true, Detail: "not configured (pass one after `lintfix worker --`)"})
	}
	if linter := strings.TrimSpace(cfg.Producer.Linter); linter != "" {
		requirements = append(requirements, deps.Requirement{
			Name:        "Linter",
			Command:     linter,
			Description: "Produces the output fed to `lintfix enqueue`",
			Optional:    true,
		})
	}
	for _, status := range deps.CheckBinaries(requirements) {
		detail := status.Command
		if status.Detail != "" {
			detail = status.Detail
		}
		if !status.Available && status.Optional {
			detail += " (optional)"
		}
		results = append(results, Result{
			Name:   status.Name,
			Passed: status.Available || status.Optional,
			Detail: detail,
		})
	}
	return results
}

// summarizeRedisError produces a human-readable summary for a failed ping.
func summarizeRedisError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "ping timed out (redis unreachable)"
	}
	return err.Error()
}

package preflight

import (
	"context"
	"path/filepath"

	"lintfix/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks that apply to cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	switch cfg.Store.Backend {
	case config.BackendRedis:
		results = append(results, CheckRedis(ctx, cfg))
	default:
		results = append(results, CheckWritableParent("SQLite directory", filepath.Dir(cfg.SQLite.Path)))
	}

	if cfg.Logging.File != "" {
		results = append(results, CheckWritableParent("Log directory", filepath.Dir(cfg.Logging.File)))
	}

	results = append(results, CheckTools(cfg)...)
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

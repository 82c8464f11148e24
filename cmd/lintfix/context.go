package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"lintfix/internal/config"
	"lintfix/internal/logging"
	"lintfix/internal/queue"
	"lintfix/internal/queueaccess"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg)
}

// withStore opens the configured queue for the duration of fn.
func (c *commandContext) withStore(cmd *cobra.Command, fn func(context.Context, queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	ctx := commandContextOrBackground(cmd)
	session, err := queueaccess.OpenSession(ctx, cfg, queueaccess.SessionOptions{})
	if err != nil {
		return fmt.Errorf("open queue (%s): %w", queueaccess.Describe(cfg), err)
	}
	defer session.Close()
	return fn(ctx, session.Store)
}

func commandContextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

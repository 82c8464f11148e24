// Package config loads, normalizes, and validates lintfix configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// LINTFIX_REDIS_ADDR. The Config type centralizes every knob the worker,
// reclaimer, and CLI need so the queue backend, retry budget, and fixer
// command are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config

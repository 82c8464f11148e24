// Package metrics exposes worker and queue metrics in the Prometheus text
// format. Metrics owns its registry; nothing is registered globally.
package metrics

// Package metrics defines the Prometheus instrumentation for capture, analysis,
// broadcast and the HTTP API.
package metrics

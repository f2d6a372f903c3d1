// Package server exposes the service over the network: the spectrum
// WebSocket endpoint that feeds subscribers from the publisher, and the HTTP
// API that serves the track record, health, statistics, configuration, the
// latest spectrum frame and Prometheus metrics.
package server

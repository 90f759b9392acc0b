// Package metrics exposes Prometheus metrics for normalization, archive
// assembly, sessions and the HTTP API.
package metrics

// Package server implements the HTTP API of the recording wizard: session
// lifecycle, metadata and prompt scripts, recording upload and download,
// archive assembly, and the health, config, stats and Prometheus endpoints.
package server

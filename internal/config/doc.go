// Package config provides configuration loading and validation for the
// recording engine. Configuration is YAML layered over built-in defaults,
// with optional .env and RECORDER_* environment overrides.
package config

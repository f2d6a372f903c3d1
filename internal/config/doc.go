// Package config provides configuration loading and validation for the spectrum service.
// It handles YAML-based configuration layered over built-in defaults, with per-section
// validation and helpers that convert integer settings into time.Duration values.
package config

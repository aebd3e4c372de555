// Package config provides configuration loading and validation for the
// audio receiver service. It handles YAML-based configuration with
// per-section validation and ships defaults matching the reference
// capture device.
package config

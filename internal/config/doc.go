// Package config loads and validates YAML configuration for the chatfeed
// binary, with ${VAR} environment expansion and layered defaults.
package config

// Package config handles application configuration loading and management.
//
// Configuration is stored in ~/.overseer/config.json (config.toml and
// config.yaml are accepted too) and holds the resource limits every
// supervised session runs under plus where status reports are written.
package config

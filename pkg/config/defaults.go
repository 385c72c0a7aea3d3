// Package config loads data store settings from the environment and an
// optional dotenv file into an explicit Config value.
package config

import "github.com/DrSkyle/bridgestore/pkg/compress"

// Defaults.
const (
	DefaultEnvFile  = ".env"
	DefaultLogLevel = "info"
	EnvPrefix       = "BRIDGE"
)

// Default returns a Config with no backend configured.
func Default() Config {
	return Config{
		CompressionLevel: compress.DefaultLevel,
		Log: Log{
			Level: DefaultLogLevel,
		},
	}
}

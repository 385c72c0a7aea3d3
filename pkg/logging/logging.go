// Package logging builds the slog loggers used across bridgestore.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// sensitiveKeys are attribute keys whose values never reach a log sink.
var sensitiveKeys = map[string]bool{
	"password": true, "access_key": true, "access_key_id": true, "token": true,
	"secret": true, "secret_access_key": true, "api_key": true, "private_key": true,
	"session_token": true, "signature": true, "credential": true, "credentials": true,
	"connection_string": true,
}

// New returns a logger writing to w at the given level. json selects the
// JSON handler used in headless/CI runs.
func New(w io.Writer, level string, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: redactSensitiveData,
	}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a level name onto slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// redactSensitiveData scrubs sensitive keys from logs.
func redactSensitiveData(groups []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.Attr{
			Key:   a.Key,
			Value: slog.StringValue("[REDACTED]"),
		}
	}
	return a
}

// Package logging builds the server's root slog.Logger from the level key of
// features.toml's [logging] table and the MCSERVER_LOG environment variable
// override.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// EnvOverride is the environment variable that overrides features.toml's
// configured level without requiring a config file edit.
const EnvOverride = "MCSERVER_LOG"

// ParseLevel maps free-text level names to slog.Level, defaulting to Info
// for anything unrecognized.
func ParseLevel(text string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(text)) {
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

// New builds the root logger. configuredLevel comes from features.toml; the
// MCSERVER_LOG environment variable, if set, takes precedence.
func New(configuredLevel string) *slog.Logger {
	level := ParseLevel(configuredLevel)
	if env := os.Getenv(EnvOverride); env != "" {
		level = ParseLevel(env)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

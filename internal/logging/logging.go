package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init installs a text handler on stderr as the default slog logger.
// LOG_LEVEL overrides defaultLevel.
func Init(defaultLevel slog.Level) *slog.Logger {
	level := ParseLevel(os.Getenv("LOG_LEVEL"), defaultLevel)

	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a LOG_LEVEL value to a slog level, falling back to def
// for empty or unknown values.
func ParseLevel(s string, def slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	}
	return def
}

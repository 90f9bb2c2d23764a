// Package logger constructs the process-wide structured logger.
package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger writing to stdout. Level defaults to Info;
// set HIVE_LOG_LEVEL=debug for verbose sync diagnostics.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("HIVE_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

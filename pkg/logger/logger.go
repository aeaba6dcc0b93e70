// Package logger wires structured JSON logging for the service.
package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Local and dev
// environments log at debug, everything else at info.
func New(appEnv string) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

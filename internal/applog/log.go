// Package applog builds the engine's structured logger: JSON records
// rotated through lumberjack on disk, mirroring the logging stack used
// elsewhere in the retrieved corpus (mmp-vice's pkg/log), simplified to a
// single JSON sink rather than that package's dual json+stderr handler.
package applog

import (
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how verbosely the engine logs.
type Config struct {
	// Path is the log file path. Empty disables rotation and logs to
	// stderr via slog.Default() instead.
	Path     string
	Level    slog.Level
	MaxSizeMB int // defaults to 32 if zero
}

// New builds a *slog.Logger per cfg. Callers pass the result to
// soundrt.WithLogger.
func New(cfg Config) *slog.Logger {
	if cfg.Path == "" {
		return slog.Default()
	}
	maxSize := cfg.MaxSizeMB
	if maxSize == 0 {
		maxSize = 32
	}
	w := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    maxSize,
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level})
	return slog.New(h)
}

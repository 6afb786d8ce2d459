package geotile

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/geotile/layer"
)

// Logger wraps slog.Logger with geotile-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(ctx context.Context, k layer.Kind, size int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"kind", k.String(),
			"bytes", size,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "insert completed",
			"kind", k.String(),
			"bytes", size,
		)
	}
}

// LogQuery logs a query.
func (l *Logger) LogQuery(ctx context.Context, radius, minResolution float64, handles int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"radius", radius,
			"min_resolution", minResolution,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"radius", radius,
			"min_resolution", minResolution,
			"handles", handles,
		)
	}
}

// LogRemove logs a remove operation.
func (l *Logger) LogRemove(ctx context.Context, path string, subID int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "remove failed",
			"path", path,
			"sub_id", subID,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "remove completed",
			"path", path,
			"sub_id", subID,
		)
	}
}

// LogEvict logs an eviction pass that dropped something.
func (l *Logger) LogEvict(ctx context.Context, tiles, layers int) {
	if tiles == 0 && layers == 0 {
		return
	}
	l.DebugContext(ctx, "evicted",
		"tiles", tiles,
		"layers", layers,
	)
}

// LogPersist logs a persist operation.
func (l *Logger) LogPersist(ctx context.Context, dirtyTiles, dirtyLayers int, err error) {
	if err != nil {
		l.WarnContext(ctx, "persist incomplete",
			"dirty_tiles", dirtyTiles,
			"dirty_layers", dirtyLayers,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "persist completed",
			"tiles", dirtyTiles,
			"layers", dirtyLayers,
		)
	}
}

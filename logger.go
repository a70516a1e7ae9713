package imcs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/imcs/kind"
)

// Logger wraps slog.Logger with store-specific context.
// Field names are shared by every operation logger below.
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
		Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(1000),
		})),
	}
}

// WithColumn adds a column key field to the logger.
func (l *Logger) WithColumn(key string) *Logger {
	return &Logger{
		Logger: l.Logger.With("column", key),
	}
}

// WithTx tags the logger with the transaction mode.
func (l *Logger) WithTx(writable bool) *Logger {
	mode := "view"
	if writable {
		mode = "update"
	}
	return &Logger{
		Logger: l.Logger.With("tx", mode),
	}
}

// LogAppend logs an append to a column.
func (l *Logger) LogAppend(ctx context.Context, key string, n int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "append failed",
			"column", key,
			"values", n,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "append completed",
			"column", key,
			"values", n,
		)
	}
}

// LogDelete logs a range delete or truncate. till < from means the whole
// column.
func (l *Logger) LogDelete(ctx context.Context, key string, from, till int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"column", key,
			"from", from,
			"till", till,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"column", key,
			"from", from,
			"till", till,
		)
	}
}

// LogParallel logs the outcome of a parallel split.
func (l *Logger) LogParallel(ctx context.Context, interval int64, partitions int, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "parallel evaluation failed",
			"interval", interval,
			"partitions", partitions,
			"error", err,
		)
	case partitions == 0:
		l.DebugContext(ctx, "parallel evaluation rejected",
			"interval", interval,
		)
	default:
		l.DebugContext(ctx, "parallel evaluation planned",
			"interval", interval,
			"partitions", partitions,
		)
	}
}

// LogWire logs a column encoded to or decoded from the wire format.
func (l *Logger) LogWire(ctx context.Context, op string, k kind.Kind, n int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "wire "+op+" failed",
			"kind", k.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "wire "+op+" completed",
			"kind", k.String(),
			"values", n,
		)
	}
}

// LogFlush logs a commit-time flush of dirty pages.
func (l *Logger) LogFlush(ctx context.Context, pages int64, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flush failed",
			"pages", pages,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "flush completed",
			"pages", pages,
			"duration", d,
		)
	}
}

// LogSnapshot logs a snapshot written to a blob store.
func (l *Logger) LogSnapshot(ctx context.Context, name string, columns int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"name", name,
			"columns", columns,
		)
	}
}

// LogRestore logs a store restored from a snapshot.
func (l *Logger) LogRestore(ctx context.Context, name string, columns int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "restore failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot restored",
			"name", name,
			"columns", columns,
		)
	}
}

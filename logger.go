package latsieve

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with sieve-specific context.
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
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithWorker adds a worker field to the logger.
func (l *Logger) WithWorker(worker int) *Logger {
	return &Logger{
		Logger: l.Logger.With("worker", worker),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// WithSeed adds a seed field to the logger.
func (l *Logger) WithSeed(seed uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("seed", seed),
	}
}

// LogStart logs the start or resumption of a run.
func (l *Logger) LogStart(ctx context.Context, workers, listLen, queueLen int, resumed bool) {
	l.InfoContext(ctx, "sieve started",
		"workers", workers,
		"list", listLen,
		"queue", queueLen,
		"resumed", resumed,
	)
}

// LogProgress logs periodic run statistics.
func (l *Logger) LogProgress(ctx context.Context, st Stats, shortest float64) {
	l.InfoContext(ctx, "sieve progress",
		"candidates", st.Candidates,
		"list", st.ListLen,
		"queue", st.QueueLen,
		"collisions", st.Collisions,
		"reductions2", st.Reductions2,
		"reductions3", st.Reductions3,
		"shortest_norm2", shortest,
	)
}

// LogNewShortest logs an improvement of the shortest vector record.
func (l *Logger) LogNewShortest(ctx context.Context, norm2 float64, candidates uint64) {
	l.DebugContext(ctx, "new shortest vector",
		"norm2", norm2,
		"candidates", candidates,
	)
}

// LogFinish logs the end of a run.
func (l *Logger) LogFinish(ctx context.Context, reason string, st Stats, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "sieve failed",
			"candidates", st.Candidates,
			"elapsed", elapsed,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "sieve finished",
		"reason", reason,
		"candidates", st.Candidates,
		"list", st.ListLen,
		"collisions", st.Collisions,
		"elapsed", elapsed,
	)
}

// LogSuspend logs a suspended run.
func (l *Logger) LogSuspend(ctx context.Context, st Stats, cause error) {
	l.InfoContext(ctx, "sieve suspended",
		"candidates", st.Candidates,
		"list", st.ListLen,
		"queue", st.QueueLen,
		"cause", cause,
	)
}

// internal/logger/styled.go
package logger

import (
	"log/slog"

	"github.com/loadforge/loadforge/theme"
)

// LogContext carries a split set of arguments for dual logging: UserArgs are
// shown on the CLI, DetailedArgs are appended only when writing to the log
// file (request/response bodies, raw headers, that kind of thing).
type LogContext struct {
	UserArgs     []any
	DetailedArgs []any
}

// StyledLogger wraps slog.Logger with theme-aware formatting for benchmark
// output. Two implementations exist: PrettyStyledLogger (pterm colours, for
// a terminal) and PlainStyledLogger (no styling, for piped/non-TTY output or
// the log file).
type StyledLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	InfoWithCount(msg string, count int, args ...any)
	InfoWithNumbers(msg string, numbers ...int64)

	InfoWithTarget(msg string, target string, args ...any)
	WarnWithTarget(msg string, target string, args ...any)
	ErrorWithTarget(msg string, target string, args ...any)

	// InfoOutcome logs the result of a single request attempt (success,
	// failure, timeout, rate_limited, cancelled).
	InfoOutcome(msg string, target string, outcome string, args ...any)
	// InfoWithTally logs a running success/failure/timeout breakdown.
	InfoWithTally(msg string, ok, failed, timedOut int, args ...any)

	InfoWithContext(msg string, target string, ctx LogContext)
	WarnWithContext(msg string, target string, ctx LogContext)
	ErrorWithContext(msg string, target string, ctx LogContext)

	GetUnderlying() *slog.Logger
	WithAttrs(attrs ...slog.Attr) StyledLogger
	With(args ...any) StyledLogger
}

// Helper function to convert string slice to interface slice
func toInterfaceSlice(strs []string) []interface{} {
	result := make([]interface{}, len(strs))
	for i, s := range strs {
		result[i] = s
	}
	return result
}

// NewWithTheme creates both a regular logger and a styled logger, picking the
// pretty (coloured) implementation when cfg.PrettyLogs is set and the plain
// one otherwise.
func NewWithTheme(cfg *Config) (*slog.Logger, StyledLogger, func(), error) {
	logger, cleanup, err := New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	appTheme := theme.GetTheme(cfg.Theme)

	var styledLogger StyledLogger
	if cfg.PrettyLogs {
		styledLogger = NewPrettyStyledLogger(logger, appTheme)
	} else {
		styledLogger = NewPlainStyledLogger(logger)
	}

	return logger, styledLogger, cleanup, nil
}

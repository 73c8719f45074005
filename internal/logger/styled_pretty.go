package logger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"

	"github.com/loadforge/loadforge/theme"
)

// PrettyStyledLogger implements StyledLogger with pterm formatting
type PrettyStyledLogger struct {
	logger *slog.Logger
	Theme  *theme.Theme
}

func NewPrettyStyledLogger(logger *slog.Logger, theme *theme.Theme) *PrettyStyledLogger {
	return &PrettyStyledLogger{
		logger: logger,
		Theme:  theme,
	}
}
func (sl *PrettyStyledLogger) Debug(msg string, args ...any) {
	sl.logger.Debug(msg, args...)
}

func (sl *PrettyStyledLogger) Info(msg string, args ...any) {
	sl.logger.Info(msg, args...)
}

func (sl *PrettyStyledLogger) Warn(msg string, args ...any) {
	sl.logger.Warn(msg, args...)
}

func (sl *PrettyStyledLogger) Error(msg string, args ...any) {
	sl.logger.Error(msg, args...)
}

func (sl *PrettyStyledLogger) InfoWithCount(msg string, count int, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, sl.Theme.Counts.Sprint("(", count, ")"))
	sl.logger.Info(styledMsg, args...)
}

func (sl *PrettyStyledLogger) InfoWithNumbers(msg string, numbers ...int64) {
	var formattedNums []string
	for _, num := range numbers {
		formattedNums = append(formattedNums, sl.Theme.Numbers.Sprint(num))
	}

	styledMsg := fmt.Sprintf(msg, toInterfaceSlice(formattedNums)...)
	sl.logger.Info(styledMsg)
}

func (sl *PrettyStyledLogger) InfoWithTarget(msg string, target string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, sl.Theme.Target.Sprint(target))
	sl.logger.Info(styledMsg, args...)
}

func (sl *PrettyStyledLogger) WarnWithTarget(msg string, target string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, sl.Theme.Target.Sprint(target))
	sl.logger.Warn(styledMsg, args...)
}

func (sl *PrettyStyledLogger) ErrorWithTarget(msg string, target string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, sl.Theme.Target.Sprint(target))
	sl.logger.Error(styledMsg, args...)
}

func (sl *PrettyStyledLogger) InfoOutcome(msg string, target string, outcome string, args ...any) {
	var statusStyle *pterm.Style

	switch outcome {
	case "success":
		statusStyle = pterm.NewStyle(sl.Theme.OutcomeOK, pterm.Bold)
	case "timeout", "rate_limited":
		statusStyle = pterm.NewStyle(sl.Theme.OutcomeTimeout, pterm.Bold)
	default:
		statusStyle = pterm.NewStyle(sl.Theme.OutcomeFail, pterm.Bold)
	}

	styledMsg := fmt.Sprintf("%s %s: %s",
		msg, sl.Theme.Target.Sprint(target), statusStyle.Sprint(outcome))

	sl.logger.Info(styledMsg, args...)
}

func (sl *PrettyStyledLogger) InfoWithTally(msg string, ok, failed, timedOut int, args ...any) {
	okStyled := pterm.NewStyle(sl.Theme.OutcomeOK, pterm.Bold).Sprint(ok)
	failedStyled := pterm.NewStyle(sl.Theme.OutcomeFail, pterm.Bold).Sprint(failed)
	timedOutStyled := pterm.NewStyle(sl.Theme.OutcomeTimeout, pterm.Bold).Sprint(timedOut)

	allArgs := make([]any, 0, len(args)+6)
	allArgs = append(allArgs, args...)
	allArgs = append(allArgs,
		"ok", okStyled,
		"failed", failedStyled,
		"timed_out", timedOutStyled,
	)

	sl.logger.Info(msg, allArgs...)
}

func (sl *PrettyStyledLogger) GetUnderlying() *slog.Logger {
	return sl.logger
}

func (sl *PrettyStyledLogger) WithAttrs(attrs ...slog.Attr) StyledLogger {
	args := make([]any, 0, len(attrs)*2)
	for _, attr := range attrs {
		args = append(args, attr.Key, attr.Value)
	}

	return &PrettyStyledLogger{
		logger: sl.logger.With(args...),
		Theme:  sl.Theme,
	}
}

func (sl *PrettyStyledLogger) With(args ...any) StyledLogger {
	return &PrettyStyledLogger{
		logger: sl.logger.With(args...),
		Theme:  sl.Theme,
	}
}

func (sl *PrettyStyledLogger) InfoWithContext(msg string, target string, ctx LogContext) {
	sl.logWithContext(LogLevelInfo, msg, target, ctx)
}

func (sl *PrettyStyledLogger) WarnWithContext(msg string, target string, ctx LogContext) {
	sl.logWithContext(LogLevelWarn, msg, target, ctx)
}

func (sl *PrettyStyledLogger) ErrorWithContext(msg string, target string, ctx LogContext) {
	sl.logWithContext(LogLevelError, msg, target, ctx)
}

// logWithContext is the internal method that handles the dual logging logic
func (sl *PrettyStyledLogger) logWithContext(level string, msg string, target string, ctx LogContext) {
	// CLI: clean messaging
	styledMsg := fmt.Sprintf("%s %s", msg, sl.Theme.Target.Sprint(target))

	switch level {
	case LogLevelInfo:
		sl.logger.Info(styledMsg, ctx.UserArgs...)
	case LogLevelWarn:
		sl.logger.Warn(styledMsg, ctx.UserArgs...)
	case LogLevelError:
		sl.logger.Error(styledMsg, ctx.UserArgs...)
	}

	// log file: detailed hopefully
	if len(ctx.DetailedArgs) > 0 {
		allArgs := make([]interface{}, 0, len(ctx.UserArgs)+len(ctx.DetailedArgs)+2)
		allArgs = append(allArgs, "target", target)
		allArgs = append(allArgs, ctx.UserArgs...)
		allArgs = append(allArgs, ctx.DetailedArgs...)

		detailedCtx := context.WithValue(context.Background(), DefaultDetailedCookie, true)

		switch level {
		case LogLevelInfo:
			sl.logger.InfoContext(detailedCtx, msg, allArgs...)
		case LogLevelWarn:
			sl.logger.WarnContext(detailedCtx, msg, allArgs...)
		case LogLevelError:
			sl.logger.ErrorContext(detailedCtx, msg, allArgs...)
		}
	}
}

package scheduler

import (
	"errors"
	"log/slog"

	"github.com/go-co-op/gocron/v2"
)

// gocronLogger routes gocron's internal logging to slog.
type gocronLogger struct {
	log *slog.Logger
}

func newGocronLogger(log *slog.Logger) gocron.Logger {
	return gocronLogger{log: log.With("source", "gocron")}
}

func (l gocronLogger) Debug(msg string, args ...any) { l.log.Debug(msg, annotate(args)...) }
func (l gocronLogger) Info(msg string, args ...any)  { l.log.Info(msg, annotate(args)...) }
func (l gocronLogger) Warn(msg string, args ...any)  { l.log.Warn(msg, annotate(args)...) }
func (l gocronLogger) Error(msg string, args ...any) { l.log.Error(msg, annotate(args)...) }

// annotate adds an error_kind attribute next to gocron errors that have a
// known cause.
func annotate(args []any) []any {
	out := make([]any, 0, len(args)+2)
	for i := 0; i < len(args); i++ {
		out = append(out, args[i])
		if i+1 >= len(args) {
			break
		}
		key, val := args[i], args[i+1]
		out = append(out, val)
		i++

		err, ok := val.(error)
		if !ok || key != "error" {
			continue
		}
		switch {
		case errors.Is(err, gocron.ErrJobNotFound):
			out = append(out, "error_kind", "job_not_found")
		case errors.Is(err, gocron.ErrStopSchedulerTimedOut):
			out = append(out, "error_kind", "stop_timeout")
		}
	}
	return out
}

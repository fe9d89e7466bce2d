package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// formatterHandler adapts a LogFormatter to the slog.Handler interface, so
// the text/color renderers above can back a Logger the same way the
// built-in JSON handler does.
type formatterHandler struct {
	out   io.Writer
	level slog.Level
	f     LogFormatter
	attrs map[string]interface{}
}

func (h *formatterHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *formatterHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]interface{}, len(h.attrs)+r.NumAttrs())
	for k, v := range h.attrs {
		fields[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		fields[a.Key] = a.Value.Any()
		return true
	})

	entry := LogEntry{
		Timestamp: r.Time,
		Level:     slogLevelToLogLevel(r.Level),
		Message:   r.Message,
		Fields:    fields,
	}
	_, err := fmt.Fprintln(h.out, h.f.Format(entry))
	return err
}

func (h *formatterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make(map[string]interface{}, len(h.attrs)+len(attrs))
	for k, v := range h.attrs {
		merged[k] = v
	}
	for _, a := range attrs {
		merged[a.Key] = a.Value.Any()
	}
	return &formatterHandler{out: h.out, level: h.level, f: h.f, attrs: merged}
}

func (h *formatterHandler) WithGroup(_ string) slog.Handler {
	// Groups are not modeled by LogEntry's flat field map; nesting is
	// flattened rather than rejected so logging never breaks mid-request.
	return h
}

func slogLevelToLogLevel(l slog.Level) LogLevel {
	switch {
	case l < slog.LevelInfo:
		return DEBUG
	case l < slog.LevelWarn:
		return INFO
	case l < slog.LevelError:
		return WARN
	default:
		return ERROR
	}
}

func logLevelToSlogLevel(l LogLevel) slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR, FATAL:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewFromConfig builds a Logger for the given level name ("debug", "info",
// "warn", "error") and format ("json" or "text"). Unknown formats fall
// back to JSON, matching the node package's LogFormat default.
func NewFromConfig(levelStr, format string) *Logger {
	level := logLevelToSlogLevel(LevelFromString(levelStr))

	if format == "text" {
		h := &formatterHandler{out: os.Stderr, level: level, f: &TextFormatter{}}
		return NewWithHandler(h)
	}
	return New(level)
}

package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewZerolog returns a logger writing human-readable lines to out and raw
// JSON to every extra writer. Unknown or empty levels mean info.
func NewZerolog(out io.Writer, level string, extra ...io.Writer) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	w := zerolog.MultiLevelWriter(append([]io.Writer{console}, extra...)...)
	return zerolog.New(w).Level(zerologLevel(level)).With().Timestamp().Logger()
}

func zerologLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// DispatcherLogger exposes a zerolog.Logger through the key/value
// Debug/Info/Warn/Error methods the dispatcher and animation packages
// expect.
type DispatcherLogger struct {
	logger zerolog.Logger
}

func NewDispatcherLogger(logger zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{logger: logger}
}

func (l *DispatcherLogger) Debug(msg string, kv ...any) { emit(l.logger.Debug(), msg, kv) }
func (l *DispatcherLogger) Info(msg string, kv ...any)  { emit(l.logger.Info(), msg, kv) }
func (l *DispatcherLogger) Warn(msg string, kv ...any)  { emit(l.logger.Warn(), msg, kv) }
func (l *DispatcherLogger) Error(msg string, kv ...any) { emit(l.logger.Error(), msg, kv) }

// emit tolerates a nil event, which zerolog returns for disabled levels.
func emit(ev *zerolog.Event, msg string, kv []any) {
	if ev == nil {
		return
	}
	ev.Fields(toFields(kv)).Msg(msg)
}

// toFields pairs up kv, skipping non-string keys and a trailing key with no
// value.
func toFields(kv []any) map[string]any {
	fields := make(map[string]any, len(kv)/2)
	for i := 1; i < len(kv); i += 2 {
		if key, ok := kv[i-1].(string); ok {
			fields[key] = kv[i]
		}
	}
	return fields
}

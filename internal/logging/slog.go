package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// InstrumentationName identifies records sent through the OTel bridge.
const InstrumentationName = "keyframer"

var (
	osStdout = os.Stdout
	osPipe   = os.Pipe
)

// SlogManager owns the process slog.Logger and rebuilds it on Setup.
type SlogManager struct {
	logger      *slog.Logger
	writers     []io.Writer // extra JSON outputs, e.g. GELF
	context     ContextProvider
	logProvider *sdklog.LoggerProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// AddWriter registers an additional JSON output. It takes effect on the
// next Setup.
func (m *SlogManager) AddWriter(w io.Writer) {
	if w != nil {
		m.writers = append(m.writers, w)
	}
}

// SetContextProvider registers attributes appended to every record, for
// example the loaded font and playback status. It takes effect on the next
// Setup.
func (m *SlogManager) SetContextProvider(p ContextProvider) {
	m.context = p
}

// parseLevel accepts the slog level names in any case and falls back to
// info.
func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func handlerOptions(lvl slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 || a.Key != slog.TimeKey {
				return a
			}
			if t, ok := a.Value.Any().(time.Time); ok {
				a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
			}
			return a
		},
	}
}

// Setup rebuilds the logger. Text records go to file, or to stdout when
// file is nil; registered writers get JSON; provider, when set, receives
// every record through the otelslog bridge.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider) {
	opts := handlerOptions(parseLevel(level))
	m.logProvider = provider

	primary := file
	if primary == nil {
		primary = osStdout
	}
	handlers := []slog.Handler{slog.NewTextHandler(primary, opts)}
	for _, w := range m.writers {
		handlers = append(handlers, slog.NewJSONHandler(w, opts))
	}
	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler(InstrumentationName, otelslog.WithLoggerProvider(provider)))
	}

	var root slog.Handler = NewMultiHandler(handlers...)
	if m.context != nil {
		root = NewContextHandler(root, m.context)
	}

	m.logger = slog.New(root)
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush pushes pending OTel records, if any.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

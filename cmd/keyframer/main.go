package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vfproof/keyframer/internal/animation"
	"github.com/vfproof/keyframer/internal/api"
	"github.com/vfproof/keyframer/internal/config"
	"github.com/vfproof/keyframer/internal/dispatcher"
	"github.com/vfproof/keyframer/internal/handlers"
	"github.com/vfproof/keyframer/internal/influx"
	"github.com/vfproof/keyframer/internal/logging"
	intOtel "github.com/vfproof/keyframer/internal/otel"
	"github.com/vfproof/keyframer/internal/storage"
	"github.com/vfproof/keyframer/internal/storage/memory"
	sqlitestorage "github.com/vfproof/keyframer/internal/storage/sqlite"
	"github.com/vfproof/keyframer/internal/stream"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	AppName string = "keyframer"
)

// file paths
var (
	// ConfigDir holds keyframer.cfg.json. KEYFRAMER_CONFIG_DIR overrides it.
	ConfigDir string = "."

	LogFilePath     string
	LogFile         *os.File
	OTelLogFilePath string
	OTelLogFile     *os.File
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// ZLogger is the zerolog logger used by storage, telemetry and the dispatcher
	ZLogger zerolog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	SessionStartTime time.Time = time.Now()

	machine         *animation.Machine
	storageBackend  storage.Backend
	influxManager   *influx.Manager
	snapshotRecord  *influx.Recorder
	streamClient    *stream.Client
	eventDispatcher *dispatcher.Dispatcher
	gelfWriter      io.WriteCloser
)

func loadConfig() error {
	if dir := os.Getenv("KEYFRAMER_CONFIG_DIR"); dir != "" {
		ConfigDir = dir
	}
	return config.Load(ConfigDir)
}

// setupLogging opens the session log file and builds both loggers. Stdout is
// reserved for command replies, so nothing logs there.
func setupLogging() error {
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	var err error
	LogFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)
	LogFile, err = os.OpenFile(LogFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	level := config.GetString("logLevel")

	var extra []io.Writer
	if config.GetBool("graylog.enabled") {
		gelfWriter, err = logging.NewGELFWriter(config.GetString("graylog.address"), AppName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "graylog disabled: %v\n", err)
		} else {
			extra = append(extra, gelfWriter)
		}
	}
	ZLogger = logging.NewZerolog(LogFile, level, extra...)

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelLogFilePath = logging.LogFilePath(logsDir, AppName+".otel", SessionStartTime)
		OTelLogFile, err = os.OpenFile(OTelLogFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open OTel log file: %w", err)
		}
	}
	OTelProvider, err = intOtel.New(intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		ServiceVersion: CurrentVersion,
		BatchTimeout:   otelCfg.BatchTimeout,
		LogWriter:      otelWriter(),
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to set up OTel: %w", err)
	}

	SlogManager = logging.NewSlogManager()
	for _, w := range extra {
		SlogManager.AddWriter(w)
	}
	SlogManager.SetContextProvider(playbackContext)
	SlogManager.Setup(LogFile, level, OTelProvider.LoggerProvider())
	Logger = SlogManager.Logger()
	return nil
}

// otelWriter avoids handing a typed nil *os.File to the exporter.
func otelWriter() io.Writer {
	if OTelLogFile == nil {
		return nil
	}
	return OTelLogFile
}

// playbackContext adds the loaded font and playback status to every slog
// record.
func playbackContext() []slog.Attr {
	if machine == nil {
		return nil
	}
	return []slog.Attr{
		slog.String("font", machine.Configuration().FontName),
		slog.String("status", machine.State().Status.String()),
	}
}

func setupMachine() error {
	animCfg := config.GetAnimationConfig()

	var err error
	machine, err = animation.New(animation.Options{
		SecondsPerKeyframe: animCfg.SecondsPerKeyframe,
		TickInterval:       animCfg.TickInterval,
		Scheduler:          animation.TickerScheduler{},
		Logger:             logging.NewDispatcherLogger(ZLogger.With().Str("component", "animation").Logger()),
	})
	if err != nil {
		return fmt.Errorf("failed to create animation machine: %w", err)
	}
	return nil
}

// setupSinks attaches the optional telemetry recorder and renderer stream.
// Neither is fatal: the engine keeps running without them.
func setupSinks(ctx context.Context) {
	influxCfg := config.GetInfluxConfig()
	if influxCfg.Enabled {
		backupPath := filepath.Join(config.GetString("logsDir"),
			fmt.Sprintf("%s_%s.lp.gz", influxCfg.Bucket, SessionStartTime.Format("20060102_150405")))

		influxManager = influx.NewManager(influxCfg, ZLogger.With().Str("component", "influx").Logger(), backupPath)
		if err := influxManager.Connect(ctx); err != nil {
			Logger.Error("InfluxDB unavailable, snapshots not recorded", "error", err)
			influxManager = nil
		} else {
			snapshotRecord = influx.NewRecorder(influxManager, influxCfg.FlushInterval, ZLogger)
			snapshotRecord.Start()
			machine.OnTick(snapshotRecord.Record)
		}
	}

	streamCfg := config.GetStreamConfig()
	if streamCfg.Enabled {
		streamClient = stream.New(stream.Config{URL: streamCfg.URL, Secret: streamCfg.Secret}, Logger)
		if err := streamClient.Dial(); err != nil {
			Logger.Error("Renderer stream unavailable", "url", streamCfg.URL, "error", err)
			streamClient = nil
		} else {
			machine.OnReset(streamClient.OnReset)
			machine.OnTick(streamClient.OnTick)
		}
	}
}

func setupDispatcher() error {
	var err error
	eventDispatcher, err = dispatcher.New(logging.NewDispatcherLogger(ZLogger.With().Str("component", "dispatcher").Logger()))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	handlers.NewService(handlers.Dependencies{
		Machine: machine,
		Backend: storageBackend,
		Logger:  Logger,
	}).Register(eventDispatcher)
	registerLifecycleHandlers(eventDispatcher)
	return nil
}

// registerLifecycleHandlers registers system command handlers with the dispatcher
func registerLifecycleHandlers(d *dispatcher.Dispatcher) {
	d.Register(":VERSION:", func(e dispatcher.Event) (any, error) {
		return []string{CurrentVersion, BuildDate}, nil
	})

	d.Register(":COMMANDS:", func(e dispatcher.Event) (any, error) {
		return d.Commands(), nil
	})

	d.Register(":GETDIR:LOG:", func(e dispatcher.Event) (any, error) {
		return LogFilePath, nil
	})

	d.Register(":SAVE:", func(e dispatcher.Event) (any, error) {
		path, err := saveAll()
		if err != nil || path == "" {
			return nil, err
		}
		return path, nil
	}, dispatcher.Logged())

	// uploads take a while, so publishing runs on its own worker
	d.Register(":PUBLISH:", func(e dispatcher.Event) (any, error) {
		return publish(e.Args)
	}, dispatcher.Buffered(4), dispatcher.Logged())
}

// publish writes the bookmarks to disk and uploads the file to the
// proofing server. The optional argument overrides the configured tag.
func publish(args []string) (any, error) {
	apiCfg := config.GetAPIConfig()
	if apiCfg.ServerURL == "" {
		return nil, fmt.Errorf("api.serverUrl not configured")
	}

	file, err := saveAll()
	if err != nil {
		return nil, err
	}
	if file == "" {
		return nil, fmt.Errorf("%s storage has no file to publish", config.GetStorageConfig().Type)
	}

	bookmarks, err := storageBackend.ListBookmarks()
	if err != nil {
		return nil, err
	}
	meta := api.UploadMetadata{
		FontName:  machine.Configuration().FontName,
		Bookmarks: len(bookmarks),
		Tag:       apiCfg.Tag,
	}
	if len(args) > 0 && args[0] != "" {
		meta.Tag = args[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := api.New(apiCfg.ServerURL, apiCfg.APIKey)
	if err := client.Healthcheck(ctx); err != nil {
		return nil, err
	}
	if err := client.Upload(ctx, file, meta); err != nil {
		return nil, err
	}
	Logger.Info("Bookmarks published", "file", file, "server", apiCfg.ServerURL, "bookmarks", meta.Bookmarks)
	return file, nil
}

// saveAll flushes telemetry and writes bookmarks to disk where the backend
// supports it. It returns the written file, or "" when there is none.
func saveAll() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if snapshotRecord != nil {
		if err := snapshotRecord.FlushNow(ctx); err != nil {
			Logger.Warn("Failed to flush axis snapshots", "error", err)
		}
	}
	if OTelProvider != nil {
		if err := OTelProvider.Flush(ctx); err != nil {
			Logger.Warn("Failed to flush OTel data", "error", err)
		}
	}

	switch b := storageBackend.(type) {
	case *memory.Backend:
		return b.Export()
	case *sqlitestorage.Backend:
		path := filepath.Join(config.GetString("logsDir"),
			fmt.Sprintf("%s_%s.db", AppName, time.Now().Format("20060102_150405")))
		if err := b.Dump(path); err != nil {
			return "", err
		}
		return path, nil
	}
	return "", nil
}

func shutdown() {
	Logger.Info("Shutting down")

	if eventDispatcher != nil {
		eventDispatcher.Close()
	}
	if machine != nil {
		machine.Pause()
	}
	if snapshotRecord != nil {
		if err := snapshotRecord.Close(); err != nil {
			Logger.Warn("Failed to flush axis snapshots", "error", err)
		}
	}
	if influxManager != nil {
		if err := influxManager.Close(); err != nil {
			Logger.Warn("Failed to close InfluxDB", "error", err)
		}
	}
	if streamClient != nil {
		if err := streamClient.Close(); err != nil {
			Logger.Warn("Failed to close renderer stream", "error", err)
		}
	}
	if storageBackend != nil {
		if err := storageBackend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "OTel shutdown: %v\n", err)
		}
	}
	if gelfWriter != nil {
		_ = gelfWriter.Close()
	}
	if OTelLogFile != nil {
		_ = OTelLogFile.Close()
	}
	if LogFile != nil {
		_ = LogFile.Close()
	}
}

func run(args []string) error {
	if err := loadConfig(); err != nil {
		// defaults are set before the file is read
		fmt.Fprintf(os.Stderr, "%v, using defaults\n", err)
	}
	if err := setupLogging(); err != nil {
		return err
	}
	defer shutdown()
	Logger.Info("Starting up...", "version", CurrentVersion, "build", BuildDate, "config", ConfigDir)

	if len(args) > 0 && strings.ToLower(args[0]) == "setupdb" {
		backend, err := initStorage(ZLogger)
		if err != nil {
			return err
		}
		Logger.Info("DB setup complete.")
		return backend.Close()
	}

	if err := setupMachine(); err != nil {
		return err
	}

	var err error
	storageBackend, err = initStorage(ZLogger)
	if err != nil {
		// bookmark commands report ErrNoBackend, playback still works
		Logger.Error("Storage initialization failed", "error", err)
		storageBackend = nil
	}

	setupSinks(context.Background())
	if err := setupDispatcher(); err != nil {
		return err
	}

	Logger.Info("Ready for commands", "commands", len(eventDispatcher.Commands()))
	return runCommands(eventDispatcher, os.Stdin, os.Stdout)
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

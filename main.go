// ABOUTME: Entry point for the spimeter bridge
// ABOUTME: Loads configuration, applies flags, builds the logger and runs the bridge
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spimeter/spimeter/internal/app"
	"github.com/spimeter/spimeter/internal/config"
	"github.com/spimeter/spimeter/internal/version"
	"github.com/spimeter/spimeter/pkg/spi"
)

var (
	configPath  = flag.String("config", "", "YAML configuration file (defaults are used when empty)")
	envFile     = flag.String("env-file", ".env", "Env file with SPIMETER_* overrides, ignored when missing")
	sourceKind  = flag.String("source", "", "Audio source: capture, file, raw or tone")
	sourcePath  = flag.String("path", "", "Input for file and raw sources, - reads raw F32LE from stdin")
	device      = flag.String("device", "", "Capture device name filter")
	backend     = flag.String("backend", "", "Capture backend: auto, pulse, alsa, jack or null")
	loop        = flag.Bool("loop", false, "Restart file and raw file sources at end of stream (not stdin)")
	spiTarget   = flag.String("spi", "", "SPI target: spi, file:<path> or none")
	granularity = flag.String("granularity", "", "SPI write granularity: sample or buffer")
	display     = flag.String("display", "", "Meter display: ansi, tui or none")
	listen      = flag.String("listen", "", "Monitoring HTTP listen address, e.g. :9100")
	mdnsFlag    = flag.Bool("mdns", false, "Advertise the monitoring endpoint over mDNS")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn or error")
	logFile     = flag.String("log-file", "", "Log output: a file path, stderr or stdout")
	discover    = flag.Duration("discover", 0, "Browse for bridges for the given duration and exit")
	watch       = flag.String("watch", "", "Draw the meter of a remote bridge, e.g. pi.local:9100")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	if *showVersion {
		fmt.Println(version.String())
		return 0
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	logger, closeLog, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log output: %v\n", err)
		return 1
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *discover > 0 {
		n, err := app.Discover(ctx, os.Stdout, *discover, logger)
		if err != nil {
			logger.Error("discovery failed", slog.String("error", err.Error()))
			return 1
		}
		if n == 0 {
			fmt.Fprintln(os.Stderr, "no bridges found")
		}
		return 0
	}

	if *watch != "" {
		if err := app.Watch(ctx, *watch, os.Stdout, logger); err != nil {
			fmt.Fprintf(os.Stderr, "watch failed: %v\n", err)
			logger.Error("watch failed", slog.String("error", err.Error()))
			return 1
		}
		return 0
	}

	logger.Info("starting",
		slog.String("version", version.Version),
		slog.String("source", cfg.Source.Kind),
		slog.String("spi", cfg.SPI.Device),
		slog.String("display", cfg.Display.Mode))

	bridge, err := app.New(cfg, app.Options{Logger: logger})
	if err != nil {
		var acquireErr *spi.AcquireError
		if errors.As(err, &acquireErr) {
			fmt.Fprintf(os.Stderr, "cannot open SPI device: %v\n", acquireErr)
			fmt.Fprintln(os.Stderr, "use -spi none or -spi file:<path> to run without hardware")
		} else {
			fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		}
		logger.Error("startup failed", slog.String("error", err.Error()))
		return 1
	}

	if err := bridge.Run(ctx); err != nil {
		logger.Error("bridge failed", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	return 0
}

// loadConfig layers defaults, the config file, the env file, SPIMETER_* variables and explicit flags
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := config.LoadEnvFile(*envFile); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			cfg.Source.Kind = *sourceKind
		case "path":
			cfg.Source.Path = *sourcePath
			if cfg.Source.Kind == "capture" && *sourceKind == "" {
				cfg.Source.Kind = "file"
			}
		case "device":
			cfg.Source.Device = *device
		case "backend":
			cfg.Source.Backend = *backend
		case "loop":
			cfg.Source.Loop = *loop
		case "spi":
			cfg.SPI.Device = *spiTarget
		case "granularity":
			cfg.SPI.Granularity = *granularity
		case "display":
			cfg.Display.Mode = *display
		case "listen":
			cfg.HTTP.Listen = *listen
		case "mdns":
			cfg.HTTP.MDNS = *mdnsFlag
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "log-file":
			cfg.Logging.Output = *logFile
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initLogger creates the structured logger described by cfg
func initLogger(cfg config.LoggingConfig) (*slog.Logger, func(), error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var (
		out     io.Writer
		closeFn = func() {}
	)
	switch cfg.Output {
	case "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			return nil, nil, err
		}
		out = f
		closeFn = func() { _ = f.Close() }
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339Nano))
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler), closeFn, nil
}

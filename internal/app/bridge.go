// ABOUTME: Bridge application orchestration
// ABOUTME: Acquires the SPI target, wires the stream session to its source and observers, tears down
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/spimeter/spimeter/internal/capture"
	"github.com/spimeter/spimeter/internal/config"
	"github.com/spimeter/spimeter/internal/discovery"
	"github.com/spimeter/spimeter/internal/levels"
	"github.com/spimeter/spimeter/internal/metrics"
	"github.com/spimeter/spimeter/internal/source"
	"github.com/spimeter/spimeter/internal/ui"
	"github.com/spimeter/spimeter/pkg/meter"
	"github.com/spimeter/spimeter/pkg/spi"
	"github.com/spimeter/spimeter/pkg/stream"
)

const shutdownTimeout = 2 * time.Second

// Runner delivers format changes and buffers to a handler until ctx is cancelled
type Runner interface {
	Run(ctx context.Context) error
}

// Options holds the process-level collaborators of a Bridge
type Options struct {
	Logger *slog.Logger
	// Stdout receives the ANSI meter, os.Stdout when nil
	Stdout io.Writer
	// TUIOptions are passed to the bubbletea program in tui display mode
	TUIOptions []tea.ProgramOption
}

// Bridge is one capture stream feeding one SPI target
type Bridge struct {
	config *config.Config
	logger *slog.Logger

	writer  io.WriteCloser
	session *stream.Session
	runner  Runner

	metrics *metrics.Metrics
	health  *health
	hub     *levels.Hub
	tui     *ui.TUI

	listener  net.Listener
	server    *http.Server
	discovery *discovery.Manager

	closeOnce sync.Once
}

// New builds a bridge in two phases. The SPI target is acquired first and an acquisition
// failure is returned as is (see spi.AcquireError) before any stream exists. The stream,
// its source and its observers are built second.
func New(cfg *config.Config, opts Options) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	writer, err := spi.OpenTarget(cfg.SPI.Device, cfg.SPI.DeviceConfig(), spi.Granularity(cfg.SPI.Granularity))
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		config: cfg,
		logger: logger.With(slog.String("component", "app")),
		writer: writer,
	}

	if err := b.build(logger, opts); err != nil {
		b.Close()
		return nil, err
	}

	return b, nil
}

func (b *Bridge) build(logger *slog.Logger, opts Options) error {
	b.metrics = metrics.NewMetrics()
	b.health = newHealth()
	observers := stream.Observers{b.metrics, b.health}

	if b.config.HTTP.Listen != "" {
		b.hub = levels.NewHub(logger)
		observers = append(observers, b.hub)
	}

	var display meter.Display
	switch b.config.Display.Mode {
	case "ansi":
		stdout := opts.Stdout
		if stdout == nil {
			stdout = os.Stdout
		}
		display = meter.NewTerminal(stdout)
	case "tui":
		b.tui = ui.New(ui.StatusMsg{
			Source: describeSource(b.config.Source),
			Target: b.config.SPI.Device,
		}, opts.TUIOptions...)
		observers = append(observers, b.tui)
	}

	session, err := stream.NewSession(stream.Config{
		Writer:   b.writer,
		Display:  display,
		Observer: observers,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	b.session = session
	b.health.session = session.ID()

	runner, err := newRunner(b.config.Source, session, logger)
	if err != nil {
		return err
	}
	b.runner = runner

	if b.config.HTTP.Listen != "" {
		if err := b.listen(logger); err != nil {
			return err
		}
	}

	return nil
}

// newRunner selects the live capture or a file, raw or tone pump
func newRunner(cfg config.SourceConfig, handler stream.Handler, logger *slog.Logger) (Runner, error) {
	if cfg.Kind == "capture" {
		c, err := capture.New(capture.Config{
			Backend:  cfg.Backend,
			Device:   cfg.Device,
			PeriodMs: cfg.PeriodMs,
			Logger:   logger,
		}, handler)
		if err != nil {
			return nil, fmt.Errorf("failed to create capture: %w", err)
		}
		return c, nil
	}

	p, err := source.New(source.Config{
		Kind:       source.Kind(cfg.Kind),
		Path:       cfg.Path,
		SampleRate: cfg.Rate,
		Channels:   cfg.Channels,
		Loop:       cfg.Loop,
		Period:     time.Duration(cfg.PeriodMs) * time.Millisecond,
		Logger:     logger,
	}, handler)
	if err != nil {
		return nil, fmt.Errorf("failed to create source: %w", err)
	}
	return p, nil
}

// listen binds the monitoring listener and prepares its routes
func (b *Bridge) listen(logger *slog.Logger) error {
	ln, err := net.Listen("tcp", b.config.HTTP.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", b.config.HTTP.Listen, err)
	}
	b.listener = ln

	mux := http.NewServeMux()
	mux.Handle("/metrics", b.metrics.Handler())
	mux.Handle("/levels", b.hub)
	mux.Handle("/healthz", b.health)

	b.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if b.config.HTTP.MDNS {
		b.discovery = discovery.NewManager(discovery.Config{
			ServiceName: b.config.HTTP.Name,
			Port:        ln.Addr().(*net.TCPAddr).Port,
			Info:        serviceInfo(b.session.ID()),
			Logger:      logger,
		})
	}

	return nil
}

// Addr returns the bound monitoring address, "" when the listener is disabled
func (b *Bridge) Addr() string {
	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

// Session returns the stream session
func (b *Bridge) Session() *stream.Session {
	return b.session
}

// Run runs the source until it ends, ctx is cancelled or the TUI quits, then tears down
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer b.Close()

	var wg sync.WaitGroup

	if b.hub != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.hub.Run(ctx)
		}()
	}

	if b.server != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.server.Serve(b.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				b.logger.Error("http server failed", slog.String("error", err.Error()))
				cancel()
			}
		}()
		b.logger.Info("monitoring listener started", slog.String("addr", b.Addr()))
	}

	if b.discovery != nil {
		if err := b.discovery.Advertise(); err != nil {
			b.logger.Warn("mdns advertisement failed", slog.String("error", err.Error()))
		}
	}

	if b.tui != nil {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := b.tui.Run(); err != nil {
				b.logger.Error("tui failed", slog.String("error", err.Error()))
			}
			cancel()
		}()
		go func() {
			defer wg.Done()
			select {
			case <-b.tui.QuitChan():
				b.logger.Info("quit requested from tui")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	b.logger.Info("bridge running",
		slog.String("session", b.session.ID()),
		slog.String("source", describeSource(b.config.Source)),
		slog.String("target", b.config.SPI.Device))

	err := b.runner.Run(ctx)
	cancel()

	if b.tui != nil {
		b.tui.Stop()
	}
	if b.server != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		if serr := b.server.Shutdown(shutdownCtx); serr != nil {
			b.logger.Warn("http shutdown failed", slog.String("error", serr.Error()))
		}
		done()
	}
	wg.Wait()

	if err != nil {
		return fmt.Errorf("source stopped: %w", err)
	}
	b.logger.Info("bridge stopped")
	return nil
}

// Close releases the SPI target, the listener and the mDNS advertisement. Safe to call twice.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		if b.discovery != nil {
			b.discovery.Stop()
		}
		if b.server != nil {
			b.server.Close()
		}
		if b.listener != nil {
			b.listener.Close()
		}
		if err := b.writer.Close(); err != nil {
			b.logger.Warn("failed to close spi target", slog.String("error", err.Error()))
		}
	})
}

func serviceInfo(session string) []string {
	return []string{
		"levels=/levels",
		"metrics=/metrics",
		"healthz=/healthz",
		"session=" + session,
	}
}

func describeSource(s config.SourceConfig) string {
	switch s.Kind {
	case "capture":
		backend := s.Backend
		if backend == "" {
			backend = "auto"
		}
		if s.Device != "" {
			return "capture " + backend + " " + strconv.Quote(s.Device)
		}
		return "capture " + backend
	case string(source.KindTone):
		return fmt.Sprintf("tone %dHz %dch", s.Rate, s.Channels)
	default:
		return s.Kind + " " + s.Path
	}
}

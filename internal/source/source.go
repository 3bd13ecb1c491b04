// ABOUTME: File and tone driven stream sources
// ABOUTME: Feeds a stream handler from decoded audio, paced like a live capture
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spimeter/spimeter/pkg/audio"
	"github.com/spimeter/spimeter/pkg/audio/decode"
	"github.com/spimeter/spimeter/pkg/stream"
)

// Kind selects what a Pump reads from
type Kind string

const (
	KindFile Kind = "file"
	KindRaw  Kind = "raw"
	KindTone Kind = "tone"
)

const DefaultPeriod = 20 * time.Millisecond

// Config configures a Pump
type Config struct {
	Kind Kind
	// Path of the file to decode. "-" reads raw samples from stdin.
	Path string
	// SampleRate and Channels describe raw and tone sources
	SampleRate int
	Channels   int
	// Loop restarts file sources at end of stream. Not valid for stdin.
	Loop bool
	// Period is the duration of audio delivered per buffer
	Period time.Duration
	Logger *slog.Logger
}

// Pump reads a decoded source and delivers it to a handler one period at a time
type Pump struct {
	config  Config
	handler stream.Handler
	logger  *slog.Logger
	open    func() (decode.Source, error)
	// live sources block on read and need no pacing
	live bool
}

// New creates a pump. The source is opened when Run starts.
func New(config Config, handler stream.Handler) (*Pump, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if config.Period <= 0 {
		config.Period = DefaultPeriod
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pump{
		config:  config,
		handler: handler,
		logger:  logger.With(slog.String("component", "source"), slog.String("kind", string(config.Kind))),
	}

	switch config.Kind {
	case KindFile:
		if config.Path == "" {
			return nil, fmt.Errorf("file source needs a path")
		}
		p.open = func() (decode.Source, error) { return decode.Open(config.Path) }
	case KindRaw:
		if config.Path == "" {
			return nil, fmt.Errorf("raw source needs a path or -")
		}
		if config.Path == "-" && config.Loop {
			return nil, fmt.Errorf("stdin cannot be looped")
		}
		p.open = func() (decode.Source, error) {
			return decode.OpenRaw(config.Path, config.SampleRate, config.Channels)
		}
		p.live = config.Path == "-"
	case KindTone:
		if config.SampleRate < 1 || config.Channels < 1 {
			return nil, fmt.Errorf("tone source needs rate and channels, got %d/%d", config.SampleRate, config.Channels)
		}
		p.open = func() (decode.Source, error) {
			return NewToneSource(config.SampleRate, config.Channels), nil
		}
	default:
		return nil, fmt.Errorf("unknown source kind %q", config.Kind)
	}

	return p, nil
}

// Run delivers buffers until the source ends or ctx is cancelled
func (p *Pump) Run(ctx context.Context) error {
	src, err := p.open()
	if err != nil {
		return err
	}
	defer func() { src.Close() }()

	format := decode.Format(src)
	if !format.Configured() {
		return fmt.Errorf("%w: %s", audio.ErrInvalidFormat, format)
	}
	p.announce(format, audio.Format{})

	var ticker *time.Ticker
	if !p.live {
		ticker = time.NewTicker(p.config.Period)
		defer ticker.Stop()
	}

	samples := make([]float32, p.periodSamples(format))
	buf := make([]byte, 0, len(samples)*audio.SampleWidth)

	for {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		n, err := p.read(ctx, src, samples)
		if ctx.Err() != nil {
			return nil
		}
		if n > 0 {
			buf = audio.AppendF32LE(buf[:0], samples[:n])
			p.handler.OnBufferReady(stream.NewBuffer(buf))
		}

		if err == nil {
			continue
		}
		if !errors.Is(err, io.EOF) {
			return fmt.Errorf("source read failed: %w", err)
		}
		if !p.config.Loop {
			p.logger.Info("end of stream")
			return nil
		}

		src.Close()
		next, err := p.open()
		if err != nil {
			return fmt.Errorf("failed to reopen source: %w", err)
		}
		src = next

		if f := decode.Format(src); f != format {
			if !f.Configured() {
				return fmt.Errorf("%w: %s", audio.ErrInvalidFormat, f)
			}
			p.announce(f, format)
			format = f
			samples = make([]float32, p.periodSamples(format))
		}
		p.logger.Debug("looping source")
	}
}

type readResult struct {
	n   int
	err error
}

// read fills dst from src. Live reads block on stdin and ignore ctx, so
// they run in their own goroutine and are abandoned on cancel.
func (p *Pump) read(ctx context.Context, src decode.Source, dst []float32) (int, error) {
	if !p.live {
		return src.Read(dst)
	}

	done := make(chan readResult, 1)
	go func() {
		n, err := src.Read(dst)
		done <- readResult{n, err}
	}()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r := <-done:
		return r.n, r.err
	}
}

// announce sends a format change to the handler
func (p *Pump) announce(format, prev audio.Format) {
	p.logger.Info("source opened",
		slog.String("path", p.config.Path),
		slog.Int("rate", format.SampleRate),
		slog.Int("channels", format.Channels),
		slog.Bool("reopened", prev.Configured()))
	p.handler.OnFormatChanged(format.Param())
}

// periodSamples returns the number of interleaved samples in one period
func (p *Pump) periodSamples(f audio.Format) int {
	frames := int(int64(f.SampleRate) * int64(p.config.Period) / int64(time.Second))
	if frames < 1 {
		frames = 1
	}
	return frames * f.Channels
}

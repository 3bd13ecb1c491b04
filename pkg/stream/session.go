// ABOUTME: Stream session
// ABOUTME: Owns the processing context and implements Handler for one stream
package stream

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spimeter/spimeter/pkg/audio"
	"github.com/spimeter/spimeter/pkg/meter"
)

// Context is the state carried from one callback to the next
type Context struct {
	Format audio.Format
	Cursor meter.Cursor
}

// Config configures a Session
type Config struct {
	// Writer receives the sample bytes (required)
	Writer io.Writer
	// Display renders each frame, may be nil
	Display meter.Display
	// Observer follows the session, may be nil
	Observer Observer
	Logger   *slog.Logger
}

// Session processes one audio stream
type Session struct {
	id        string
	ctx       Context
	proc      *Processor
	display   meter.Display
	observer  Observer
	logger    *slog.Logger
	warnedCfg bool
}

var _ Handler = (*Session)(nil)

// NewSession creates a session in the unconfigured state
func NewSession(cfg Config) (*Session, error) {
	if cfg.Writer == nil {
		return nil, fmt.Errorf("writer is required")
	}

	id := uuid.NewString()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = Observers(nil)
	}

	return &Session{
		id:       id,
		proc:     NewProcessor(cfg.Writer),
		display:  cfg.Display,
		observer: observer,
		logger:   logger.With(slog.String("component", "stream"), slog.String("session", id)),
	}, nil
}

// ID returns the session identifier used in logs
func (s *Session) ID() string {
	return s.id
}

// Format returns the negotiated format, zero until the first accepted format change
func (s *Session) Format() audio.Format {
	return s.ctx.Format
}

// OnFormatChanged accepts raw F32LE audio formats and ignores everything else
func (s *Session) OnFormatChanged(param *audio.Param) {
	if param == nil {
		s.logger.Debug("format cleared")
		return
	}

	pp, err := param.Parse()
	if err != nil {
		s.logger.Debug("ignoring unparsable format", slog.String("error", err.Error()))
		return
	}
	if !pp.IsRawAudio() {
		s.logger.Debug("ignoring non raw audio format",
			slog.String("media_type", pp.MediaType),
			slog.String("media_subtype", pp.MediaSubtype))
		return
	}

	f, err := pp.Format()
	if err != nil {
		s.logger.Debug("ignoring raw format", slog.String("error", err.Error()))
		return
	}

	// A frame drawn for another channel count cannot be overwritten in place.
	if f.Channels != s.ctx.Format.Channels {
		s.ctx.Cursor = meter.Cursor{}
	}
	s.ctx.Format = f
	s.warnedCfg = false

	s.logger.Info(fmt.Sprintf("capturing rate:%d channels:%d", f.SampleRate, f.Channels),
		slog.Int("rate", f.SampleRate),
		slog.Int("channels", f.Channels))

	s.observer.FormatChanged(f)
}

// OnBufferReady processes one buffer. It never panics on short or malformed buffers.
func (s *Session) OnBufferReady(buf *Buffer) {
	if buf == nil {
		s.logger.Warn("out of buffers")
		s.observer.BufferSkipped(SkipNoBuffer)
		return
	}
	if len(buf.Datas) == 0 {
		s.observer.BufferSkipped(SkipEmpty)
		return
	}
	if !s.ctx.Format.Configured() {
		if !s.warnedCfg {
			s.logger.Warn("skipping buffers until a format is negotiated")
			s.warnedCfg = true
		}
		s.observer.BufferSkipped(SkipUnconfigured)
		return
	}

	frame, st := s.proc.Process(buf.Datas[0], s.ctx.Format.Channels)
	if st.WriteErrors > 0 {
		s.logger.Warn("failed to write to SPI",
			slog.Int("failures", st.WriteErrors),
			slog.Int("samples", st.Samples),
			slog.String("error", st.Err.Error()))
	}

	if s.display != nil {
		if err := s.display.Render(frame, &s.ctx.Cursor); err != nil {
			s.logger.Debug("render failed", slog.String("error", err.Error()))
		}
	}

	s.observer.FrameProcessed(frame, st)
}

// ABOUTME: Raw F32LE stream decoder
// ABOUTME: Reads headerless little-endian float32 samples, e.g. from pw-record on stdin
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/spimeter/spimeter/pkg/audio"
)

// RawSource reads a headerless F32LE stream with a known format
type RawSource struct {
	r          io.Reader
	sampleRate int
	channels   int
	buf        []byte
}

// NewRaw creates a raw decoder. The stream carries no header so rate and channels are required.
func NewRaw(r io.Reader, sampleRate, channels int) (*RawSource, error) {
	if sampleRate < 1 || channels < 1 {
		return nil, fmt.Errorf("%w: rate=%d channels=%d", ErrInvalidRawFormat, sampleRate, channels)
	}
	return &RawSource{r: r, sampleRate: sampleRate, channels: channels}, nil
}

func (s *RawSource) Read(dst []float32) (int, error) {
	need := len(dst) * audio.SampleWidth
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]

	n, err := io.ReadFull(s.r, buf)
	eof := errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
	if err != nil && !eof {
		return 0, fmt.Errorf("raw read error: %w", err)
	}

	// a trailing partial sample is dropped
	samples := n / audio.SampleWidth
	for i := 0; i < samples; i++ {
		dst[i] = audio.SampleFromF32LE(buf[i*audio.SampleWidth:])
	}

	if samples == 0 && eof {
		return 0, io.EOF
	}
	return samples, nil
}

func (s *RawSource) SampleRate() int { return s.sampleRate }
func (s *RawSource) Channels() int   { return s.channels }
func (s *RawSource) Close() error    { return nil }

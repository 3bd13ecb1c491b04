// ABOUTME: WAV audio decoder
// ABOUTME: Decodes integer PCM WAV files to float32 samples
package decode

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spimeter/spimeter/pkg/audio"
)

const wavFormatPCM = 1

// WAVSource decodes an integer PCM WAV stream
type WAVSource struct {
	dec        *wav.Decoder
	buf        *goaudio.IntBuffer
	sampleRate int
	channels   int
	bitDepth   int
}

// NewWAV creates a WAV decoder positioned at the start of the PCM data
func NewWAV(r io.ReadSeeker) (*WAVSource, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid wav file", ErrUnsupportedFormat)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: wav encoding %d (only integer PCM)", ErrUnsupportedFormat, dec.WavAudioFormat)
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("failed to find wav PCM data: %w", err)
	}

	return &WAVSource{
		dec: dec,
		buf: &goaudio.IntBuffer{
			Format: dec.Format(),
			Data:   make([]int, 4096),
		},
		sampleRate: int(dec.SampleRate),
		channels:   int(dec.NumChans),
		bitDepth:   int(dec.BitDepth),
	}, nil
}

func (s *WAVSource) Read(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if cap(s.buf.Data) < len(dst) {
		s.buf.Data = make([]int, len(dst))
	}
	s.buf.Data = s.buf.Data[:len(dst)]

	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil {
		return 0, fmt.Errorf("wav decode error: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	for i := 0; i < n; i++ {
		v := s.buf.Data[i]
		// 8-bit WAV is unsigned
		if s.bitDepth == 8 {
			v -= 128
		}
		dst[i] = audio.SampleFromInt(int32(v), s.bitDepth)
	}
	return n, nil
}

func (s *WAVSource) SampleRate() int { return s.sampleRate }
func (s *WAVSource) Channels() int   { return s.channels }
func (s *WAVSource) Close() error    { return nil }

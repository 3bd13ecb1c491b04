// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC frames to float32 samples
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/spimeter/spimeter/pkg/audio"
)

// FLACSource decodes a FLAC stream frame by frame
type FLACSource struct {
	stream     *flac.Stream
	sampleRate int
	channels   int
	bitDepth   int

	// decoded samples of the current frame not yet handed out
	pending  []float32
	frameBuf []float32
}

// NewFLAC creates a new FLAC decoder
func NewFLAC(r io.Reader) (*FLACSource, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	return &FLACSource{
		stream:     stream,
		sampleRate: int(info.SampleRate),
		channels:   int(info.NChannels),
		bitDepth:   int(info.BitsPerSample),
	}, nil
}

func (s *FLACSource) Read(dst []float32) (int, error) {
	n := 0
	for n < len(dst) {
		if len(s.pending) == 0 {
			if err := s.nextFrame(); err != nil {
				if errors.Is(err, io.EOF) && n > 0 {
					return n, nil
				}
				return n, err
			}
			continue
		}
		m := copy(dst[n:], s.pending)
		s.pending = s.pending[m:]
		n += m
	}
	return n, nil
}

func (s *FLACSource) nextFrame() error {
	frame, err := s.stream.ParseNext()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("flac decode error: %w", err)
	}

	out := s.frameBuf[:0]
	for i := 0; i < int(frame.BlockSize); i++ {
		for ch := 0; ch < s.channels; ch++ {
			out = append(out, audio.SampleFromInt(frame.Subframes[ch].Samples[i], s.bitDepth))
		}
	}
	s.frameBuf = out
	s.pending = out
	return nil
}

func (s *FLACSource) SampleRate() int { return s.sampleRate }
func (s *FLACSource) Channels() int   { return s.channels }
func (s *FLACSource) Close() error    { return nil }

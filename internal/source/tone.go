// ABOUTME: Test tone generator
// ABOUTME: Generates a sine wave on every channel for running without an audio server
package source

import (
	"math"
)

const (
	DefaultToneFrequency = 440.0
	DefaultToneAmplitude = 0.5
)

// ToneSource generates an endless sine tone
type ToneSource struct {
	sampleIndex uint64
	frequency   float64
	amplitude   float64
	sampleRate  int
	channels    int
}

// NewToneSource creates a tone generator at 440 Hz and half scale
func NewToneSource(sampleRate, channels int) *ToneSource {
	return &ToneSource{
		frequency:  DefaultToneFrequency,
		amplitude:  DefaultToneAmplitude,
		sampleRate: sampleRate,
		channels:   channels,
	}
}

func (s *ToneSource) Read(dst []float32) (int, error) {
	frames := len(dst) / s.channels

	for i := 0; i < frames; i++ {
		t := float64(s.sampleIndex+uint64(i)) / float64(s.sampleRate)
		v := float32(s.amplitude * math.Sin(2*math.Pi*s.frequency*t))
		for ch := 0; ch < s.channels; ch++ {
			dst[i*s.channels+ch] = v
		}
	}

	s.sampleIndex += uint64(frames)
	return frames * s.channels, nil
}

func (s *ToneSource) SampleRate() int { return s.sampleRate }
func (s *ToneSource) Channels() int   { return s.channels }
func (s *ToneSource) Close() error    { return nil }

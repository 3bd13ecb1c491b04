// ABOUTME: Decoder interface definition
// ABOUTME: Common interface for all decoders and extension based selection
package decode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spimeter/spimeter/pkg/audio"
)

// Source yields interleaved float32 samples
type Source interface {
	// Read fills dst with samples in [-1, 1] and returns the number written.
	// It returns 0, io.EOF once the stream is exhausted.
	Read(dst []float32) (int, error)

	SampleRate() int
	Channels() int

	// Close releases decoder resources. It does not close the reader the decoder was built on.
	Close() error
}

// Format returns the stream format s delivers
func Format(s Source) audio.Format {
	return audio.Format{
		SampleRate: s.SampleRate(),
		Channels:   s.Channels(),
		Encoding:   audio.EncodingF32LE,
	}
}

// Open decodes the file at path, picking the decoder from the file extension
func Open(path string) (Source, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wav", ".mp3", ".flac", ".ogg", ".oga":
	default:
		return nil, fmt.Errorf("%w: %q (supported: .wav, .mp3, .flac, .ogg)", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}

	var src Source
	switch ext {
	case ".wav":
		src, err = NewWAV(f)
	case ".mp3":
		src, err = NewMP3(f)
	case ".flac":
		src, err = NewFLAC(f)
	default:
		src, err = NewVorbis(f)
	}
	if err != nil {
		f.Close()
		return nil, err
	}

	return &fileSource{Source: src, f: f}, nil
}

// OpenRaw opens a raw F32LE file. "-" reads standard input.
func OpenRaw(path string, sampleRate, channels int) (Source, error) {
	if path == "-" {
		return NewRaw(os.Stdin, sampleRate, channels)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open raw file: %w", err)
	}

	src, err := NewRaw(f, sampleRate, channels)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileSource{Source: src, f: f}, nil
}

// fileSource closes the file a decoder reads from
type fileSource struct {
	Source
	f *os.File
}

func (s *fileSource) Close() error {
	err := s.Source.Close()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}

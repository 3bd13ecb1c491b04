// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 audio to float32 samples
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/spimeter/spimeter/pkg/audio"
)

// MP3Source decodes an MP3 stream
type MP3Source struct {
	dec *mp3.Decoder
	buf []byte
}

// NewMP3 creates a new MP3 decoder
func NewMP3(r io.Reader) (*MP3Source, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}
	return &MP3Source{dec: dec}, nil
}

func (s *MP3Source) Read(dst []float32) (int, error) {
	// go-mp3 emits 16-bit little-endian stereo
	need := len(dst) * 2
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]

	n, err := io.ReadFull(s.dec, buf)
	eof := errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
	if err != nil && !eof {
		return 0, fmt.Errorf("mp3 decode error: %w", err)
	}

	samples := n / 2
	for i := 0; i < samples; i++ {
		v := int16(binary.LittleEndian.Uint16(buf[i*2:]))
		dst[i] = audio.SampleFromInt(int32(v), 16)
	}

	if samples == 0 && eof {
		return 0, io.EOF
	}
	return samples, nil
}

func (s *MP3Source) SampleRate() int { return s.dec.SampleRate() }
func (s *MP3Source) Channels() int   { return 2 }
func (s *MP3Source) Close() error    { return nil }

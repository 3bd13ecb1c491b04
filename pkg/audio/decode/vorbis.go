// ABOUTME: Ogg Vorbis audio decoder
// ABOUTME: Wraps oggvorbis which already decodes to float32
package decode

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
)

// vorbisReader is the part of oggvorbis.Reader a VorbisSource uses
type vorbisReader interface {
	Read(p []float32) (int, error)
	SampleRate() int
	Channels() int
}

// VorbisSource decodes an Ogg Vorbis stream
type VorbisSource struct {
	dec vorbisReader
}

// NewVorbis creates a new Ogg Vorbis decoder
func NewVorbis(r io.Reader) (*VorbisSource, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Ogg Vorbis: %w", err)
	}
	return &VorbisSource{dec: dec}, nil
}

func (s *VorbisSource) Read(dst []float32) (int, error) {
	// keep reads frame aligned
	ch := s.dec.Channels()
	dst = dst[:len(dst)-len(dst)%ch]
	if len(dst) == 0 {
		return 0, nil
	}

	n, err := s.dec.Read(dst)
	if n > 0 {
		return n, nil
	}
	return 0, err
}

func (s *VorbisSource) SampleRate() int { return s.dec.SampleRate() }
func (s *VorbisSource) Channels() int   { return s.dec.Channels() }
func (s *VorbisSource) Close() error    { return nil }

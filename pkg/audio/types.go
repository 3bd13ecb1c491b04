// ABOUTME: Audio type definitions
// ABOUTME: Defines the negotiated capture format and float32 sample helpers
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// SampleWidth is the size in bytes of one F32LE sample
const SampleWidth = 4

// Encoding names a sample encoding
type Encoding string

const (
	// EncodingF32LE is 32-bit little-endian IEEE 754 float, the only encoding the pipeline accepts
	EncodingF32LE Encoding = "F32LE"
)

// Format describes the negotiated stream format
type Format struct {
	SampleRate int
	Channels   int
	Encoding   Encoding
}

// Configured reports whether the format can drive the processing loop
func (f Format) Configured() bool {
	return f.Channels >= 1 && f.SampleRate >= 1 && f.Encoding == EncodingF32LE
}

// FrameBytes returns the size of one interleaved frame (one sample per channel)
func (f Format) FrameBytes() int {
	return f.Channels * SampleWidth
}

func (f Format) String() string {
	return fmt.Sprintf("%s %dHz %dch", f.Encoding, f.SampleRate, f.Channels)
}

// Param renders the format as a format-change payload
func (f Format) Param() *Param {
	p := NewParam(MediaTypeAudio, MediaSubtypeRaw,
		"format", string(f.Encoding),
		"rate", fmt.Sprint(f.SampleRate),
		"channels", fmt.Sprint(f.Channels),
	)
	return &p
}

// SampleFromF32LE decodes one little-endian float32 sample
func SampleFromF32LE(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

// PutF32LE encodes one sample into b, which must hold at least SampleWidth bytes
func PutF32LE(b []byte, sample float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(sample))
}

// AppendF32LE appends interleaved samples to dst in F32LE encoding
func AppendF32LE(dst []byte, samples []float32) []byte {
	var b [SampleWidth]byte
	for _, s := range samples {
		PutF32LE(b[:], s)
		dst = append(dst, b[:]...)
	}
	return dst
}

// SampleFromInt converts a signed integer PCM sample of the given bit depth to [-1, 1)
func SampleFromInt(sample int32, bitDepth int) float32 {
	if bitDepth < 2 || bitDepth > 32 {
		return 0
	}
	return float32(float64(sample) / float64(int64(1)<<(bitDepth-1)))
}

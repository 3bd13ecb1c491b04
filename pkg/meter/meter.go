// ABOUTME: Peak scale and frame types
// ABOUTME: Defines Frame, Cursor, Display and the peak to bar mapping
package meter

import (
	"math"
	"strings"
)

const (
	// Scale is the number of bar cells per unit of amplitude
	Scale = 30
	// MaxIndex is the last cell of the bar
	MaxIndex = 39
	// Width is the number of cells between the bar delimiters
	Width = MaxIndex + 2

	Marker = '*'
	Blank  = ' '
)

// Frame is the result of processing one buffer
type Frame struct {
	Peaks             []float32
	SamplesPerChannel int
}

// Clone returns a copy that does not share the peaks slice
func (f Frame) Clone() Frame {
	peaks := make([]float32, len(f.Peaks))
	copy(peaks, f.Peaks)
	return Frame{Peaks: peaks, SamplesPerChannel: f.SamplesPerChannel}
}

// Cursor records whether a frame is already on screen
type Cursor struct {
	Drawn bool
}

// Display shows processed frames
type Display interface {
	Render(f Frame, cur *Cursor) error
}

// PeakIndex maps a peak amplitude to a cell index in [0, MaxIndex]
func PeakIndex(peak float32) int {
	v := math.Round(float64(peak) * Scale)
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > MaxIndex {
		return MaxIndex
	}
	return int(v)
}

// Bar returns peakIndex+1 markers followed by Width-1-peakIndex blanks
func Bar(peak float32) string {
	idx := PeakIndex(peak)
	return strings.Repeat(string(Marker), idx+1) + strings.Repeat(string(Blank), MaxIndex+1-idx)
}

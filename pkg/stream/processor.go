// ABOUTME: Buffer processor
// ABOUTME: De-interleaves F32LE samples, forwards them to the writer and tracks peaks
package stream

import (
	"io"

	"github.com/spimeter/spimeter/pkg/audio"
	"github.com/spimeter/spimeter/pkg/meter"
)

// Stats describes the writes of one buffer
type Stats struct {
	Samples      int
	BytesWritten int
	WriteErrors  int
	// Err is the first write error of the buffer
	Err error
}

func (st *Stats) fail(err error) {
	st.WriteErrors++
	if st.Err == nil {
		st.Err = err
	}
}

// Flusher is implemented by writers that batch the samples of a buffer
type Flusher interface {
	Flush() error
}

// Processor streams the samples of a buffer to a writer
type Processor struct {
	w io.Writer
}

// NewProcessor creates a processor writing to w
func NewProcessor(w io.Writer) *Processor {
	return &Processor{w: w}
}

// Process walks d channel by channel. Channel c visits the interleaved positions
// c, c+channels, ... below floor(size/4); every visited sample is written as its raw
// 4 bytes before the next one is read. A write failure is recorded and the walk goes on.
//
// channels must be at least 1.
func (p *Processor) Process(d Data, channels int) (meter.Frame, Stats) {
	size := d.Size
	if size < 0 || size > len(d.Bytes) {
		size = len(d.Bytes)
	}
	total := size / audio.SampleWidth

	var st Stats
	peaks := make([]float32, channels)

	for c := 0; c < channels; c++ {
		var peak float32
		for pos := c; pos < total; pos += channels {
			off := pos * audio.SampleWidth
			sample := d.Bytes[off : off+audio.SampleWidth : off+audio.SampleWidth]

			st.Samples++
			n, err := p.w.Write(sample)
			st.BytesWritten += n
			if err != nil {
				st.fail(err)
			}

			v := audio.SampleFromF32LE(sample)
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
		peaks[c] = peak
	}

	if f, ok := p.w.(Flusher); ok {
		if err := f.Flush(); err != nil {
			st.fail(err)
		}
	}

	return meter.Frame{Peaks: peaks, SamplesPerChannel: total / channels}, st
}

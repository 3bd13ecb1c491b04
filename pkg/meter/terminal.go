// ABOUTME: ANSI terminal renderer for the VU meter
// ABOUTME: Prints one line per channel and moves the cursor up to redraw
package meter

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// Terminal renders frames as plain lines with cursor-up redraw
type Terminal struct {
	w io.Writer
}

// NewTerminal creates a renderer writing to w
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

// Render prints f. When cur says a frame was drawn the cursor first moves up over it.
func (t *Terminal) Render(f Frame, cur *Cursor) error {
	bw := bufio.NewWriter(t.w)

	if cur.Drawn {
		fmt.Fprintf(bw, "\x1b[%dA", len(f.Peaks)+1)
	}

	fmt.Fprintf(bw, "captured %d samples\n", f.SamplesPerChannel)
	for c, peak := range f.Peaks {
		fmt.Fprintf(bw, "channel %d: |%s| peak:%s\n", c, Bar(peak), FormatPeak(peak))
	}

	cur.Drawn = true
	return bw.Flush()
}

// FormatPeak prints the shortest representation of a float32 peak
func FormatPeak(peak float32) string {
	return strconv.FormatFloat(float64(peak), 'g', -1, 32)
}

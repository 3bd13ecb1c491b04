// ABOUTME: VU meter package
// ABOUTME: Maps peaks to a bounded bar scale and redraws frames in place
// Package meter converts per-channel peak amplitudes into a text VU meter.
//
// A peak is mapped to an index on a 40-cell scale with PeakIndex. Terminal renders one
// frame per buffer and, once a frame has been drawn, moves the cursor back up with an
// ANSI ESC[<n>A sequence so the next frame overwrites it.
//
// Example:
//
//	term := meter.NewTerminal(os.Stdout)
//	var cur meter.Cursor
//	err := term.Render(meter.Frame{Peaks: []float32{0.5, 0.9}, SamplesPerChannel: 512}, &cur)
package meter

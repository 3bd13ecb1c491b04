// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Param and F32LE sample conversion functions
// Package audio provides the fundamental types shared by the capture pipeline.
//
// This package defines:
//   - Format: the negotiated stream format (sample rate, channels, encoding)
//   - Param: the textual payload of a format-change notification
//
// and helpers for F32LE sample bytes.
//
// Example:
//
//	pp, err := audio.Param("audio/raw, format=F32LE, rate=48000, channels=2").Parse()
//	if err != nil {
//	    return
//	}
//	format, err := pp.Format()
//
//	// Decode the second sample of a buffer
//	v := audio.SampleFromF32LE(buf[audio.SampleWidth:])
package audio
